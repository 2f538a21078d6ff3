package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"reference",
			"booking_id",
			"user_id",
			"amount",
			"method",
			"status",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"amount": bson.M{
				"bsonType": "object",
				"required": []string{"original", "final", "currency"},
				"properties": bson.M{
					"original": bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
					"final":    bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
					"currency": bson.M{"bsonType": "string", "minLength": 3, "maxLength": 3},
				},
			},

			"method": bson.M{
				"bsonType": "string",
				"enum":     []string{"wechat_pay", "alipay", "credit_card", "cash", "member_credit", "free"},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"processing",
					"completed",
					"failed",
					"cancelled",
					"refunded",
					"partially_refunded",
				},
			},

			"refunded_total": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
