package validators

import "go.mongodb.org/mongo-driver/bson"

var MembershipValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"plan_name",
			"status",
			"start_date",
			"end_date",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"active", "expired", "cancelled", "frozen"},
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"discount_rate": bson.M{
				"bsonType": numeric,
				"minimum":  0,
				"maximum":  1,
			},
		},
	},
}
