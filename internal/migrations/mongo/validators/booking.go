package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"reference",
			"court_id",
			"user_id",
			"start_time",
			"end_time",
			"pricing",
			"payment",
			"status",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"reference": bson.M{
				"bsonType": "string",
				"pattern":  "^TRK-",
			},

			"court_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"duration_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"pricing": bson.M{
				"bsonType": "object",
				"required": []string{"total", "currency"},
				"properties": bson.M{
					"total": bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
				},
			},

			"payment": bson.M{
				"bsonType": "object",
				"required": []string{"method", "status"},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"checked_in",
					"completed",
					"cancelled",
					"no_show",
				},
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
