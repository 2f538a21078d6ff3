package validators

import "go.mongodb.org/mongo-driver/bson"

var numeric = []string{"double", "int", "long", "decimal"}

var clockTime = bson.M{
	"bsonType": "string",
	"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
}

var CourtValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"code",
			"name",
			"type",
			"status",
			"time_zone",
			"pricing",
			"operating_hours",
			"booking_rules",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"code": bson.M{
				"bsonType": "string",
				"pattern":  "^[A-Z0-9][A-Z0-9-]{1,19}$",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"type": bson.M{
				"bsonType": "string",
				"enum":     []string{"indoor", "outdoor"},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"active", "maintenance", "closed", "reserved"},
			},

			"time_zone": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"pricing": bson.M{
				"bsonType": "object",
				"required": []string{"base_rate", "currency"},
				"properties": bson.M{
					"base_rate":       bson.M{"bsonType": numeric, "exclusiveMinimum": true, "minimum": 0},
					"member_discount": bson.M{"bsonType": numeric, "minimum": 0, "maximum": 0.5},
					"tax_rate":        bson.M{"bsonType": numeric, "minimum": 0, "maximum": 1},
					"currency":        bson.M{"bsonType": "string", "minLength": 3, "maxLength": 3},
				},
			},

			"peak_hours": bson.M{
				"bsonType": []string{"array", "null"},
				"maxItems": 20,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"start", "end", "days", "multiplier"},
					"properties": bson.M{
						"start": clockTime,
						"end":   clockTime,
						"days": bson.M{
							"bsonType": "array",
							"minItems": 1,
							"maxItems": 7,
							"items":    bson.M{"bsonType": []string{"int", "long"}, "minimum": 0, "maximum": 6},
						},
						"multiplier": bson.M{"bsonType": numeric, "minimum": 1, "maximum": 3},
					},
				},
			},

			"operating_hours": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"is_open": bson.M{"bsonType": "bool"},
					},
				},
			},

			"booking_rules": bson.M{
				"bsonType": "object",
				"required": []string{"advance_booking_days", "min_duration_minutes", "max_duration_minutes"},
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
