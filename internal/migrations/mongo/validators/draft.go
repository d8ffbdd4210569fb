package validators

import "go.mongodb.org/mongo-driver/bson"

var DraftValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"resource_id",
			"start",
			"end",
			"state",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"start": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"end": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"tier": bson.M{
				"enum": []string{"day", "week", "month", ""},
			},

			"price": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},

			"state": bson.M{
				"bsonType": "string",
				"enum": []string{
					"REQUESTED",
					"VALIDATED",
					"LOCKED",
					"CONFIRMED",
					"RELEASED",
					"REJECTED",
				},
			},

			"customer_email": bson.M{
				"bsonType":  "string",
				"maxLength": 320,
			},

			"consent_at": bson.M{
				"bsonType": "date",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
