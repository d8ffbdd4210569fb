package validators

import "go.mongodb.org/mongo-driver/bson"

// OrderValidator covers the processed-flag record only; the reservations
// collection holds legacy values and is left unvalidated.
var OrderValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "processed", "updated_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"processed": bson.M{
				"bsonType": "bool",
			},

			"processed_at": bson.M{
				"bsonType": "date",
			},

			"consent": bson.M{
				"bsonType": "bool",
			},

			"lines": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"lock_token"},
				},
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
