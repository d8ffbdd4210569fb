package validators

import "go.mongodb.org/mongo-driver/bson"

var ResourceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "name"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"name": bson.M{
				"bsonType":  "string",
				"maxLength": 200,
			},

			"capacity": bson.M{
				"bsonType": []string{"int", "long", "null"},
			},

			"prices": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"day":   bson.M{"bsonType": []string{"double", "int", "long"}, "minimum": 0},
					"week":  bson.M{"bsonType": []string{"double", "int", "long"}, "minimum": 0},
					"month": bson.M{"bsonType": []string{"double", "int", "long"}, "minimum": 0},
				},
			},

			"blocked_dates": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},
		},
	},
}
