package validators

import "go.mongodb.org/mongo-driver/bson"

var DoctorValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"verified",
			"active",
			"accepting_bookings",
			"consultation_fee",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"verified": bson.M{
				"bsonType": "bool",
			},

			"active": bson.M{
				"bsonType": "bool",
			},

			"accepting_bookings": bson.M{
				"bsonType": "bool",
			},

			"consultation_fee": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
