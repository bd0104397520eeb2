package validators

import "go.mongodb.org/mongo-driver/bson"

var TransactionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"appointment_id",
			"doctor_id",
			"amount",
			"platform_fee",
			"doctor_earning",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"appointment_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"doctor_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"amount": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"platform_fee": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"doctor_earning": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"completed",
					"failed",
					"refunded",
				},
			},

			"payout_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"paid",
				},
			},

			"payout_method": bson.M{
				"bsonType": "string",
			},

			"payout_reference": bson.M{
				"bsonType": "string",
			},

			"payout_batch_id": bson.M{
				"bsonType": "string",
			},

			"paid_at": bson.M{
				"bsonType": "date",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
