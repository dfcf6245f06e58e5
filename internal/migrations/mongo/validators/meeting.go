package validators

import "go.mongodb.org/mongo-driver/bson"

var integer = []string{"int", "long"}

var MeetingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"uuid",
			"organizer_id",
			"topic",
			"start_time",
			"duration",
			"end_time",
			"type",
			"status",
			"participants",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"uuid": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"organizer_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"topic": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 255,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"duration": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"online",
					"offline",
					"hybrid",
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"scheduled",
					"started",
					"finished",
					"canceled",
				},
			},

			"location_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"participants": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
