package model

import "time"

type MeetingLocation struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=255"`
	Address   string    `json:"address" bson:"address" validate:"required,max=500"`
	RoomName  string    `json:"room_name,omitempty" bson:"room_name,omitempty" validate:"omitempty,max=255"`
	Capacity  *int      `json:"capacity,omitempty" bson:"capacity,omitempty" validate:"omitempty,min=1"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type MeetingLocationUpdate struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`
	RoomName *string `json:"room_name,omitempty" validate:"omitempty,max=255"`
	Capacity *int    `json:"capacity,omitempty" validate:"omitempty,min=1"`
}
