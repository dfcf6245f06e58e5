package model

import "time"

type Attendance struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	MeetingID string    `json:"meeting_id" bson:"meeting_id"`
	UserID    string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email,omitempty" bson:"email,omitempty"`
	Agency    string    `json:"agency,omitempty" bson:"agency,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type AttendanceInput struct {
	Name   string `json:"name" validate:"required,min=1,max=255"`
	Email  string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Agency string `json:"agency,omitempty" validate:"omitempty,max=255"`
}
