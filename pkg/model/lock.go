package model

import "time"

// Lease is a named mutual-exclusion lease held by Owner until ExpiresAt.
type Lease struct {
	ID         string    `bson:"_id" json:"id"`
	Owner      string    `bson:"owner" json:"owner"`
	ExpiresAt  time.Time `bson:"expires_at" json:"expires_at"`
	AcquiredAt time.Time `bson:"acquired_at" json:"acquired_at"`
}
