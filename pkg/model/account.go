package model

import "time"

// ConferencingAccount is a provider credential set. Accounts are tried in
// creation order when allocating sessions.
type ConferencingAccount struct {
	ID                string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name              string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	ProviderAccountID string    `json:"provider_account_id" bson:"provider_account_id" validate:"required"`
	ClientID          string    `json:"client_id" bson:"client_id" validate:"required"`
	ClientSecret      string    `json:"-" bson:"client_secret" validate:"required"`
	HostKey           string    `json:"-" bson:"host_key,omitempty" validate:"omitempty,numeric,min=6,max=10"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// ConferencingAccountInput carries secrets on the way in only.
type ConferencingAccountInput struct {
	Name              string `json:"name" validate:"required,min=2,max=100"`
	ProviderAccountID string `json:"provider_account_id" validate:"required"`
	ClientID          string `json:"client_id" validate:"required"`
	ClientSecret      string `json:"client_secret" validate:"required"`
	HostKey           string `json:"host_key,omitempty" validate:"omitempty,numeric,min=6,max=10"`
}

type ConferencingAccountUpdate struct {
	Name              *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	ProviderAccountID *string `json:"provider_account_id,omitempty" validate:"omitempty,min=1"`
	ClientID          *string `json:"client_id,omitempty" validate:"omitempty,min=1"`
	ClientSecret      *string `json:"client_secret,omitempty" validate:"omitempty,min=1"`
	HostKey           *string `json:"host_key,omitempty" validate:"omitempty,numeric,min=6,max=10"`
}
