package entity

import "time"

const (
	MerchantStatusActive    = "ACTIVE"
	MerchantStatusSuspended = "SUSPENDED"

	APIKeyStatusActive  = "ACTIVE"
	APIKeyStatusRevoked = "REVOKED"
)

type Merchant struct {
	ID            string
	Name          string
	AccountID     string
	WebhookSecret string
	Status        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type APIKey struct {
	ID         string
	MerchantID string
	KeyHash    string
	Status     string

	CreatedAt  time.Time
	LastUsedAt *time.Time
}
