package entity

import "time"

const (
	WebhookDeliveryPending   int32 = 1
	WebhookDeliveryDelivered int32 = 10
	WebhookDeliveryDead      int32 = 20
)

type WebhookDelivery struct {
	ID uint64

	FlowID     string
	MerchantID string
	EventType  string
	URL        string

	PayloadJSON string

	Status         int32
	Attempts       int32
	NextAt         *time.Time
	LastError      *string
	LastStatusCode *int32
	DeliveredAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
