package entity

import "time"

type FlowEvent struct {
	ID uint64

	FlowID     string
	MerchantID string

	EventType  string
	FromState  *FlowState
	ToState    FlowState
	ResultCode int

	PayloadJSON string

	CreatedAt   time.Time
	PublishedAt *time.Time
}
