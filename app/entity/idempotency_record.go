package entity

import "time"

type IdempotencyStatus string

const (
	IdempotencyProcessing IdempotencyStatus = "PROCESSING"
	IdempotencyCompleted  IdempotencyStatus = "COMPLETED"
)

type IdempotencyRecord struct {
	Key          string
	Operation    string
	RequestHash  string
	ClaimToken   string
	FlowID       *string
	Status       IdempotencyStatus
	ResponseCode int
	ResponseBody []byte
	CreatedAt    time.Time
	LockedUntil  time.Time
	ExpiresAt    time.Time
}

func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Abandoned reports a PROCESSING claim whose lease ran out. Its owner never
// committed, so another request may take the key over.
func (r *IdempotencyRecord) Abandoned(now time.Time) bool {
	return r.Status == IdempotencyProcessing && !now.Before(r.LockedUntil)
}

// Reclaimable reports whether the key may be deleted and claimed afresh.
func (r *IdempotencyRecord) Reclaimable(now time.Time) bool {
	return r.Expired(now) || r.Abandoned(now)
}
