package entity

import "time"

type CardStatus string

const (
	CardStatusActive   CardStatus = "ACTIVE"
	CardStatusInactive CardStatus = "INACTIVE"
)

type Card struct {
	ID          string
	AccountID   string
	NumberHash  string
	Last4       string
	ExpiryMonth int
	ExpiryYear  int
	CVVHash     string
	HolderEmail string
	Status      CardStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiredAt reports whether the card is unusable at now. A card is valid
// through the last day of its expiry month.
func (c *Card) ExpiredAt(now time.Time) bool {
	firstOfNext := time.Date(c.ExpiryYear, time.Month(c.ExpiryMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.UTC().Before(firstOfNext)
}
