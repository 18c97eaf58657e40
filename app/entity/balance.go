package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountBalance struct {
	AccountID string
	Currency  string
	Amount    decimal.Decimal
	Version   int64
	UpdatedAt time.Time
}
