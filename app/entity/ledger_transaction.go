package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerTransactionType string

const (
	LedgerHoldDebit        LedgerTransactionType = "HOLD_DEBIT"
	LedgerCaptureCredit    LedgerTransactionType = "CAPTURE_CREDIT"
	LedgerVoidCredit       LedgerTransactionType = "VOID_CREDIT"
	LedgerExpiryCredit     LedgerTransactionType = "EXPIRY_CREDIT"
	LedgerRefundDebit      LedgerTransactionType = "REFUND_DEBIT"
	LedgerRefundCredit     LedgerTransactionType = "REFUND_CREDIT"
	LedgerAdjustmentCredit LedgerTransactionType = "ADJUSTMENT_CREDIT"
)

const LedgerStatusCompleted = "COMPLETED"

type LedgerTransaction struct {
	ID             string
	AccountID      string
	Amount         decimal.Decimal
	Currency       string
	Type           LedgerTransactionType
	CounterpartyID *string
	FlowID         *string
	HoldID         *string
	Fee            decimal.Decimal
	BalanceAfter   decimal.Decimal
	Status         string
	CreatedAt      time.Time
}
