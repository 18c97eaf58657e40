package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type FlowState string

const (
	FlowStateCreated  FlowState = "CREATED"
	FlowStateHeld     FlowState = "HELD"
	FlowStateSettled  FlowState = "SETTLED"
	FlowStateVoided   FlowState = "VOIDED"
	FlowStateReturned FlowState = "RETURNED"
	FlowStateDenied   FlowState = "DENIED"
	FlowStateExpired  FlowState = "EXPIRED"
)

var flowTransitions = map[FlowState][]FlowState{
	FlowStateCreated:  {FlowStateHeld, FlowStateDenied},
	FlowStateHeld:     {FlowStateSettled, FlowStateVoided, FlowStateExpired},
	FlowStateSettled:  {FlowStateReturned},
	FlowStateReturned: {FlowStateReturned},
}

func (s FlowState) Valid() bool {
	switch s {
	case FlowStateCreated, FlowStateHeld, FlowStateSettled, FlowStateVoided,
		FlowStateReturned, FlowStateDenied, FlowStateExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine allows moving from s to target.
// RETURNED -> RETURNED is the partial refund re-entry.
func (s FlowState) CanTransitionTo(target FlowState) bool {
	for _, allowed := range flowTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s FlowState) Terminal() bool {
	switch s {
	case FlowStateVoided, FlowStateDenied, FlowStateExpired:
		return true
	default:
		return false
	}
}

type PaymentFlow struct {
	ID         string
	MerchantID string
	APIKeyID   string

	Amount       decimal.Decimal
	Currency     string
	Memo         string
	MerchantRef  *string
	MerchantData map[string]string

	State      FlowState
	ResultCode int

	HeldAmount     decimal.Decimal
	SettledAmount  decimal.Decimal
	ReturnedAmount decimal.Decimal
	FeeAmount      decimal.Decimal
	NetAmount      decimal.Decimal

	CardID  *string
	PayerID *string
	HoldID  *string

	OnComplete *string
	OnCancel   *string
	NotifyURL  *string

	ChargeTransactionID  *string
	RefundTransactionIDs []string

	CreatedAt  time.Time
	HeldAt     *time.Time
	SettledAt  *time.Time
	VoidedAt   *time.Time
	ReturnedAt *time.Time
	DeniedAt   *time.Time
	ExpiredAt  *time.Time
	ExpiresAt  time.Time
	UpdatedAt  time.Time

	Version int64
}

// RefundableAmount is what is left to refund on a settled flow.
func (f *PaymentFlow) RefundableAmount() decimal.Decimal {
	remaining := f.SettledAmount.Sub(f.ReturnedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func (f *PaymentFlow) Expired(now time.Time) bool {
	return !f.ExpiresAt.IsZero() && now.After(f.ExpiresAt)
}

func (f *PaymentFlow) Clone() *PaymentFlow {
	if f == nil {
		return nil
	}
	c := *f
	if f.MerchantData != nil {
		c.MerchantData = make(map[string]string, len(f.MerchantData))
		for k, v := range f.MerchantData {
			c.MerchantData[k] = v
		}
	}
	if f.RefundTransactionIDs != nil {
		c.RefundTransactionIDs = append([]string(nil), f.RefundTransactionIDs...)
	}
	return &c
}
