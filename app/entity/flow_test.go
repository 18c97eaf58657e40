package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFlowStateTransitions(t *testing.T) {
	allowed := map[FlowState][]FlowState{
		FlowStateCreated:  {FlowStateHeld, FlowStateDenied},
		FlowStateHeld:     {FlowStateSettled, FlowStateVoided, FlowStateExpired},
		FlowStateSettled:  {FlowStateReturned},
		FlowStateReturned: {FlowStateReturned},
	}
	all := []FlowState{
		FlowStateCreated, FlowStateHeld, FlowStateSettled, FlowStateVoided,
		FlowStateReturned, FlowStateDenied, FlowStateExpired,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Fatalf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestDeniedOnlyReachableFromCreated(t *testing.T) {
	for _, from := range []FlowState{FlowStateHeld, FlowStateSettled, FlowStateReturned} {
		if from.CanTransitionTo(FlowStateDenied) {
			t.Fatalf("expected %s -> DENIED to be rejected", from)
		}
	}
}

func TestFlowStateValid(t *testing.T) {
	if !FlowStateHeld.Valid() {
		t.Fatal("expected HELD to be valid")
	}
	if FlowState("PENDING").Valid() {
		t.Fatal("expected PENDING to be invalid")
	}
}

func TestRefundableAmount(t *testing.T) {
	flow := &PaymentFlow{
		SettledAmount:  decimal.RequireFromString("100.00"),
		ReturnedAmount: decimal.RequireFromString("40.00"),
	}
	if got := flow.RefundableAmount().StringFixed(2); got != "60.00" {
		t.Fatalf("expected 60.00, got %s", got)
	}

	flow.ReturnedAmount = decimal.RequireFromString("100.00")
	if !flow.RefundableAmount().IsZero() {
		t.Fatalf("expected zero refundable amount, got %s", flow.RefundableAmount())
	}
}

func TestFlowExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	flow := &PaymentFlow{ExpiresAt: now}
	if flow.Expired(now) {
		t.Fatal("flow must not be expired at exactly expiresAt")
	}
	if !flow.Expired(now.Add(time.Second)) {
		t.Fatal("flow must be expired after expiresAt")
	}
}

func TestFlowCloneIsDeep(t *testing.T) {
	flow := &PaymentFlow{
		MerchantData:         map[string]string{"order": "1"},
		RefundTransactionIDs: []string{"tx-1"},
	}
	clone := flow.Clone()
	clone.MerchantData["order"] = "2"
	clone.RefundTransactionIDs[0] = "tx-2"

	if flow.MerchantData["order"] != "1" || flow.RefundTransactionIDs[0] != "tx-1" {
		t.Fatal("clone mutated the original flow")
	}
}

func TestCardExpiredAt(t *testing.T) {
	card := &Card{ExpiryMonth: 12, ExpiryYear: 2026}
	if card.ExpiredAt(time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)) {
		t.Fatal("card must be valid through the last day of its expiry month")
	}
	if !card.ExpiredAt(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("card must be expired on the first day after its expiry month")
	}
}
