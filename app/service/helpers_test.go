package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/provider"
	"github.com/vibast-solutions/ms-go-novapay/app/repository/memory"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
	"github.com/vibast-solutions/ms-go-novapay/config"
	"golang.org/x/crypto/bcrypt"
)

const (
	testCardNumber = "4242424242424242"
	testCardCVV    = "123"
	testCardEmail  = "payer@example.com"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	clock     *testClock
	store     *memory.Store
	repos     Repositories
	ledger    *Ledger
	flows     *FlowService
	admin     *AdminService
	auth      *AuthService
	merchant  *MerchantCredentials
	principal *Principal
	payer     *entity.Card
}

func testFlowsConfig() config.FlowsConfig {
	return config.FlowsConfig{
		FeeRate:        decimal.RequireFromString("0.025"),
		Currencies:     []string{"USD", "EUR", "GBP", "CHF", "TRY"},
		CheckoutTTL:    30 * time.Minute,
		HoldTTL:        24 * time.Hour,
		RequestTimeout: 5 * time.Second,
	}
}

func testRepositories(store *memory.Store) Repositories {
	return Repositories{
		Tx:                store,
		Flows:             store.Flows(),
		Balances:          store.Balances(),
		Ledger:            store.Ledger(),
		Idempotency:       store.Idempotency(),
		Accounts:          store.Accounts(),
		Cards:             store.Cards(),
		Merchants:         store.Merchants(),
		WebhookDeliveries: store.WebhookDeliveries(),
		FlowEvents:        store.FlowEvents(),
	}
}

// newHarness wires the services on a fresh memory store with one merchant
// and one payer card funded with 500.00 USD.
func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	repos := testRepositories(store)

	ledger := NewLedger(repos)
	ledger.now = clock.Now
	flows := NewFlowService(repos, ledger, NewOutbox(repos), provider.NewClosedLoopNetwork(repos.Cards), testFlowsConfig())
	flows.now = clock.Now
	admin := NewAdminService(repos, ledger, testFlowsConfig(), bcrypt.MinCost)
	admin.now = clock.Now
	auth := NewAuthService(repos)
	auth.now = clock.Now

	h := &harness{
		t:      t,
		ctx:    context.Background(),
		clock:  clock,
		store:  store,
		repos:  repos,
		ledger: ledger,
		flows:  flows,
		admin:  admin,
		auth:   auth,
	}

	merchant, err := admin.CreateMerchant(h.ctx, "Acme Books")
	require.NoError(t, err)
	h.merchant = merchant

	principal, err := auth.Authenticate(h.ctx, merchant.RawAPIKey)
	require.NoError(t, err)
	h.principal = principal

	card, err := admin.IssueCard(h.ctx, &IssueCardInput{
		Number:       testCardNumber,
		ExpiryMonth:  12,
		ExpiryYear:   2030,
		SecurityCode: testCardCVV,
		HolderEmail:  testCardEmail,
	})
	require.NoError(t, err)
	h.payer = card

	h.credit(card.AccountID, "500.00")
	return h
}

func (h *harness) credit(accountID, amount string) {
	h.t.Helper()
	req := &types.CreditAccountRequest{AccountID: accountID, Currency: "USD", Amount: json.Number(amount)}
	require.NoError(h.t, req.Validate())
	_, _, err := h.admin.CreditAccount(h.ctx, req)
	require.NoError(h.t, err)
}

func (h *harness) balance(accountID string) string {
	h.t.Helper()
	balance, err := h.repos.Balances.Find(h.ctx, accountID, "USD")
	require.NoError(h.t, err)
	if balance == nil {
		return "0.00"
	}
	return balance.Amount.StringFixed(2)
}

func (h *harness) payerBalance() string {
	return h.balance(h.payer.AccountID)
}

func (h *harness) merchantBalance() string {
	return h.balance(h.principal.AccountID)
}

func (h *harness) reserve(amount string, notifyURL string) *entity.PaymentFlow {
	h.t.Helper()
	req := &types.ReserveFlowRequest{
		Amount:      json.Number(amount),
		Currency:    "USD",
		Memo:        "Order #1001",
		MerchantRef: "order-1001",
		NotifyURL:   notifyURL,
	}
	require.NoError(h.t, req.Validate())
	flow, err := h.flows.Reserve(h.ctx, h.principal, req)
	require.NoError(h.t, err)
	return flow
}

func authorizeRequest(flowID string) *types.AuthorizeFlowRequest {
	return &types.AuthorizeFlowRequest{
		FlowID:          flowID,
		CardNumber:      testCardNumber,
		ExpiryMonth:     12,
		ExpiryYear:      2030,
		SecurityCode:    testCardCVV,
		CardholderEmail: testCardEmail,
	}
}

func (h *harness) authorize(flowID string) *entity.PaymentFlow {
	h.t.Helper()
	flow, err := h.flows.Authorize(h.ctx, authorizeRequest(flowID))
	require.NoError(h.t, err)
	return flow
}

func chargeRequest(t *testing.T, flowID, amount string) *types.ChargeFlowRequest {
	t.Helper()
	req := &types.ChargeFlowRequest{FlowID: flowID, Amount: json.Number(amount)}
	require.NoError(t, req.Validate())
	return req
}

func refundRequest(t *testing.T, flowID, amount string) *types.RefundFlowRequest {
	t.Helper()
	req := &types.RefundFlowRequest{FlowID: flowID, Amount: json.Number(amount)}
	require.NoError(t, req.Validate())
	return req
}

func voidRequest(flowID string) *types.VoidFlowRequest {
	return &types.VoidFlowRequest{FlowID: flowID}
}

func (h *harness) ledgerCount() int {
	h.t.Helper()
	payer, err := h.repos.Ledger.ListByAccount(h.ctx, h.payer.AccountID, 1000, 0)
	require.NoError(h.t, err)
	merchant, err := h.repos.Ledger.ListByAccount(h.ctx, h.principal.AccountID, 1000, 0)
	require.NoError(h.t, err)
	return len(payer) + len(merchant)
}
