package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-novapay/app/provider"
	"github.com/vibast-solutions/ms-go-novapay/app/repository/memory"
	"github.com/vibast-solutions/ms-go-novapay/app/service"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
	"github.com/vibast-solutions/ms-go-novapay/config"
	"golang.org/x/crypto/bcrypt"
)

const (
	testCardNumber = "4242424242424242"
	testCardCVV    = "123"
	testCardEmail  = "payer@example.com"
)

type envelopeBody struct {
	OK         bool            `json:"ok"`
	ResultCode int             `json:"resultCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	FlowID     string          `json:"flowId"`
	Timestamp  string          `json:"timestamp"`
}

type testServer struct {
	t        *testing.T
	echo     *echo.Echo
	store    *memory.Store
	admin    *service.AdminService
	merchant *service.MerchantCredentials
	payer    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	repos := service.Repositories{
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
	flowsCfg := config.FlowsConfig{
		FeeRate:        decimal.RequireFromString("0.025"),
		Currencies:     []string{"USD", "EUR"},
		CheckoutTTL:    30 * time.Minute,
		HoldTTL:        24 * time.Hour,
		RequestTimeout: 5 * time.Second,
	}

	ledger := service.NewLedger(repos)
	flows := service.NewFlowService(repos, ledger, service.NewOutbox(repos), provider.NewClosedLoopNetwork(repos.Cards), flowsCfg)
	admin := service.NewAdminService(repos, ledger, flowsCfg, bcrypt.MinCost)
	idempotency := service.NewIdempotencyService(repos, nil, config.IdempotencyConfig{
		TTL:          24 * time.Hour,
		WaitTimeout:  100 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})
	webhooks := service.NewWebhookDispatcher(repos, nil, config.WebhooksConfig{
		MaxAttempts:      3,
		RetryInterval:    time.Second,
		MaxRetryInterval: time.Minute,
		HTTPTimeout:      time.Second,
	})

	flowController := NewFlowController(flows, idempotency, "https://pay.example", flowsCfg.RequestTimeout)
	checkoutController := NewCheckoutController(flows, flowsCfg.RequestTimeout)
	internalController := NewInternalController(admin, webhooks, flowsCfg.RequestTimeout)
	auth := NewMerchantAuthMiddleware(service.NewAuthService(repos))

	e := echo.New()
	v1 := e.Group("/v1", auth.RequireMerchant)
	v1.POST("/flows", flowController.Reserve)
	v1.GET("/flows", flowController.ListFlows)
	v1.GET("/flows/:flowId", flowController.Lookup)
	v1.POST("/flows/:flowId/charge", flowController.Charge)
	v1.POST("/flows/:flowId/void", flowController.Void)
	v1.POST("/flows/:flowId/refund", flowController.Refund)
	v1.GET("/flows/:flowId/transactions", flowController.ListTransactions)
	v1.GET("/balances", flowController.ListBalances)
	e.GET("/v1/checkout/:flowId", checkoutController.Summary)
	e.POST("/v1/checkout/:flowId/authorize", checkoutController.Authorize)
	e.POST("/internal/accounts/:accountId/credit", internalController.CreditAccount)
	e.POST("/internal/webhooks/:deliveryId/retry", internalController.RetryWebhook)

	ctx := context.Background()
	merchant, err := admin.CreateMerchant(ctx, "Acme Books")
	require.NoError(t, err)
	card, err := admin.IssueCard(ctx, &service.IssueCardInput{
		Number:       testCardNumber,
		ExpiryMonth:  12,
		ExpiryYear:   2030,
		SecurityCode: testCardCVV,
		HolderEmail:  testCardEmail,
	})
	require.NoError(t, err)

	s := &testServer{t: t, echo: e, store: store, admin: admin, merchant: merchant, payer: card.AccountID}
	resp, env := s.do(http.MethodPost, "/internal/accounts/"+card.AccountID+"/credit", `{"currency":"USD","amount":"500.00"}`, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, types.CodeAccountCredited.Int(), env.ResultCode)
	return s
}

func (s *testServer) do(method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, *envelopeBody) {
	s.t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var env envelopeBody
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, &env
}

func (s *testServer) merchantHeaders(extra ...string) map[string]string {
	headers := map[string]string{HeaderAPIKey: s.merchant.RawAPIKey}
	for i := 0; i+1 < len(extra); i += 2 {
		headers[extra[i]] = extra[i+1]
	}
	return headers
}

func (s *testServer) reserve(amount string) string {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/v1/flows", `{"amount":"`+amount+`","currency":"USD","memo":"Order #1001","notifyUrl":"https://merchant.example/hooks"}`, s.merchantHeaders())
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(s.t, types.CodeFlowCreated.Int(), env.ResultCode)
	return env.FlowID
}

func (s *testServer) authorize(flowID string) *envelopeBody {
	s.t.Helper()
	body := `{"cardNumber":"` + testCardNumber + `","expiryMonth":12,"expiryYear":2030,"securityCode":"` + testCardCVV + `","cardholderEmail":"` + testCardEmail + `"}`
	_, env := s.do(http.MethodPost, "/v1/checkout/"+flowID+"/authorize", body, nil)
	return env
}
