package controller

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

func TestMerchantRoutesRequireAPIKey(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodGet, "/v1/flows", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.OK)
	assert.Equal(t, types.CodeUnauthorized.Int(), env.ResultCode)

	rec, env = s.do(http.MethodGet, "/v1/flows", "", map[string]string{HeaderAPIKey: "npk_unknown"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, types.CodeUnauthorized.Int(), env.ResultCode)
}

func TestReserveAuthorizeChargeOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/v1/flows", `{"amount":"100.00","currency":"usd","memo":"Order #1001"}`, s.merchantHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, env.OK)
	require.NotEmpty(t, env.Timestamp)

	var reserved types.ReserveFlowResponse
	require.NoError(t, json.Unmarshal(env.Data, &reserved))
	assert.Equal(t, "CREATED", reserved.State)
	assert.Equal(t, "USD", reserved.Currency)
	assert.Equal(t, "https://pay.example/v1/checkout/"+reserved.FlowID, reserved.CheckoutURL)
	assert.Equal(t, reserved.FlowID, env.FlowID)

	rec, env = s.do(http.MethodGet, "/v1/checkout/"+reserved.FlowID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.CodeOK.Int(), env.ResultCode)

	env = s.authorize(reserved.FlowID)
	require.True(t, env.OK, env.Message)
	assert.Equal(t, types.CodeFlowHeld.Int(), env.ResultCode)
	var held types.AuthorizeFlowResponse
	require.NoError(t, json.Unmarshal(env.Data, &held))
	assert.Equal(t, "HELD", held.State)
	assert.Equal(t, "100.00", held.HeldAmount)

	rec, env = s.do(http.MethodPost, "/v1/flows/"+reserved.FlowID+"/charge", "", s.merchantHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.CodeFlowSettled.Int(), env.ResultCode)

	rec, env = s.do(http.MethodGet, "/v1/flows/"+reserved.FlowID, "", s.merchantHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var flow types.Flow
	require.NoError(t, json.Unmarshal(env.Data, &flow))
	assert.Equal(t, "SETTLED", flow.State)
	assert.Equal(t, "2.50", flow.FeeAmount)
	assert.Equal(t, "97.50", flow.NetAmount)

	rec, env = s.do(http.MethodGet, "/v1/balances", "", s.merchantHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var balances types.ListBalancesResponse
	require.NoError(t, json.Unmarshal(env.Data, &balances))
	require.Len(t, balances.Balances, 1)
	assert.Equal(t, "97.50", balances.Balances[0].Amount)

	rec, env = s.do(http.MethodGet, "/v1/flows/"+reserved.FlowID+"/transactions", "", s.merchantHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var entries types.ListLedgerTransactionsResponse
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.NotEmpty(t, entries.Transactions)
}

func TestReserveReplaysIdempotentRequests(t *testing.T) {
	s := newTestServer(t)
	body := `{"amount":"25.00","currency":"USD","memo":"Order #7"}`
	headers := s.merchantHeaders(HeaderIdempotencyKey, "order-7")

	first, firstEnv := s.do(http.MethodPost, "/v1/flows", body, headers)
	second, secondEnv := s.do(http.MethodPost, "/v1/flows", body, headers)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, firstEnv.FlowID, secondEnv.FlowID)

	rec, env := s.do(http.MethodPost, "/v1/flows", `{"amount":"26.00","currency":"USD","memo":"Order #7"}`, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, types.CodeIdempotencyKeyReused.Int(), env.ResultCode)

	_, env = s.do(http.MethodGet, "/v1/flows", "", s.merchantHeaders())
	var list types.ListFlowsResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Flows, 1)
}

func TestReserveRejectsInvalidRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		code types.ResultCode
	}{
		{name: "malformed json", body: `{"amount":`, code: types.CodeInvalidRequest},
		{name: "missing amount", body: `{"currency":"USD","memo":"x"}`, code: types.CodeMissingField},
		{name: "bad amount", body: `{"amount":"12.345","currency":"USD","memo":"x"}`, code: types.CodeInvalidAmount},
		{name: "oversized amount", body: `{"amount":"10000000000000000000.00","currency":"USD","memo":"x"}`, code: types.CodeInvalidAmount},
		{name: "unsupported currency", body: `{"amount":"1.00","currency":"JPY","memo":"x"}`, code: types.CodeUnsupportedCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(http.MethodPost, "/v1/flows", tt.body, s.merchantHeaders())
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.False(t, env.OK)
			assert.Equal(t, tt.code.Int(), env.ResultCode)
		})
	}
}

func TestLookupUnknownFlow(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodGet, "/v1/flows/flow_missing", "", s.merchantHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, types.CodeFlowNotFound.Int(), env.ResultCode)
}

func TestVoidThenChargeIsRejected(t *testing.T) {
	s := newTestServer(t)
	flowID := s.reserve("40.00")
	require.True(t, s.authorize(flowID).OK)

	rec, env := s.do(http.MethodPost, "/v1/flows/"+flowID+"/void", `{"reason":"customer cancelled"}`, s.merchantHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.CodeFlowVoided.Int(), env.ResultCode)

	rec, env = s.do(http.MethodPost, "/v1/flows/"+flowID+"/charge", "", s.merchantHeaders())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, types.CodeInvalidStateTransition.Int(), env.ResultCode)
}

func TestRefundOverHTTP(t *testing.T) {
	s := newTestServer(t)
	flowID := s.reserve("100.00")
	require.True(t, s.authorize(flowID).OK)
	rec, _ := s.do(http.MethodPost, "/v1/flows/"+flowID+"/charge", "", s.merchantHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(http.MethodPost, "/v1/flows/"+flowID+"/refund", `{"amount":"40.00"}`, s.merchantHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.CodeFlowReturned.Int(), env.ResultCode)

	rec, env = s.do(http.MethodPost, "/v1/flows/"+flowID+"/refund", `{"amount":"500.00"}`, s.merchantHeaders())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, types.CodeRefundExceedsSettled.Int(), env.ResultCode)
}
