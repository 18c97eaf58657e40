package controller

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

func TestCreditAccount(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/internal/accounts/"+s.payer+"/credit", `{"currency":"USD","amount":"20.00","reference":"top-up"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var credited types.CreditAccountResponse
	require.NoError(t, json.Unmarshal(env.Data, &credited))
	require.NotNil(t, credited.Balance)
	assert.Equal(t, "520.00", credited.Balance.Amount)

	rec, env = s.do(http.MethodPost, "/internal/accounts/acct_missing/credit", `{"currency":"USD","amount":"20.00"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, types.CodeAccountNotFound.Int(), env.ResultCode)
}

func TestRetryWebhookValidation(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/internal/webhooks/abc/retry", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, types.CodeInvalidRequest.Int(), env.ResultCode)

	rec, env = s.do(http.MethodPost, "/internal/webhooks/42/retry", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, types.CodeFlowNotFound.Int(), env.ResultCode)
}
