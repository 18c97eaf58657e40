package controller

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

func TestAuthorizeDeclineReportsDeniedFlow(t *testing.T) {
	s := newTestServer(t)
	flowID := s.reserve("10.00")

	body := `{"cardNumber":"` + testCardNumber + `","expiryMonth":12,"expiryYear":2030,"securityCode":"999","cardholderEmail":"` + testCardEmail + `"}`
	rec, env := s.do(http.MethodPost, "/v1/checkout/"+flowID+"/authorize", body, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, env.OK)
	assert.Equal(t, types.CodeSecurityCodeMismatch.Int(), env.ResultCode)
	assert.Equal(t, flowID, env.FlowID)

	var denied types.AuthorizeFlowResponse
	require.NoError(t, json.Unmarshal(env.Data, &denied))
	assert.Equal(t, "DENIED", denied.State)

	env = s.authorize(flowID)
	assert.Equal(t, types.CodeInvalidStateTransition.Int(), env.ResultCode)
}

func TestAuthorizeRejectsBadCardNumber(t *testing.T) {
	s := newTestServer(t)
	flowID := s.reserve("10.00")

	body := `{"cardNumber":"4242424242424241","expiryMonth":12,"expiryYear":2030,"securityCode":"123","cardholderEmail":"` + testCardEmail + `"}`
	rec, env := s.do(http.MethodPost, "/v1/checkout/"+flowID+"/authorize", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, types.CodeInvalidCardDetails.Int(), env.ResultCode)

	_, env = s.do(http.MethodGet, "/v1/checkout/"+flowID, "", nil)
	var summary types.CheckoutFlowResponse
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "CREATED", summary.State)
}

func TestCheckoutUnknownFlow(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodGet, "/v1/checkout/flow_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, types.CodeFlowNotFound.Int(), env.ResultCode)
}
