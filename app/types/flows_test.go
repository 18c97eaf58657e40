package types

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newEchoContext(method, target, body string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func requireCode(t *testing.T, err error, code ResultCode) {
	t.Helper()
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError with code %d, got %v", code, err)
	}
	if reqErr.Code != code {
		t.Fatalf("expected code %d, got %d (%s)", code, reqErr.Code, reqErr.Message)
	}
}

func TestNewReserveFlowRequestFromContextNormalizes(t *testing.T) {
	ctx := newEchoContext("POST", "/v1/flows", `{"amount":"100","currency":" usd ","memo":" Order 42 ","notifyUrl":"https://merchant.example/hooks"}`)

	parsed, err := NewReserveFlowRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetCurrency() != "USD" {
		t.Fatalf("expected upper-cased currency, got %q", parsed.GetCurrency())
	}
	if parsed.GetMemo() != "Order 42" {
		t.Fatalf("expected trimmed memo, got %q", parsed.GetMemo())
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if parsed.GetAmount().StringFixed(2) != "100.00" {
		t.Fatalf("unexpected amount: %s", parsed.GetAmount())
	}
	if parsed.Amount.String() != "100.00" {
		t.Fatalf("expected canonical amount, got %s", parsed.Amount)
	}
}

func TestReserveFlowRequestAcceptsNumericAmount(t *testing.T) {
	ctx := newEchoContext("POST", "/v1/flows", `{"amount":12.5,"currency":"EUR","memo":"m"}`)
	parsed, err := NewReserveFlowRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if parsed.GetAmount().StringFixed(2) != "12.50" {
		t.Fatalf("unexpected amount: %s", parsed.GetAmount())
	}
}

func TestReserveFlowRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  ReserveFlowRequest
		code ResultCode
	}{
		{name: "missing amount", req: ReserveFlowRequest{Currency: "USD", Memo: "m"}, code: CodeMissingField},
		{name: "zero amount", req: ReserveFlowRequest{Amount: "0", Currency: "USD", Memo: "m"}, code: CodeInvalidAmount},
		{name: "too precise", req: ReserveFlowRequest{Amount: "1.001", Currency: "USD", Memo: "m"}, code: CodeInvalidAmount},
		{name: "beyond column range", req: ReserveFlowRequest{Amount: "10000000000000000000", Currency: "USD", Memo: "m"}, code: CodeInvalidAmount},
		{name: "missing currency", req: ReserveFlowRequest{Amount: "1", Memo: "m"}, code: CodeMissingField},
		{name: "bad currency", req: ReserveFlowRequest{Amount: "1", Currency: "US1", Memo: "m"}, code: CodeUnsupportedCurrency},
		{name: "missing memo", req: ReserveFlowRequest{Amount: "1", Currency: "USD"}, code: CodeMissingField},
		{name: "bad notify url", req: ReserveFlowRequest{Amount: "1", Currency: "USD", Memo: "m", NotifyURL: "ftp://x"}, code: CodeInvalidURL},
		{name: "relative redirect", req: ReserveFlowRequest{Amount: "1", Currency: "USD", Memo: "m", OnComplete: "/done"}, code: CodeInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			requireCode(t, req.Validate(), tt.code)
		})
	}
}

func TestAuthorizeFlowRequestValidate(t *testing.T) {
	valid := AuthorizeFlowRequest{
		FlowID:          "flow-1",
		CardNumber:      "4242424242424242",
		ExpiryMonth:     12,
		ExpiryYear:      2030,
		SecurityCode:    "123",
		CardholderEmail: "payer@example.com",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	badLuhn := valid
	badLuhn.CardNumber = "4242424242424241"
	requireCode(t, badLuhn.Validate(), CodeInvalidCardDetails)

	badMonth := valid
	badMonth.ExpiryMonth = 13
	requireCode(t, badMonth.Validate(), CodeInvalidCardDetails)

	badCVV := valid
	badCVV.SecurityCode = "12a"
	requireCode(t, badCVV.Validate(), CodeInvalidCardDetails)

	noEmail := valid
	noEmail.CardholderEmail = ""
	requireCode(t, noEmail.Validate(), CodeMissingField)

	noFlow := valid
	noFlow.FlowID = ""
	requireCode(t, noFlow.Validate(), CodeMissingField)
}

func TestNewAuthorizeFlowRequestFromContextNormalizes(t *testing.T) {
	ctx := newEchoContext("POST", "/v1/checkout/flow-1/authorize", `{"cardNumber":"4242 4242 4242 4242","expiryMonth":1,"expiryYear":29,"securityCode":"999","cardholderEmail":" Payer@Example.com "}`)
	ctx.SetParamNames("flowId")
	ctx.SetParamValues("flow-1")

	parsed, err := NewAuthorizeFlowRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetFlowID() != "flow-1" {
		t.Fatalf("unexpected flow id: %q", parsed.GetFlowID())
	}
	if parsed.GetCardNumber() != "4242424242424242" {
		t.Fatalf("expected separators stripped, got %q", parsed.GetCardNumber())
	}
	if parsed.GetExpiryYear() != 2029 {
		t.Fatalf("expected 2-digit year expanded, got %d", parsed.GetExpiryYear())
	}
	if parsed.GetCardholderEmail() != "payer@example.com" {
		t.Fatalf("expected lower-cased email, got %q", parsed.GetCardholderEmail())
	}
}

func TestChargeFlowRequestOptionalAmount(t *testing.T) {
	ctx := newEchoContext("POST", "/v1/flows/flow-1/charge", "")
	ctx.SetParamNames("flowId")
	ctx.SetParamValues("flow-1")

	parsed, err := NewChargeFlowRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if parsed.GetAmount() != nil {
		t.Fatalf("expected no amount, got %s", parsed.GetAmount())
	}

	partial := &ChargeFlowRequest{FlowID: "flow-1", Amount: "40"}
	if err := partial.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if partial.GetAmount() == nil || partial.GetAmount().StringFixed(2) != "40.00" {
		t.Fatalf("unexpected partial amount: %v", partial.GetAmount())
	}

	negative := &ChargeFlowRequest{FlowID: "flow-1", Amount: "-1"}
	requireCode(t, negative.Validate(), CodeInvalidAmount)
}

func TestRefundFlowRequestFromContext(t *testing.T) {
	ctx := newEchoContext("POST", "/v1/flows/flow-9/refund", `{"amount":"40.00","reason":" damaged "}`)
	ctx.SetParamNames("flowId")
	ctx.SetParamValues("flow-9")

	parsed, err := NewRefundFlowRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if parsed.GetReason() != "damaged" || parsed.GetAmount().StringFixed(2) != "40.00" {
		t.Fatalf("unexpected refund request: %+v", parsed)
	}
}

func TestListFlowsRequest(t *testing.T) {
	ctx := newEchoContext("GET", "/v1/flows?state=held&limit=20&offset=3", "")
	parsed, err := NewListFlowsRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if parsed.GetState() != "HELD" || parsed.GetLimit() != 20 || parsed.GetOffset() != 3 {
		t.Fatalf("unexpected list request: %+v", parsed)
	}

	bad := &ListFlowsRequest{State: "PENDING"}
	requireCode(t, bad.Validate(), CodeInvalidRequest)

	tooMany := &ListFlowsRequest{Limit: 501}
	requireCode(t, tooMany.Validate(), CodeInvalidRequest)
}

func TestFingerprintDistinguishesRequests(t *testing.T) {
	a := &ReserveFlowRequest{Amount: "100.00", Currency: "USD", Memo: "a"}
	b := &ReserveFlowRequest{Amount: "100.00", Currency: "USD", Memo: "b"}

	if Fingerprint("reserve", "", a) != Fingerprint("reserve", "", a) {
		t.Fatal("expected stable fingerprint")
	}
	if Fingerprint("reserve", "", a) == Fingerprint("reserve", "", b) {
		t.Fatal("expected different fingerprints for different bodies")
	}
	if Fingerprint("charge", "flow-1", nil) == Fingerprint("void", "flow-1", nil) {
		t.Fatal("expected operation to be part of the fingerprint")
	}
}

func TestValidCardNumber(t *testing.T) {
	if !ValidCardNumber("4111111111111111") {
		t.Fatal("expected valid test card")
	}
	if ValidCardNumber("4111111111111112") {
		t.Fatal("expected checksum failure")
	}
	if ValidCardNumber("4111") {
		t.Fatal("expected length failure")
	}
}
