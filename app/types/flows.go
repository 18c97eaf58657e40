package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-novapay/app/money"
)

const (
	maxMemoLength        = 255
	maxMerchantRefLength = 128
	maxMerchantDataKeys  = 20
	maxReasonLength      = 255
	maxFlowIDLength      = 64
)

type ReserveFlowRequest struct {
	Amount       json.Number       `json:"amount"`
	Currency     string            `json:"currency"`
	Memo         string            `json:"memo"`
	MerchantRef  string            `json:"merchantRef,omitempty"`
	MerchantData map[string]string `json:"merchantData,omitempty"`
	OnComplete   string            `json:"onComplete,omitempty"`
	OnCancel     string            `json:"onCancel,omitempty"`
	NotifyURL    string            `json:"notifyUrl,omitempty"`

	amount decimal.Decimal
}

func NewReserveFlowRequestFromContext(ctx echo.Context) (*ReserveFlowRequest, error) {
	var body ReserveFlowRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Normalize()
	return &body, nil
}

func (r *ReserveFlowRequest) Normalize() {
	r.Amount = json.Number(strings.TrimSpace(r.Amount.String()))
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.Memo = strings.TrimSpace(r.Memo)
	r.MerchantRef = strings.TrimSpace(r.MerchantRef)
	r.OnComplete = strings.TrimSpace(r.OnComplete)
	r.OnCancel = strings.TrimSpace(r.OnCancel)
	r.NotifyURL = strings.TrimSpace(r.NotifyURL)
}

func (r *ReserveFlowRequest) Validate() error {
	amount, err := parseAmount(r.Amount, true)
	if err != nil {
		return err
	}
	r.amount = *amount
	r.Amount = json.Number(money.Format(r.amount))

	if r.Currency == "" {
		return invalid(CodeMissingField, "currency is required")
	}
	if !isCurrencyCode(r.Currency) {
		return invalid(CodeUnsupportedCurrency, "currency must be a 3-letter code")
	}
	if r.Memo == "" {
		return invalid(CodeMissingField, "memo is required")
	}
	if len(r.Memo) > maxMemoLength {
		return invalid(CodeInvalidRequest, "memo must be at most %d characters", maxMemoLength)
	}
	if len(r.MerchantRef) > maxMerchantRefLength {
		return invalid(CodeInvalidRequest, "merchantRef must be at most %d characters", maxMerchantRefLength)
	}
	if len(r.MerchantData) > maxMerchantDataKeys {
		return invalid(CodeInvalidRequest, "merchantData must have at most %d keys", maxMerchantDataKeys)
	}
	urls := []struct{ field, value string }{
		{"onComplete", r.OnComplete},
		{"onCancel", r.OnCancel},
		{"notifyUrl", r.NotifyURL},
	}
	for _, u := range urls {
		if u.value != "" && !isHTTPURL(u.value) {
			return invalid(CodeInvalidURL, "%s must be an absolute http(s) URL", u.field)
		}
	}
	return nil
}

func (r *ReserveFlowRequest) GetAmount() decimal.Decimal { return r.amount }
func (r *ReserveFlowRequest) GetCurrency() string { return r.Currency }
func (r *ReserveFlowRequest) GetMemo() string { return r.Memo }
func (r *ReserveFlowRequest) GetMerchantRef() string { return r.MerchantRef }
func (r *ReserveFlowRequest) GetMerchantData() map[string]string { return r.MerchantData }
func (r *ReserveFlowRequest) GetOnComplete() string { return r.OnComplete }
func (r *ReserveFlowRequest) GetOnCancel() string { return r.OnCancel }
func (r *ReserveFlowRequest) GetNotifyURL() string { return r.NotifyURL }

type AuthorizeFlowRequest struct {
	FlowID          string `json:"-"`
	CardNumber      string `json:"cardNumber"`
	ExpiryMonth     int    `json:"expiryMonth"`
	ExpiryYear      int    `json:"expiryYear"`
	SecurityCode    string `json:"securityCode"`
	CardholderEmail string `json:"cardholderEmail"`
}

func NewAuthorizeFlowRequestFromContext(ctx echo.Context) (*AuthorizeFlowRequest, error) {
	var body AuthorizeFlowRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.FlowID = ctx.Param("flowId")
	body.Normalize()
	return &body, nil
}

func (r *AuthorizeFlowRequest) Normalize() {
	r.FlowID = strings.TrimSpace(r.FlowID)
	r.CardNumber = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(r.CardNumber))
	r.SecurityCode = strings.TrimSpace(r.SecurityCode)
	r.CardholderEmail = strings.ToLower(strings.TrimSpace(r.CardholderEmail))
	if r.ExpiryYear > 0 && r.ExpiryYear < 100 {
		r.ExpiryYear += 2000
	}
}

func (r *AuthorizeFlowRequest) Validate() error {
	if err := validateFlowID(r.FlowID); err != nil {
		return err
	}
	if r.CardNumber == "" {
		return invalid(CodeMissingField, "cardNumber is required")
	}
	if !ValidCardNumber(r.CardNumber) {
		return invalid(CodeInvalidCardDetails, "cardNumber is invalid")
	}
	if r.ExpiryMonth < 1 || r.ExpiryMonth > 12 {
		return invalid(CodeInvalidCardDetails, "expiryMonth must be between 1 and 12")
	}
	if r.ExpiryYear < 2000 || r.ExpiryYear > 2100 {
		return invalid(CodeInvalidCardDetails, "expiryYear is invalid")
	}
	if !isDigits(r.SecurityCode) || len(r.SecurityCode) < 3 || len(r.SecurityCode) > 4 {
		return invalid(CodeInvalidCardDetails, "securityCode must be 3 or 4 digits")
	}
	if r.CardholderEmail == "" {
		return invalid(CodeMissingField, "cardholderEmail is required")
	}
	if _, err := mail.ParseAddress(r.CardholderEmail); err != nil {
		return invalid(CodeInvalidRequest, "cardholderEmail is invalid")
	}
	return nil
}

func (r *AuthorizeFlowRequest) GetFlowID() string { return r.FlowID }
func (r *AuthorizeFlowRequest) GetCardNumber() string { return r.CardNumber }
func (r *AuthorizeFlowRequest) GetExpiryMonth() int { return r.ExpiryMonth }
func (r *AuthorizeFlowRequest) GetExpiryYear() int { return r.ExpiryYear }
func (r *AuthorizeFlowRequest) GetSecurityCode() string { return r.SecurityCode }
func (r *AuthorizeFlowRequest) GetCardholderEmail() string { return r.CardholderEmail }

type ChargeFlowRequest struct {
	FlowID string      `json:"-"`
	Amount json.Number `json:"amount,omitempty"`

	amount *decimal.Decimal
}

func NewChargeFlowRequestFromContext(ctx echo.Context) (*ChargeFlowRequest, error) {
	var body ChargeFlowRequest
	if err := bindOptionalBody(ctx, &body); err != nil {
		return nil, err
	}
	body.FlowID = strings.TrimSpace(ctx.Param("flowId"))
	body.Amount = json.Number(strings.TrimSpace(body.Amount.String()))
	return &body, nil
}

func (r *ChargeFlowRequest) Validate() error {
	if err := validateFlowID(r.FlowID); err != nil {
		return err
	}
	amount, err := parseAmount(r.Amount, false)
	if err != nil {
		return err
	}
	r.amount = amount
	if amount != nil {
		r.Amount = json.Number(money.Format(*amount))
	}
	return nil
}

func (r *ChargeFlowRequest) GetFlowID() string { return r.FlowID }
func (r *ChargeFlowRequest) GetAmount() *decimal.Decimal { return r.amount }

type VoidFlowRequest struct {
	FlowID string `json:"-"`
	Reason string `json:"reason,omitempty"`
}

func NewVoidFlowRequestFromContext(ctx echo.Context) (*VoidFlowRequest, error) {
	var body VoidFlowRequest
	if err := bindOptionalBody(ctx, &body); err != nil {
		return nil, err
	}
	body.FlowID = strings.TrimSpace(ctx.Param("flowId"))
	body.Reason = strings.TrimSpace(body.Reason)
	return &body, nil
}

func (r *VoidFlowRequest) Validate() error {
	if err := validateFlowID(r.FlowID); err != nil {
		return err
	}
	if len(r.Reason) > maxReasonLength {
		return invalid(CodeInvalidRequest, "reason must be at most %d characters", maxReasonLength)
	}
	return nil
}

func (r *VoidFlowRequest) GetFlowID() string { return r.FlowID }
func (r *VoidFlowRequest) GetReason() string { return r.Reason }

type RefundFlowRequest struct {
	FlowID string      `json:"-"`
	Amount json.Number `json:"amount,omitempty"`
	Reason string      `json:"reason,omitempty"`

	amount *decimal.Decimal
}

func NewRefundFlowRequestFromContext(ctx echo.Context) (*RefundFlowRequest, error) {
	var body RefundFlowRequest
	if err := bindOptionalBody(ctx, &body); err != nil {
		return nil, err
	}
	body.FlowID = strings.TrimSpace(ctx.Param("flowId"))
	body.Amount = json.Number(strings.TrimSpace(body.Amount.String()))
	body.Reason = strings.TrimSpace(body.Reason)
	return &body, nil
}

func (r *RefundFlowRequest) Validate() error {
	if err := validateFlowID(r.FlowID); err != nil {
		return err
	}
	amount, err := parseAmount(r.Amount, false)
	if err != nil {
		return err
	}
	r.amount = amount
	if amount != nil {
		r.Amount = json.Number(money.Format(*amount))
	}
	if len(r.Reason) > maxReasonLength {
		return invalid(CodeInvalidRequest, "reason must be at most %d characters", maxReasonLength)
	}
	return nil
}

func (r *RefundFlowRequest) GetFlowID() string { return r.FlowID }
func (r *RefundFlowRequest) GetAmount() *decimal.Decimal { return r.amount }
func (r *RefundFlowRequest) GetReason() string { return r.Reason }

type GetFlowRequest struct {
	FlowID string
}

func NewGetFlowRequestFromContext(ctx echo.Context) (*GetFlowRequest, error) {
	return &GetFlowRequest{FlowID: strings.TrimSpace(ctx.Param("flowId"))}, nil
}

func (r *GetFlowRequest) Validate() error {
	return validateFlowID(r.FlowID)
}

func (r *GetFlowRequest) GetFlowID() string { return r.FlowID }

type ListFlowsRequest struct {
	State  string
	Limit  int32
	Offset int32
}

func NewListFlowsRequestFromContext(ctx echo.Context) (*ListFlowsRequest, error) {
	req := &ListFlowsRequest{
		State: strings.ToUpper(strings.TrimSpace(ctx.QueryParam("state"))),
		Limit: 50,
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListFlowsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = 50
	}
	if r.Limit <= 0 || r.Limit > 500 {
		return invalid(CodeInvalidRequest, "limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return invalid(CodeInvalidRequest, "offset must be >= 0")
	}
	switch r.State {
	case "", "CREATED", "HELD", "SETTLED", "VOIDED", "RETURNED", "DENIED", "EXPIRED":
	default:
		return invalid(CodeInvalidRequest, "state is invalid")
	}
	return nil
}

func (r *ListFlowsRequest) GetState() string { return r.State }
func (r *ListFlowsRequest) GetLimit() int32 { return r.Limit }
func (r *ListFlowsRequest) GetOffset() int32 { return r.Offset }

type CreditAccountRequest struct {
	AccountID string      `json:"-"`
	Currency  string      `json:"currency"`
	Amount    json.Number `json:"amount"`
	Reference string      `json:"reference,omitempty"`

	amount decimal.Decimal
}

func NewCreditAccountRequestFromContext(ctx echo.Context) (*CreditAccountRequest, error) {
	var body CreditAccountRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.AccountID = strings.TrimSpace(ctx.Param("accountId"))
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.Amount = json.Number(strings.TrimSpace(body.Amount.String()))
	body.Reference = strings.TrimSpace(body.Reference)
	return &body, nil
}

func (r *CreditAccountRequest) Validate() error {
	if r.AccountID == "" {
		return invalid(CodeMissingField, "accountId is required")
	}
	if !isCurrencyCode(r.Currency) {
		return invalid(CodeUnsupportedCurrency, "currency must be a 3-letter code")
	}
	amount, err := parseAmount(r.Amount, true)
	if err != nil {
		return err
	}
	r.amount = *amount
	return nil
}

func (r *CreditAccountRequest) GetAccountID() string { return r.AccountID }
func (r *CreditAccountRequest) GetCurrency() string { return r.Currency }
func (r *CreditAccountRequest) GetAmount() decimal.Decimal { return r.amount }
func (r *CreditAccountRequest) GetReference() string { return r.Reference }

// Fingerprint hashes an operation and its normalized request so a reused
// idempotency key can be told apart from a genuine retry.
func Fingerprint(operation string, flowID string, req any) string {
	payload, _ := json.Marshal(req)
	sum := sha256.Sum256([]byte(operation + "\n" + flowID + "\n" + string(payload)))
	return hex.EncodeToString(sum[:])
}

// ValidCardNumber checks length and the Luhn checksum.
func ValidCardNumber(number string) bool {
	if len(number) < 12 || len(number) > 19 || !isDigits(number) {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func bindOptionalBody(ctx echo.Context, dst any) error {
	if ctx.Request().ContentLength == 0 {
		return nil
	}
	if err := ctx.Bind(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseAmount(raw json.Number, required bool) (*decimal.Decimal, error) {
	value := strings.TrimSpace(raw.String())
	if value == "" {
		if required {
			return nil, invalid(CodeMissingField, "amount is required")
		}
		return nil, nil
	}
	amount, err := money.Parse(value)
	if err != nil {
		return nil, invalid(CodeInvalidAmount, "amount is invalid: %v", err)
	}
	return &amount, nil
}

func validateFlowID(flowID string) error {
	if strings.TrimSpace(flowID) == "" {
		return invalid(CodeMissingField, "flowId is required")
	}
	if len(flowID) > maxFlowIDLength {
		return invalid(CodeInvalidRequest, "flowId is invalid")
	}
	return nil
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
