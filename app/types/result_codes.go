package types

import "net/http"

type ResultCode int

const (
	CodeOK              ResultCode = 1000
	CodeFlowCreated     ResultCode = 1001
	CodeFlowHeld        ResultCode = 1002
	CodeFlowSettled     ResultCode = 1003
	CodeFlowVoided      ResultCode = 1004
	CodeFlowReturned    ResultCode = 1005
	CodeAccountCredited ResultCode = 1010

	CodeInvalidRequest         ResultCode = 4000
	CodeMissingField           ResultCode = 4001
	CodeInvalidAmount          ResultCode = 4002
	CodeUnsupportedCurrency    ResultCode = 4003
	CodeInvalidURL             ResultCode = 4004
	CodeInvalidCardDetails     ResultCode = 4005
	CodeUnauthorized           ResultCode = 4010
	CodeFlowNotFound           ResultCode = 4040
	CodeAccountNotFound        ResultCode = 4041
	CodeInvalidStateTransition ResultCode = 4090
	CodeIdempotencyInProgress  ResultCode = 4091
	CodeIdempotencyKeyReused   ResultCode = 4092

	CodeCardNotFound              ResultCode = 5001
	CodeCardInactive              ResultCode = 5002
	CodeCardExpired               ResultCode = 5003
	CodeSecurityCodeMismatch      ResultCode = 5004
	CodeInsufficientFunds         ResultCode = 5005
	CodeAccountFrozen             ResultCode = 5006
	CodeRefundExceedsSettled      ResultCode = 5007
	CodeChargeExceedsHeld         ResultCode = 5008
	CodeFlowExpired               ResultCode = 5009
	CodeMerchantInsufficientFunds ResultCode = 5010

	CodeInternalError ResultCode = 9000
	CodeStorageError  ResultCode = 9001
	CodeTimeout       ResultCode = 9002
)

var resultMessages = map[ResultCode]string{
	CodeOK:              "OK",
	CodeFlowCreated:     "Payment flow created",
	CodeFlowHeld:        "Funds held",
	CodeFlowSettled:     "Payment captured",
	CodeFlowVoided:      "Hold released",
	CodeFlowReturned:    "Refund processed",
	CodeAccountCredited: "Account credited",

	CodeInvalidRequest:         "Invalid request",
	CodeMissingField:           "Required field is missing",
	CodeInvalidAmount:          "Invalid amount",
	CodeUnsupportedCurrency:    "Unsupported currency",
	CodeInvalidURL:             "Invalid URL",
	CodeInvalidCardDetails:     "Invalid card details",
	CodeUnauthorized:           "Invalid or missing API key",
	CodeFlowNotFound:           "Payment flow not found",
	CodeAccountNotFound:        "Account not found",
	CodeInvalidStateTransition: "Operation not allowed in the current flow state",
	CodeIdempotencyInProgress:  "A request with this idempotency key is still in progress",
	CodeIdempotencyKeyReused:   "Idempotency key was already used with a different request",

	CodeCardNotFound:              "Card not found",
	CodeCardInactive:              "Card is not active",
	CodeCardExpired:               "Card has expired",
	CodeSecurityCodeMismatch:      "Security code does not match",
	CodeInsufficientFunds:         "Insufficient funds",
	CodeAccountFrozen:             "Account is frozen",
	CodeRefundExceedsSettled:      "Refund exceeds the settled amount",
	CodeChargeExceedsHeld:         "Charge exceeds the held amount",
	CodeFlowExpired:               "Payment flow has expired",
	CodeMerchantInsufficientFunds: "Merchant balance is insufficient for this refund",

	CodeInternalError: "Internal error",
	CodeStorageError:  "Storage error",
	CodeTimeout:       "Request timed out",
}

var statusOverrides = map[ResultCode]int{
	CodeUnauthorized:           http.StatusUnauthorized,
	CodeFlowNotFound:           http.StatusNotFound,
	CodeAccountNotFound:        http.StatusNotFound,
	CodeInvalidStateTransition: http.StatusConflict,
	CodeIdempotencyInProgress:  http.StatusConflict,
	CodeIdempotencyKeyReused:   http.StatusConflict,
	CodeTimeout:                http.StatusGatewayTimeout,
}

func (c ResultCode) Int() int {
	return int(c)
}

func (c ResultCode) Message() string {
	if msg, ok := resultMessages[c]; ok {
		return msg
	}
	return resultMessages[c.rangeBase()]
}

func (c ResultCode) Success() bool {
	return c >= 1000 && c < 2000
}

// Retryable marks outcomes the caller must treat as unknown.
func (c ResultCode) Retryable() bool {
	return c >= 9000 && c < 10000
}

func (c ResultCode) HTTPStatus() int {
	if status, ok := statusOverrides[c]; ok {
		return status
	}
	switch {
	case c >= 1000 && c < 2000:
		return http.StatusOK
	case c >= 4000 && c < 5000:
		return http.StatusBadRequest
	case c >= 5000 && c < 6000:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (c ResultCode) rangeBase() ResultCode {
	switch {
	case c >= 1000 && c < 2000:
		return CodeOK
	case c >= 4000 && c < 5000:
		return CodeInvalidRequest
	case c >= 5000 && c < 6000:
		return CodeInsufficientFunds
	default:
		return CodeInternalError
	}
}
