package service

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/provider"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrFlowNotFound           = errors.New("flow not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrMerchantNotFound       = errors.New("merchant not found")
	ErrDeliveryNotFound       = errors.New("webhook delivery not found")
	ErrUnsupportedCurrency    = errors.New("currency is not supported")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrFlowExpired            = errors.New("flow has expired")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrAccountFrozen          = errors.New("account is frozen")
	ErrChargeExceedsHeld      = errors.New("charge exceeds held amount")
	ErrRefundExceedsSettled   = errors.New("refund exceeds settled amount")
	ErrMerchantInsufficient   = errors.New("merchant balance is insufficient")
	ErrIdempotencyInProgress  = errors.New("idempotent request still in progress")
	ErrIdempotencyKeyReused   = errors.New("idempotency key reused with a different request")
	ErrEventPublisherDisabled = errors.New("event publisher is not configured")
)

// FlowError is a failed operation that still produced a flow worth
// reporting, such as a declined authorization that moved the flow to DENIED.
type FlowError struct {
	Flow *entity.PaymentFlow
	Err  error
}

func (e *FlowError) Error() string {
	return e.Err.Error()
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

var codeBySentinel = []struct {
	err  error
	code types.ResultCode
}{
	{ErrUnauthorized, types.CodeUnauthorized},
	{ErrFlowNotFound, types.CodeFlowNotFound},
	{ErrAccountNotFound, types.CodeAccountNotFound},
	{ErrDeliveryNotFound, types.CodeFlowNotFound},
	{ErrMerchantNotFound, types.CodeAccountNotFound},
	{ErrUnsupportedCurrency, types.CodeUnsupportedCurrency},
	{ErrInvalidAmount, types.CodeInvalidAmount},
	{ErrInvalidTransition, types.CodeInvalidStateTransition},
	{ErrIdempotencyInProgress, types.CodeIdempotencyInProgress},
	{ErrIdempotencyKeyReused, types.CodeIdempotencyKeyReused},
	{provider.ErrCardNotFound, types.CodeCardNotFound},
	{provider.ErrCardInactive, types.CodeCardInactive},
	{provider.ErrCardExpired, types.CodeCardExpired},
	{provider.ErrSecurityCodeMismatch, types.CodeSecurityCodeMismatch},
	{ErrInsufficientFunds, types.CodeInsufficientFunds},
	{ErrAccountFrozen, types.CodeAccountFrozen},
	{ErrRefundExceedsSettled, types.CodeRefundExceedsSettled},
	{ErrChargeExceedsHeld, types.CodeChargeExceedsHeld},
	{ErrFlowExpired, types.CodeFlowExpired},
	{ErrMerchantInsufficient, types.CodeMerchantInsufficientFunds},
	{context.DeadlineExceeded, types.CodeTimeout},
}

// ResultCodeOf maps an operation error onto the result code reported to
// callers. Unknown errors are system errors.
func ResultCodeOf(err error) types.ResultCode {
	if err == nil {
		return types.CodeOK
	}

	var reqErr *types.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Code
	}

	for _, item := range codeBySentinel {
		if errors.Is(err, item.err) {
			return item.code
		}
	}

	if errors.Is(err, repository.ErrFlowVersionConflict) || errors.Is(err, repository.ErrBalanceConflict) {
		return types.CodeStorageError
	}
	return types.CodeInternalError
}
