package controller

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-novapay/app/mapper"
	"github.com/vibast-solutions/ms-go-novapay/app/service"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

const (
	opReserve      = "reserve"
	opAuthorize    = "authorize"
	opCharge       = "charge"
	opVoid         = "void"
	opRefund       = "refund"
	opLookup       = "lookup"
	opListFlows    = "list_flows"
	opTransactions = "list_transactions"
	opBalances     = "list_balances"
	opCheckout     = "checkout"
	opCredit       = "credit_account"
	opRetryWebhook = "retry_webhook"
)

// FlowController serves the merchant API. Routes are expected behind
// MerchantAuthMiddleware.
type FlowController struct {
	flows           *service.FlowService
	checkoutBaseURL string
	responder
}

func NewFlowController(flows *service.FlowService, idempotency idempotencyExecutor, checkoutBaseURL string, timeout time.Duration) *FlowController {
	return &FlowController{
		flows:           flows,
		checkoutBaseURL: checkoutBaseURL,
		responder:       newResponder(idempotency, timeout, "flows-controller"),
	}
}

func (c *FlowController) Health(ctx echo.Context) error {
	return writeHealth(ctx)
}

func (c *FlowController) Reserve(ctx echo.Context) error {
	req, err := types.NewReserveFlowRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opReserve, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opReserve, err)
	}

	principal := principalFrom(ctx)
	hash := types.Fingerprint(opReserve, "", req)
	return c.run(ctx, opReserve, principal.APIKeyID, hash, func(reqCtx context.Context) *types.Envelope {
		flow, err := c.flows.Reserve(reqCtx, principal, req)
		if err != nil {
			return c.failure(ctx, opReserve, err, "")
		}
		return c.success(types.CodeFlowCreated, mapper.ReserveToResponse(flow, c.checkoutBaseURL), flow.ID)
	})
}

func (c *FlowController) Charge(ctx echo.Context) error {
	req, err := types.NewChargeFlowRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opCharge, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opCharge, err)
	}

	principal := principalFrom(ctx)
	hash := types.Fingerprint(opCharge, req.GetFlowID(), req)
	return c.run(ctx, opCharge, principal.APIKeyID, hash, func(reqCtx context.Context) *types.Envelope {
		flow, err := c.flows.Charge(reqCtx, principal, req)
		if err != nil {
			return c.failure(ctx, opCharge, err, req.GetFlowID())
		}
		return c.success(types.CodeFlowSettled, mapper.ChargeToResponse(flow), flow.ID)
	})
}

func (c *FlowController) Void(ctx echo.Context) error {
	req, err := types.NewVoidFlowRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opVoid, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opVoid, err)
	}

	principal := principalFrom(ctx)
	hash := types.Fingerprint(opVoid, req.GetFlowID(), req)
	return c.run(ctx, opVoid, principal.APIKeyID, hash, func(reqCtx context.Context) *types.Envelope {
		flow, err := c.flows.Void(reqCtx, principal, req)
		if err != nil {
			return c.failure(ctx, opVoid, err, req.GetFlowID())
		}
		return c.success(types.CodeFlowVoided, mapper.VoidToResponse(flow), flow.ID)
	})
}

func (c *FlowController) Refund(ctx echo.Context) error {
	req, err := types.NewRefundFlowRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opRefund, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opRefund, err)
	}

	principal := principalFrom(ctx)
	hash := types.Fingerprint(opRefund, req.GetFlowID(), req)
	return c.run(ctx, opRefund, principal.APIKeyID, hash, func(reqCtx context.Context) *types.Envelope {
		flow, debit, err := c.flows.Refund(reqCtx, principal, req)
		if err != nil {
			return c.failure(ctx, opRefund, err, req.GetFlowID())
		}
		return c.success(types.CodeFlowReturned, mapper.RefundToResponse(flow, debit), flow.ID)
	})
}

func (c *FlowController) Lookup(ctx echo.Context) error {
	req, err := types.NewGetFlowRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opLookup, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opLookup, err)
	}

	principal := principalFrom(ctx)
	return c.run(ctx, opLookup, "", "", func(reqCtx context.Context) *types.Envelope {
		flow, err := c.flows.Lookup(reqCtx, principal, req.GetFlowID())
		if err != nil {
			return c.failure(ctx, opLookup, err, req.GetFlowID())
		}
		return c.success(types.CodeOK, mapper.FlowToResponse(flow), flow.ID)
	})
}

func (c *FlowController) ListFlows(ctx echo.Context) error {
	req, err := types.NewListFlowsRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opListFlows, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opListFlows, err)
	}

	principal := principalFrom(ctx)
	return c.run(ctx, opListFlows, "", "", func(reqCtx context.Context) *types.Envelope {
		items, err := c.flows.ListFlows(reqCtx, principal, req)
		if err != nil {
			return c.failure(ctx, opListFlows, err, "")
		}
		return c.success(types.CodeOK, mapper.FlowsToResponse(items), "")
	})
}

func (c *FlowController) ListTransactions(ctx echo.Context) error {
	req, err := types.NewGetFlowRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opTransactions, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opTransactions, err)
	}

	principal := principalFrom(ctx)
	return c.run(ctx, opTransactions, "", "", func(reqCtx context.Context) *types.Envelope {
		items, err := c.flows.ListTransactions(reqCtx, principal, req.GetFlowID())
		if err != nil {
			return c.failure(ctx, opTransactions, err, req.GetFlowID())
		}
		return c.success(types.CodeOK, mapper.LedgerTransactionsToResponse(items), req.GetFlowID())
	})
}

func (c *FlowController) ListBalances(ctx echo.Context) error {
	principal := principalFrom(ctx)
	return c.run(ctx, opBalances, "", "", func(reqCtx context.Context) *types.Envelope {
		items, err := c.flows.ListBalances(reqCtx, principal)
		if err != nil {
			return c.failure(ctx, opBalances, err, "")
		}
		return c.success(types.CodeOK, mapper.BalancesToResponse(items), "")
	})
}
