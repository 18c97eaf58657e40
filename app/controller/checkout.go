package controller

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-novapay/app/mapper"
	"github.com/vibast-solutions/ms-go-novapay/app/service"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

// CheckoutController serves the payer-facing, unauthenticated routes.
type CheckoutController struct {
	flows *service.FlowService
	responder
}

func NewCheckoutController(flows *service.FlowService, timeout time.Duration) *CheckoutController {
	return &CheckoutController{
		flows:     flows,
		responder: newResponder(nil, timeout, "checkout-controller"),
	}
}

func (c *CheckoutController) Summary(ctx echo.Context) error {
	req, err := types.NewGetFlowRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opCheckout, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opCheckout, err)
	}

	return c.run(ctx, opCheckout, "", "", func(reqCtx context.Context) *types.Envelope {
		flow, err := c.flows.Checkout(reqCtx, req.GetFlowID())
		if err != nil {
			return c.failure(ctx, opCheckout, err, req.GetFlowID())
		}
		return c.success(types.CodeOK, mapper.CheckoutToResponse(flow), flow.ID)
	})
}

func (c *CheckoutController) Authorize(ctx echo.Context) error {
	req, err := types.NewAuthorizeFlowRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opAuthorize, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opAuthorize, err)
	}

	return c.run(ctx, opAuthorize, "", "", func(reqCtx context.Context) *types.Envelope {
		flow, err := c.flows.Authorize(reqCtx, req)
		if err != nil {
			env := c.failure(ctx, opAuthorize, err, req.GetFlowID())
			var flowErr *service.FlowError
			if errors.As(err, &flowErr) && flowErr.Flow != nil {
				env.Data = mapper.AuthorizeToResponse(flowErr.Flow)
			}
			return env
		}
		return c.success(types.CodeFlowHeld, mapper.AuthorizeToResponse(flow), flow.ID)
	})
}
