package controller

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/mapper"
	"github.com/vibast-solutions/ms-go-novapay/app/service"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

type webhookRetrier interface {
	Retry(ctx context.Context, id uint64) (*entity.WebhookDelivery, error)
}

// InternalController serves operator routes guarded by internal service
// auth.
type InternalController struct {
	admin    *service.AdminService
	webhooks webhookRetrier
	responder
}

func NewInternalController(admin *service.AdminService, webhooks webhookRetrier, timeout time.Duration) *InternalController {
	return &InternalController{
		admin:     admin,
		webhooks:  webhooks,
		responder: newResponder(nil, timeout, "internal-controller"),
	}
}

func (c *InternalController) CreditAccount(ctx echo.Context) error {
	req, err := types.NewCreditAccountRequestFromContext(ctx)
	if err != nil {
		return c.invalid(ctx, opCredit, err)
	}
	if err := req.Validate(); err != nil {
		return c.invalid(ctx, opCredit, err)
	}

	return c.run(ctx, opCredit, "", "", func(reqCtx context.Context) *types.Envelope {
		entry, balance, err := c.admin.CreditAccount(reqCtx, req)
		if err != nil {
			return c.failure(ctx, opCredit, err, "")
		}
		return c.success(types.CodeAccountCredited, mapper.CreditToResponse(entry, balance), "")
	})
}

type webhookDeliveryResponse struct {
	ID       uint64 `json:"id"`
	FlowID   string `json:"flowId"`
	Event    string `json:"eventType"`
	Status   int32  `json:"status"`
	Attempts int32  `json:"attempts"`
}

func (c *InternalController) RetryWebhook(ctx echo.Context) error {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("deliveryId")), 10, 64)
	if err != nil || id == 0 {
		return c.invalid(ctx, opRetryWebhook, &types.RequestError{Code: types.CodeInvalidRequest, Message: "deliveryId is invalid"})
	}

	return c.run(ctx, opRetryWebhook, "", "", func(reqCtx context.Context) *types.Envelope {
		delivery, err := c.webhooks.Retry(reqCtx, id)
		if delivery == nil {
			return c.failure(ctx, opRetryWebhook, err, "")
		}
		if err != nil {
			c.logger.WithError(err).WithField("delivery_id", id).Warn("Webhook retry attempt failed")
		}
		return c.success(types.CodeOK, &webhookDeliveryResponse{
			ID:       delivery.ID,
			FlowID:   delivery.FlowID,
			Event:    delivery.EventType,
			Status:   delivery.Status,
			Attempts: delivery.Attempts,
		}, delivery.FlowID)
	})
}
