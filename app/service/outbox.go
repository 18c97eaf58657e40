package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/metrics"
	"github.com/vibast-solutions/ms-go-novapay/app/money"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

const (
	EventFlowCreated  = "flow.created"
	EventFlowHeld     = "flow.held"
	EventFlowDenied   = "flow.denied"
	EventFlowSettled  = "flow.settled"
	EventFlowVoided   = "flow.voided"
	EventFlowReturned = "flow.returned"
	EventFlowExpired  = "flow.expired"
)

// Outbox records flow transitions. Every transition gets a flow event for
// the event stream; flows with a notify URL also get a pending webhook
// delivery. Both rows are written in the caller's transaction.
type Outbox struct {
	events     flowEventRepository
	deliveries webhookDeliveryRepository
}

func NewOutbox(repos Repositories) *Outbox {
	return &Outbox{
		events:     repos.FlowEvents,
		deliveries: repos.WebhookDeliveries,
	}
}

func (o *Outbox) Record(ctx context.Context, flow *entity.PaymentFlow, from *entity.FlowState, eventType string, now time.Time) error {
	payload, err := json.Marshal(webhookEvent(flow, eventType, now))
	if err != nil {
		return err
	}

	event := &entity.FlowEvent{
		FlowID:      flow.ID,
		MerchantID:  flow.MerchantID,
		EventType:   eventType,
		FromState:   from,
		ToState:     flow.State,
		ResultCode:  flow.ResultCode,
		PayloadJSON: string(payload),
		CreatedAt:   now,
	}
	if err := o.events.Create(ctx, event); err != nil {
		return err
	}

	if flow.NotifyURL != nil {
		nextAt := now
		delivery := &entity.WebhookDelivery{
			FlowID:      flow.ID,
			MerchantID:  flow.MerchantID,
			EventType:   eventType,
			URL:         *flow.NotifyURL,
			PayloadJSON: string(payload),
			Status:      entity.WebhookDeliveryPending,
			NextAt:      &nextAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := o.deliveries.Create(ctx, delivery); err != nil {
			return err
		}
	}

	fromState := ""
	if from != nil {
		fromState = string(*from)
	}
	metrics.ObserveTransition(fromState, string(flow.State))
	return nil
}

func webhookEvent(flow *entity.PaymentFlow, eventType string, now time.Time) *types.WebhookEvent {
	event := &types.WebhookEvent{
		EventID:      newID("evt"),
		EventType:    eventType,
		FlowID:       flow.ID,
		State:        string(flow.State),
		ResultCode:   flow.ResultCode,
		Amount:       money.Format(flow.Amount),
		Currency:     flow.Currency,
		Timestamp:    now.UTC().Format(time.RFC3339),
		MerchantData: flow.MerchantData,
	}
	if flow.MerchantRef != nil {
		event.MerchantRef = *flow.MerchantRef
	}
	return event
}
