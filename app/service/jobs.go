package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/metrics"
)

type eventPublisher interface {
	Publish(ctx context.Context, events []*entity.FlowEvent) error
}

// RunExpireHeldBatch expires HELD flows whose hold window has passed.
func (s *FlowService) RunExpireHeldBatch(ctx context.Context, limit int32) (int, error) {
	items, err := s.flows.ListExpiredHeld(ctx, s.now(), batchSize(limit))
	if err != nil {
		return 0, err
	}

	var (
		firstErr error
		expired  int
	)
	for _, flow := range items {
		if flow == nil {
			continue
		}
		ok, err := s.ExpireHeld(ctx, flow.ID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, firstErr
}

// RunDispatchBatch delivers due webhooks.
func (d *WebhookDispatcher) RunDispatchBatch(ctx context.Context, limit int32) error {
	return d.DispatchDue(ctx, batchSize(limit))
}

// EventRelay forwards unpublished flow events to the event stream, in
// insertion order, and marks them published.
type EventRelay struct {
	events    flowEventRepository
	publisher eventPublisher
	now       func() time.Time
}

func NewEventRelay(repos Repositories, publisher eventPublisher) *EventRelay {
	return &EventRelay{
		events:    repos.FlowEvents,
		publisher: publisher,
		now:       utcNow,
	}
}

func (r *EventRelay) RunPublishBatch(ctx context.Context, limit int32) (int, error) {
	if r.publisher == nil {
		return 0, ErrEventPublisherDisabled
	}

	items, err := r.events.ListUnpublished(ctx, batchSize(limit))
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, items); err != nil {
		return 0, err
	}

	ids := make([]uint64, 0, len(items))
	for _, event := range items {
		ids = append(ids, event.ID)
	}
	if err := r.events.MarkPublished(ctx, ids, r.now()); err != nil {
		return 0, err
	}

	metrics.ObserveEventsPublished(len(ids))
	return len(ids), nil
}

// RunPurgeBatch removes expired idempotency records.
func (s *IdempotencyService) RunPurgeBatch(ctx context.Context, limit int32) (int64, error) {
	return s.Purge(ctx, batchSize(limit))
}

func batchSize(limit int32) int32 {
	if limit <= 0 {
		return defaultBatchSize
	}
	return limit
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
