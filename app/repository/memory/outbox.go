package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
)

type WebhookDeliveryRepository struct {
	store *Store
}

func (r *WebhookDeliveryRepository) Create(ctx context.Context, delivery *entity.WebhookDelivery) error {
	defer r.store.lock(ctx)()

	r.store.st.nextDeliveryID++
	delivery.ID = r.store.st.nextDeliveryID
	c := *delivery
	r.store.st.deliveries[delivery.ID] = &c
	return nil
}

func (r *WebhookDeliveryRepository) Update(ctx context.Context, delivery *entity.WebhookDelivery) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.st.deliveries[delivery.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *delivery
	r.store.st.deliveries[delivery.ID] = &c
	return nil
}

func (r *WebhookDeliveryRepository) FindByID(ctx context.Context, id uint64) (*entity.WebhookDelivery, error) {
	defer r.store.lock(ctx)()

	delivery, ok := r.store.st.deliveries[id]
	if !ok {
		return nil, nil
	}
	c := *delivery
	return &c, nil
}

func (r *WebhookDeliveryRepository) ListDue(ctx context.Context, now time.Time, limit int32) ([]*entity.WebhookDelivery, error) {
	defer r.store.lock(ctx)()

	items := make([]*entity.WebhookDelivery, 0)
	for _, delivery := range r.store.st.deliveries {
		if delivery.Status != entity.WebhookDeliveryPending || delivery.NextAt == nil || delivery.NextAt.After(now) {
			continue
		}
		c := *delivery
		items = append(items, &c)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].NextAt.Equal(*items[j].NextAt) {
			return items[i].NextAt.Before(*items[j].NextAt)
		}
		return items[i].ID < items[j].ID
	})
	return page(items, limit, 0), nil
}

func (r *WebhookDeliveryRepository) ListByFlow(ctx context.Context, flowID string) ([]*entity.WebhookDelivery, error) {
	defer r.store.lock(ctx)()

	items := make([]*entity.WebhookDelivery, 0)
	for _, delivery := range r.store.st.deliveries {
		if delivery.FlowID == flowID {
			c := *delivery
			items = append(items, &c)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

type FlowEventRepository struct {
	store *Store
}

func (r *FlowEventRepository) Create(ctx context.Context, event *entity.FlowEvent) error {
	defer r.store.lock(ctx)()

	r.store.st.nextEventID++
	event.ID = r.store.st.nextEventID
	c := *event
	r.store.st.events = append(r.store.st.events, &c)
	return nil
}

func (r *FlowEventRepository) ListUnpublished(ctx context.Context, limit int32) ([]*entity.FlowEvent, error) {
	defer r.store.lock(ctx)()

	items := make([]*entity.FlowEvent, 0)
	for _, event := range r.store.st.events {
		if event.PublishedAt == nil {
			c := *event
			items = append(items, &c)
		}
	}
	return page(items, limit, 0), nil
}

func (r *FlowEventRepository) ListByFlow(ctx context.Context, flowID string) ([]*entity.FlowEvent, error) {
	defer r.store.lock(ctx)()

	items := make([]*entity.FlowEvent, 0)
	for _, event := range r.store.st.events {
		if event.FlowID == flowID {
			c := *event
			items = append(items, &c)
		}
	}
	return items, nil
}

func (r *FlowEventRepository) MarkPublished(ctx context.Context, ids []uint64, publishedAt time.Time) error {
	defer r.store.lock(ctx)()

	wanted := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for _, event := range r.store.st.events {
		if _, ok := wanted[event.ID]; ok {
			t := publishedAt
			event.PublishedAt = &t
		}
	}
	return nil
}
