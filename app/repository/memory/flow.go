package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
)

type FlowRepository struct {
	store *Store
}

func (r *FlowRepository) Create(ctx context.Context, flow *entity.PaymentFlow) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.st.flows[flow.ID]; ok {
		return repository.ErrFlowAlreadyExists
	}
	r.store.st.flows[flow.ID] = flow.Clone()
	return nil
}

func (r *FlowRepository) Update(ctx context.Context, flow *entity.PaymentFlow) error {
	defer r.store.lock(ctx)()

	current, ok := r.store.st.flows[flow.ID]
	if !ok || current.Version != flow.Version {
		return repository.ErrFlowVersionConflict
	}

	flow.Version++
	r.store.st.flows[flow.ID] = flow.Clone()
	return nil
}

func (r *FlowRepository) FindByID(ctx context.Context, id string) (*entity.PaymentFlow, error) {
	defer r.store.lock(ctx)()

	flow, ok := r.store.st.flows[id]
	if !ok {
		return nil, nil
	}
	return flow.Clone(), nil
}

// FindByIDForUpdate is FindByID: transactions already hold the store lock.
func (r *FlowRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.PaymentFlow, error) {
	return r.FindByID(ctx, id)
}

func (r *FlowRepository) List(ctx context.Context, filter repository.FlowFilter) ([]*entity.PaymentFlow, error) {
	defer r.store.lock(ctx)()

	items := make([]*entity.PaymentFlow, 0)
	for _, flow := range r.store.st.flows {
		if strings.TrimSpace(filter.MerchantID) != "" && flow.MerchantID != filter.MerchantID {
			continue
		}
		if strings.TrimSpace(filter.State) != "" && string(flow.State) != filter.State {
			continue
		}
		items = append(items, flow.Clone())
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})

	return page(items, filter.Limit, filter.Offset), nil
}

func (r *FlowRepository) ListExpiredHeld(ctx context.Context, now time.Time, limit int32) ([]*entity.PaymentFlow, error) {
	defer r.store.lock(ctx)()

	items := make([]*entity.PaymentFlow, 0)
	for _, flow := range r.store.st.flows {
		if flow.State == entity.FlowStateHeld && flow.ExpiresAt.Before(now) {
			items = append(items, flow.Clone())
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].ExpiresAt.Before(items[j].ExpiresAt)
	})

	return page(items, limit, 0), nil
}
