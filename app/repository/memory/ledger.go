package memory

import (
	"context"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
)

type LedgerRepository struct {
	store *Store
}

func (r *LedgerRepository) Create(ctx context.Context, tx *entity.LedgerTransaction) error {
	defer r.store.lock(ctx)()

	for _, existing := range r.store.st.ledger {
		if existing.ID == tx.ID {
			return repository.ErrAlreadyExists
		}
	}
	c := *tx
	r.store.st.ledger = append(r.store.st.ledger, &c)
	return nil
}

func (r *LedgerRepository) ListByFlow(ctx context.Context, flowID string) ([]*entity.LedgerTransaction, error) {
	defer r.store.lock(ctx)()

	items := make([]*entity.LedgerTransaction, 0)
	for _, tx := range r.store.st.ledger {
		if tx.FlowID != nil && *tx.FlowID == flowID {
			c := *tx
			items = append(items, &c)
		}
	}
	return items, nil
}

func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*entity.LedgerTransaction, error) {
	defer r.store.lock(ctx)()

	items := make([]*entity.LedgerTransaction, 0)
	for i := len(r.store.st.ledger) - 1; i >= 0; i-- {
		tx := r.store.st.ledger[i]
		if tx.AccountID == accountID {
			c := *tx
			items = append(items, &c)
		}
	}
	return page(items, limit, offset), nil
}
