package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
)

type BalanceRepository struct {
	store *Store
}

func (r *BalanceRepository) GetForUpdate(ctx context.Context, accountID, currency string) (*entity.AccountBalance, error) {
	defer r.store.lock(ctx)()

	key := balanceKey{accountID: accountID, currency: currency}
	balance, ok := r.store.st.balances[key]
	if !ok {
		balance = &entity.AccountBalance{
			AccountID: accountID,
			Currency:  currency,
			Amount:    decimal.Zero,
			UpdatedAt: time.Now().UTC(),
		}
		r.store.st.balances[key] = balance
	}
	c := *balance
	return &c, nil
}

func (r *BalanceRepository) Find(ctx context.Context, accountID, currency string) (*entity.AccountBalance, error) {
	defer r.store.lock(ctx)()

	balance, ok := r.store.st.balances[balanceKey{accountID: accountID, currency: currency}]
	if !ok {
		return nil, nil
	}
	c := *balance
	return &c, nil
}

func (r *BalanceRepository) Update(ctx context.Context, balance *entity.AccountBalance) error {
	defer r.store.lock(ctx)()

	key := balanceKey{accountID: balance.AccountID, currency: balance.Currency}
	current, ok := r.store.st.balances[key]
	if !ok || current.Version != balance.Version {
		return repository.ErrBalanceConflict
	}

	balance.Version++
	c := *balance
	r.store.st.balances[key] = &c
	return nil
}

func (r *BalanceRepository) ListByAccount(ctx context.Context, accountID string) ([]*entity.AccountBalance, error) {
	defer r.store.lock(ctx)()

	items := make([]*entity.AccountBalance, 0)
	for key, balance := range r.store.st.balances {
		if key.accountID != accountID {
			continue
		}
		c := *balance
		items = append(items, &c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Currency < items[j].Currency })
	return items, nil
}
