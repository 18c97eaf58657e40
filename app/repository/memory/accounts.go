package memory

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
)

type AccountRepository struct {
	store *Store
}

func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.st.accounts[account.ID]; ok {
		return repository.ErrAlreadyExists
	}
	c := *account
	r.store.st.accounts[account.ID] = &c
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	defer r.store.lock(ctx)()

	account, ok := r.store.st.accounts[id]
	if !ok {
		return nil, nil
	}
	c := *account
	return &c, nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, account *entity.Account) error {
	defer r.store.lock(ctx)()

	current, ok := r.store.st.accounts[account.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current.Status = account.Status
	current.UpdatedAt = account.UpdatedAt
	return nil
}

type CardRepository struct {
	store *Store
}

func (r *CardRepository) Create(ctx context.Context, card *entity.Card) error {
	defer r.store.lock(ctx)()

	for _, existing := range r.store.st.cards {
		if existing.ID == card.ID || existing.NumberHash == card.NumberHash {
			return repository.ErrAlreadyExists
		}
	}
	c := *card
	r.store.st.cards[card.ID] = &c
	return nil
}

func (r *CardRepository) FindByNumberHash(ctx context.Context, numberHash string) (*entity.Card, error) {
	defer r.store.lock(ctx)()

	for _, card := range r.store.st.cards {
		if card.NumberHash == numberHash {
			c := *card
			return &c, nil
		}
	}
	return nil, nil
}

type MerchantRepository struct {
	store *Store
}

func (r *MerchantRepository) Create(ctx context.Context, merchant *entity.Merchant) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.st.merchants[merchant.ID]; ok {
		return repository.ErrAlreadyExists
	}
	c := *merchant
	r.store.st.merchants[merchant.ID] = &c
	return nil
}

func (r *MerchantRepository) FindByID(ctx context.Context, id string) (*entity.Merchant, error) {
	defer r.store.lock(ctx)()

	merchant, ok := r.store.st.merchants[id]
	if !ok {
		return nil, nil
	}
	c := *merchant
	return &c, nil
}

func (r *MerchantRepository) CreateAPIKey(ctx context.Context, key *entity.APIKey) error {
	defer r.store.lock(ctx)()

	for _, existing := range r.store.st.apiKeys {
		if existing.ID == key.ID || existing.KeyHash == key.KeyHash {
			return repository.ErrAlreadyExists
		}
	}
	c := *key
	r.store.st.apiKeys[key.ID] = &c
	return nil
}

func (r *MerchantRepository) FindAPIKeyByHash(ctx context.Context, keyHash string) (*entity.APIKey, error) {
	defer r.store.lock(ctx)()

	for _, key := range r.store.st.apiKeys {
		if key.KeyHash == keyHash {
			c := *key
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MerchantRepository) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	defer r.store.lock(ctx)()

	if key, ok := r.store.st.apiKeys[id]; ok {
		t := usedAt
		key.LastUsedAt = &t
	}
	return nil
}
