// Package memory is a process-local storage driver. Transactions are
// serialized under one lock and rolled back by restoring a snapshot, so it
// offers the same linearization guarantees as the MySQL driver within a
// single process.
package memory

import (
	"context"
	"sync"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

type txKey struct{}

type balanceKey struct {
	accountID string
	currency  string
}

type state struct {
	flows       map[string]*entity.PaymentFlow
	balances    map[balanceKey]*entity.AccountBalance
	ledger      []*entity.LedgerTransaction
	idempotency map[string]*entity.IdempotencyRecord
	accounts    map[string]*entity.Account
	cards       map[string]*entity.Card
	merchants   map[string]*entity.Merchant
	apiKeys     map[string]*entity.APIKey
	deliveries  map[uint64]*entity.WebhookDelivery
	events      []*entity.FlowEvent

	nextDeliveryID uint64
	nextEventID    uint64
}

type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func newState() *state {
	return &state{
		flows:       make(map[string]*entity.PaymentFlow),
		balances:    make(map[balanceKey]*entity.AccountBalance),
		idempotency: make(map[string]*entity.IdempotencyRecord),
		accounts:    make(map[string]*entity.Account),
		cards:       make(map[string]*entity.Card),
		merchants:   make(map[string]*entity.Merchant),
		apiKeys:     make(map[string]*entity.APIKey),
		deliveries:  make(map[uint64]*entity.WebhookDelivery),
	}
}

// WithinTx holds the store lock for the whole of fn. Repository calls made
// with the context passed to fn do not lock again. Any error or panic from
// fn restores the state captured before it ran; a nested call only undoes
// its own writes.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		snapshot := s.st.clone()
		if err = fn(ctx); err != nil {
			s.st = snapshot
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
	}
	return err
}

func (s *Store) Flows() *FlowRepository {
	return &FlowRepository{store: s}
}

func (s *Store) Balances() *BalanceRepository {
	return &BalanceRepository{store: s}
}

func (s *Store) Ledger() *LedgerRepository {
	return &LedgerRepository{store: s}
}

func (s *Store) Idempotency() *IdempotencyRepository {
	return &IdempotencyRepository{store: s}
}

func (s *Store) Accounts() *AccountRepository {
	return &AccountRepository{store: s}
}

func (s *Store) Cards() *CardRepository {
	return &CardRepository{store: s}
}

func (s *Store) Merchants() *MerchantRepository {
	return &MerchantRepository{store: s}
}

func (s *Store) WebhookDeliveries() *WebhookDeliveryRepository {
	return &WebhookDeliveryRepository{store: s}
}

func (s *Store) FlowEvents() *FlowEventRepository {
	return &FlowEventRepository{store: s}
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// lock acquires the store lock unless ctx already runs inside one of this
// store's transactions. The returned func releases what was acquired.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.flows {
		c.flows[k] = v.Clone()
	}
	for k, v := range st.balances {
		b := *v
		c.balances[k] = &b
	}
	c.ledger = append(c.ledger, st.ledger...)
	for k, v := range st.idempotency {
		c.idempotency[k] = cloneIdempotencyRecord(v)
	}
	for k, v := range st.accounts {
		a := *v
		c.accounts[k] = &a
	}
	for k, v := range st.cards {
		card := *v
		c.cards[k] = &card
	}
	for k, v := range st.merchants {
		m := *v
		c.merchants[k] = &m
	}
	for k, v := range st.apiKeys {
		key := *v
		c.apiKeys[k] = &key
	}
	for k, v := range st.deliveries {
		d := *v
		c.deliveries[k] = &d
	}
	for _, e := range st.events {
		ev := *e
		c.events = append(c.events, &ev)
	}
	c.nextDeliveryID = st.nextDeliveryID
	c.nextEventID = st.nextEventID
	return c
}

func cloneIdempotencyRecord(r *entity.IdempotencyRecord) *entity.IdempotencyRecord {
	c := *r
	if r.ResponseBody != nil {
		c.ResponseBody = append([]byte(nil), r.ResponseBody...)
	}
	return &c
}

func page[T any](items []T, limit, offset int32) []T {
	if offset < 0 {
		offset = 0
	}
	if int(offset) >= len(items) {
		return make([]T, 0)
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}
