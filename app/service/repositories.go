package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
)

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type flowRepository interface {
	Create(ctx context.Context, flow *entity.PaymentFlow) error
	Update(ctx context.Context, flow *entity.PaymentFlow) error
	FindByID(ctx context.Context, id string) (*entity.PaymentFlow, error)
	FindByIDForUpdate(ctx context.Context, id string) (*entity.PaymentFlow, error)
	List(ctx context.Context, filter repository.FlowFilter) ([]*entity.PaymentFlow, error)
	ListExpiredHeld(ctx context.Context, now time.Time, limit int32) ([]*entity.PaymentFlow, error)
}

type balanceRepository interface {
	GetForUpdate(ctx context.Context, accountID, currency string) (*entity.AccountBalance, error)
	Find(ctx context.Context, accountID, currency string) (*entity.AccountBalance, error)
	Update(ctx context.Context, balance *entity.AccountBalance) error
	ListByAccount(ctx context.Context, accountID string) ([]*entity.AccountBalance, error)
}

type ledgerRepository interface {
	Create(ctx context.Context, tx *entity.LedgerTransaction) error
	ListByFlow(ctx context.Context, flowID string) ([]*entity.LedgerTransaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*entity.LedgerTransaction, error)
}

type idempotencyRepository interface {
	Claim(ctx context.Context, record *entity.IdempotencyRecord) error
	Find(ctx context.Context, key string) (*entity.IdempotencyRecord, error)
	Complete(ctx context.Context, record *entity.IdempotencyRecord) error
	Release(ctx context.Context, key, claimToken string) error
	DeleteReclaimable(ctx context.Context, key string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time, limit int32) (int64, error)
}

type accountRepository interface {
	Create(ctx context.Context, account *entity.Account) error
	FindByID(ctx context.Context, id string) (*entity.Account, error)
	UpdateStatus(ctx context.Context, account *entity.Account) error
}

type cardRepository interface {
	Create(ctx context.Context, card *entity.Card) error
	FindByNumberHash(ctx context.Context, numberHash string) (*entity.Card, error)
}

type merchantRepository interface {
	Create(ctx context.Context, merchant *entity.Merchant) error
	FindByID(ctx context.Context, id string) (*entity.Merchant, error)
	CreateAPIKey(ctx context.Context, key *entity.APIKey) error
	FindAPIKeyByHash(ctx context.Context, keyHash string) (*entity.APIKey, error)
	TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error
}

type webhookDeliveryRepository interface {
	Create(ctx context.Context, delivery *entity.WebhookDelivery) error
	Update(ctx context.Context, delivery *entity.WebhookDelivery) error
	FindByID(ctx context.Context, id uint64) (*entity.WebhookDelivery, error)
	ListDue(ctx context.Context, now time.Time, limit int32) ([]*entity.WebhookDelivery, error)
	ListByFlow(ctx context.Context, flowID string) ([]*entity.WebhookDelivery, error)
}

type flowEventRepository interface {
	Create(ctx context.Context, event *entity.FlowEvent) error
	ListUnpublished(ctx context.Context, limit int32) ([]*entity.FlowEvent, error)
	ListByFlow(ctx context.Context, flowID string) ([]*entity.FlowEvent, error)
	MarkPublished(ctx context.Context, ids []uint64, publishedAt time.Time) error
}

// Repositories is the storage a driver hands to the services. Every
// repository must join the transaction carried by the context Tx passes in.
type Repositories struct {
	Tx                transactor
	Flows             flowRepository
	Balances          balanceRepository
	Ledger            ledgerRepository
	Idempotency       idempotencyRepository
	Accounts          accountRepository
	Cards             cardRepository
	Merchants         merchantRepository
	WebhookDeliveries webhookDeliveryRepository
	FlowEvents        flowEventRepository
}
