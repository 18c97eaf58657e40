package entity

import "time"

type AccountKind string

const (
	AccountKindPayer    AccountKind = "PAYER"
	AccountKindMerchant AccountKind = "MERCHANT"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
)

type Account struct {
	ID     string
	Kind   AccountKind
	Status AccountStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Account) Frozen() bool {
	return a.Status == AccountStatusFrozen
}
