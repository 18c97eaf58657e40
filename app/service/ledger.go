package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

// Ledger implements the balance primitives. Each primitive runs in its own
// transaction, or joins the caller's when ctx already carries one. Balance
// rows are locked in (accountID, currency) order and every mutation writes
// exactly one ledger row per balance side.
type Ledger struct {
	tx       transactor
	balances balanceRepository
	entries  ledgerRepository
	accounts accountRepository
	now      func() time.Time
}

func NewLedger(repos Repositories) *Ledger {
	return &Ledger{
		tx:       repos.Tx,
		balances: repos.Balances,
		entries:  repos.Ledger,
		accounts: repos.Accounts,
		now:      utcNow,
	}
}

type balanceRef struct {
	accountID string
	currency  string
}

type entryMeta struct {
	flowID         string
	holdID         string
	counterpartyID string
	fee            decimal.Decimal
}

// Hold debits amount from the account and returns the HOLD_DEBIT row, whose
// HoldID identifies the hold.
func (l *Ledger) Hold(ctx context.Context, accountID, currency string, amount decimal.Decimal, flowID string) (*entity.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entry *entity.LedgerTransaction
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := l.activeAccount(ctx, accountID); err != nil {
			return err
		}

		balances, err := l.lockBalances(ctx, balanceRef{accountID, currency})
		if err != nil {
			return err
		}

		balance := balances[balanceRef{accountID, currency}]
		if balance.Amount.LessThan(amount) {
			return ErrInsufficientFunds
		}

		entry, err = l.apply(ctx, balance, amount.Neg(), entity.LedgerHoldDebit, entryMeta{
			flowID: flowID,
			holdID: newID("hold"),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Commit credits destination with amount - fee. The payer side was debited
// when the hold was placed.
func (l *Ledger) Commit(ctx context.Context, holdID string, amount, fee decimal.Decimal, destinationID, currency, flowID, payerID string) (*entity.LedgerTransaction, error) {
	if !amount.IsPositive() || fee.IsNegative() || fee.GreaterThan(amount) {
		return nil, ErrInvalidAmount
	}

	var entry *entity.LedgerTransaction
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := l.activeAccount(ctx, destinationID); err != nil {
			return err
		}

		balances, err := l.lockBalances(ctx, balanceRef{destinationID, currency})
		if err != nil {
			return err
		}

		entry, err = l.apply(ctx, balances[balanceRef{destinationID, currency}], amount.Sub(fee), entity.LedgerCaptureCredit, entryMeta{
			flowID:         flowID,
			holdID:         holdID,
			counterpartyID: payerID,
			fee:            fee,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Release returns amount of a hold to the account. txType is VOID_CREDIT for
// voids and partial-capture remainders, EXPIRY_CREDIT for expired holds.
func (l *Ledger) Release(ctx context.Context, holdID, accountID, currency string, amount decimal.Decimal, flowID string, txType entity.LedgerTransactionType) (*entity.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entry *entity.LedgerTransaction
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		balances, err := l.lockBalances(ctx, balanceRef{accountID, currency})
		if err != nil {
			return err
		}

		entry, err = l.apply(ctx, balances[balanceRef{accountID, currency}], amount, txType, entryMeta{
			flowID: flowID,
			holdID: holdID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Refund moves amount from source to destination and returns the debit and
// credit rows. A short source balance fails with ErrInsufficientFunds.
func (l *Ledger) Refund(ctx context.Context, sourceID, destinationID, currency string, amount decimal.Decimal, flowID string) (*entity.LedgerTransaction, *entity.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}

	var debit, credit *entity.LedgerTransaction
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := l.activeAccount(ctx, sourceID); err != nil {
			return err
		}

		source := balanceRef{sourceID, currency}
		destination := balanceRef{destinationID, currency}
		balances, err := l.lockBalances(ctx, source, destination)
		if err != nil {
			return err
		}

		if balances[source].Amount.LessThan(amount) {
			return ErrInsufficientFunds
		}

		debit, err = l.apply(ctx, balances[source], amount.Neg(), entity.LedgerRefundDebit, entryMeta{
			flowID:         flowID,
			counterpartyID: destinationID,
		})
		if err != nil {
			return err
		}

		credit, err = l.apply(ctx, balances[destination], amount, entity.LedgerRefundCredit, entryMeta{
			flowID:         flowID,
			counterpartyID: sourceID,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return debit, credit, nil
}

// Credit tops up an account outside of any flow.
func (l *Ledger) Credit(ctx context.Context, accountID, currency string, amount decimal.Decimal, reference string) (*entity.LedgerTransaction, *entity.AccountBalance, error) {
	if !amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}

	var (
		entry   *entity.LedgerTransaction
		balance *entity.AccountBalance
	)
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := l.activeAccount(ctx, accountID); err != nil {
			return err
		}

		ref := balanceRef{accountID, currency}
		balances, err := l.lockBalances(ctx, ref)
		if err != nil {
			return err
		}

		balance = balances[ref]
		entry, err = l.apply(ctx, balance, amount, entity.LedgerAdjustmentCredit, entryMeta{
			counterpartyID: strings.TrimSpace(reference),
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, balance, nil
}

func (l *Ledger) activeAccount(ctx context.Context, accountID string) (*entity.Account, error) {
	account, err := l.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if account.Frozen() {
		return nil, ErrAccountFrozen
	}
	return account, nil
}

// lockBalances locks the given rows in sorted order so two transactions
// touching the same pair of balances cannot deadlock on each other.
func (l *Ledger) lockBalances(ctx context.Context, refs ...balanceRef) (map[balanceRef]*entity.AccountBalance, error) {
	sorted := append([]balanceRef(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].accountID != sorted[j].accountID {
			return sorted[i].accountID < sorted[j].accountID
		}
		return sorted[i].currency < sorted[j].currency
	})

	balances := make(map[balanceRef]*entity.AccountBalance, len(sorted))
	for _, ref := range sorted {
		if _, ok := balances[ref]; ok {
			continue
		}
		balance, err := l.balances.GetForUpdate(ctx, ref.accountID, ref.currency)
		if err != nil {
			return nil, err
		}
		balances[ref] = balance
	}
	return balances, nil
}

func (l *Ledger) apply(ctx context.Context, balance *entity.AccountBalance, delta decimal.Decimal, txType entity.LedgerTransactionType, meta entryMeta) (*entity.LedgerTransaction, error) {
	next := balance.Amount.Add(delta)
	if next.IsNegative() {
		return nil, ErrInsufficientFunds
	}

	now := l.now()
	balance.Amount = next
	balance.UpdatedAt = now
	if err := l.balances.Update(ctx, balance); err != nil {
		return nil, err
	}

	entry := &entity.LedgerTransaction{
		ID:             newID("ltx"),
		AccountID:      balance.AccountID,
		Amount:         delta,
		Currency:       balance.Currency,
		Type:           txType,
		CounterpartyID: normalizeOptionalString(meta.counterpartyID),
		FlowID:         normalizeOptionalString(meta.flowID),
		HoldID:         normalizeOptionalString(meta.holdID),
		Fee:            meta.fee,
		BalanceAfter:   next,
		Status:         entity.LedgerStatusCompleted,
		CreatedAt:      now,
	}
	if err := l.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func normalizeOptionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
