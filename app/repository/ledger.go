package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

const ledgerColumns = `
	id, account_id, amount, currency, type, counterparty_id, flow_id, hold_id,
	fee, balance_after, status, created_at
`

type LedgerRepository struct {
	db DBTX
}

func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *entity.LedgerTransaction) error {
	query := `INSERT INTO ledger_transactions (` + ledgerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		tx.ID,
		tx.AccountID,
		tx.Amount,
		tx.Currency,
		string(tx.Type),
		nullableStringValue(tx.CounterpartyID),
		nullableStringValue(tx.FlowID),
		nullableStringValue(tx.HoldID),
		tx.Fee,
		tx.BalanceAfter,
		tx.Status,
		tx.CreatedAt,
	)
	if err != nil && isDuplicateEntryError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *LedgerRepository) ListByFlow(ctx context.Context, flowID string) ([]*entity.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM ledger_transactions
		WHERE flow_id = ?
		ORDER BY created_at ASC, id ASC`
	return r.findMany(ctx, query, flowID)
}

func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*entity.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM ledger_transactions
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	return r.findMany(ctx, query, accountID, limit, offset)
}

func (r *LedgerRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*entity.LedgerTransaction, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.LedgerTransaction, 0)
	for rows.Next() {
		item := &entity.LedgerTransaction{}
		if err := scanLedgerTransaction(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanLedgerTransaction(scan rowScanner, tx *entity.LedgerTransaction) error {
	var (
		txType         string
		counterpartyID sql.NullString
		flowID         sql.NullString
		holdID         sql.NullString
	)
	if err := scan.Scan(
		&tx.ID,
		&tx.AccountID,
		&tx.Amount,
		&tx.Currency,
		&txType,
		&counterpartyID,
		&flowID,
		&holdID,
		&tx.Fee,
		&tx.BalanceAfter,
		&tx.Status,
		&tx.CreatedAt,
	); err != nil {
		return err
	}
	tx.Type = entity.LedgerTransactionType(txType)
	tx.CounterpartyID = stringPtrFromNull(counterpartyID)
	tx.FlowID = stringPtrFromNull(flowID)
	tx.HoldID = stringPtrFromNull(holdID)
	return nil
}
