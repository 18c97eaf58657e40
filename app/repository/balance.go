package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

type BalanceRepository struct {
	db DBTX
}

func NewBalanceRepository(db DBTX) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetForUpdate locks the (account, currency) row, creating it with a zero
// amount first when it does not exist yet.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, accountID, currency string) (*entity.AccountBalance, error) {
	now := time.Now().UTC()
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT IGNORE INTO account_balances (account_id, currency, amount, version, updated_at)
		VALUES (?, ?, 0, 0, ?)
	`, accountID, currency, now)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT account_id, currency, amount, version, updated_at
		FROM account_balances
		WHERE account_id = ? AND currency = ?
		FOR UPDATE
	`
	balance := &entity.AccountBalance{}
	if err := scanBalance(conn(ctx, r.db).QueryRowContext(ctx, query, accountID, currency), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (r *BalanceRepository) Find(ctx context.Context, accountID, currency string) (*entity.AccountBalance, error) {
	query := `
		SELECT account_id, currency, amount, version, updated_at
		FROM account_balances
		WHERE account_id = ? AND currency = ?
	`
	balance := &entity.AccountBalance{}
	if err := scanBalance(conn(ctx, r.db).QueryRowContext(ctx, query, accountID, currency), balance); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return balance, nil
}

func (r *BalanceRepository) Update(ctx context.Context, balance *entity.AccountBalance) error {
	query := `
		UPDATE account_balances
		SET amount = ?, version = version + 1, updated_at = ?
		WHERE account_id = ? AND currency = ? AND version = ?
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		balance.Amount,
		balance.UpdatedAt,
		balance.AccountID,
		balance.Currency,
		balance.Version,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBalanceConflict
	}

	balance.Version++
	return nil
}

func (r *BalanceRepository) ListByAccount(ctx context.Context, accountID string) ([]*entity.AccountBalance, error) {
	query := `
		SELECT account_id, currency, amount, version, updated_at
		FROM account_balances
		WHERE account_id = ?
		ORDER BY currency ASC
	`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make([]*entity.AccountBalance, 0)
	for rows.Next() {
		balance := &entity.AccountBalance{}
		if err := scanBalance(rows, balance); err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return balances, nil
}

func scanBalance(scan rowScanner, balance *entity.AccountBalance) error {
	return scan.Scan(
		&balance.AccountID,
		&balance.Currency,
		&balance.Amount,
		&balance.Version,
		&balance.UpdatedAt,
	)
}
