package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	query := `
		INSERT INTO accounts (id, kind, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		account.ID,
		string(account.Kind),
		string(account.Status),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil && isDuplicateEntryError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	query := `
		SELECT id, kind, status, created_at, updated_at
		FROM accounts
		WHERE id = ?
	`
	var kind, status string
	account := &entity.Account{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&kind,
		&status,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	account.Kind = entity.AccountKind(kind)
	account.Status = entity.AccountStatus(status)
	return account, nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, account *entity.Account) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		string(account.Status), account.UpdatedAt, account.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
