package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

type MerchantRepository struct {
	db DBTX
}

func NewMerchantRepository(db DBTX) *MerchantRepository {
	return &MerchantRepository{db: db}
}

func (r *MerchantRepository) Create(ctx context.Context, merchant *entity.Merchant) error {
	query := `
		INSERT INTO merchants (id, name, account_id, webhook_secret, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		merchant.ID,
		merchant.Name,
		merchant.AccountID,
		merchant.WebhookSecret,
		merchant.Status,
		merchant.CreatedAt,
		merchant.UpdatedAt,
	)
	if err != nil && isDuplicateEntryError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *MerchantRepository) FindByID(ctx context.Context, id string) (*entity.Merchant, error) {
	query := `
		SELECT id, name, account_id, webhook_secret, status, created_at, updated_at
		FROM merchants
		WHERE id = ?
	`
	merchant := &entity.Merchant{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&merchant.ID,
		&merchant.Name,
		&merchant.AccountID,
		&merchant.WebhookSecret,
		&merchant.Status,
		&merchant.CreatedAt,
		&merchant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return merchant, nil
}

func (r *MerchantRepository) CreateAPIKey(ctx context.Context, key *entity.APIKey) error {
	query := `
		INSERT INTO merchant_api_keys (id, merchant_id, key_hash, status, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		key.ID,
		key.MerchantID,
		key.KeyHash,
		key.Status,
		key.CreatedAt,
		nullableTimeValue(key.LastUsedAt),
	)
	if err != nil && isDuplicateEntryError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *MerchantRepository) FindAPIKeyByHash(ctx context.Context, keyHash string) (*entity.APIKey, error) {
	query := `
		SELECT id, merchant_id, key_hash, status, created_at, last_used_at
		FROM merchant_api_keys
		WHERE key_hash = ?
	`
	var lastUsedAt sql.NullTime
	key := &entity.APIKey{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, keyHash).Scan(
		&key.ID,
		&key.MerchantID,
		&key.KeyHash,
		&key.Status,
		&key.CreatedAt,
		&lastUsedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	key.LastUsedAt = timePtrFromNull(lastUsedAt)
	return key, nil
}

func (r *MerchantRepository) TouchAPIKey(ctx context.Context, id string, usedAt time.Time) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE merchant_api_keys SET last_used_at = ? WHERE id = ?`, usedAt, id)
	return err
}
