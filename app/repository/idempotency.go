package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

type IdempotencyRepository struct {
	db DBTX
}

func NewIdempotencyRepository(db DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Claim inserts a PROCESSING record. The primary key on the idempotency key
// makes the insert the atomic claim; a second claimer gets ErrIdempotencyKeyExists.
func (r *IdempotencyRepository) Claim(ctx context.Context, record *entity.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_records (
			idempotency_key, operation, request_hash, claim_token, flow_id, status,
			response_code, response_body, created_at, locked_until, expires_at
		)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		record.Key,
		record.Operation,
		record.RequestHash,
		record.ClaimToken,
		nullableStringValue(record.FlowID),
		string(entity.IdempotencyProcessing),
		record.CreatedAt,
		record.LockedUntil,
		record.ExpiresAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrIdempotencyKeyExists
		}
		return err
	}
	record.Status = entity.IdempotencyProcessing
	return nil
}

func (r *IdempotencyRepository) Find(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	query := `
		SELECT idempotency_key, operation, request_hash, claim_token, flow_id, status,
			response_code, response_body, created_at, locked_until, expires_at
		FROM idempotency_records
		WHERE idempotency_key = ?
	`
	var (
		status string
		flowID sql.NullString
		body   []byte
	)
	record := &entity.IdempotencyRecord{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, key).Scan(
		&record.Key,
		&record.Operation,
		&record.RequestHash,
		&record.ClaimToken,
		&flowID,
		&status,
		&record.ResponseCode,
		&body,
		&record.CreatedAt,
		&record.LockedUntil,
		&record.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.Status = entity.IdempotencyStatus(status)
	record.FlowID = stringPtrFromNull(flowID)
	record.ResponseBody = body
	return record, nil
}

// Complete stores the response on the claim identified by record.ClaimToken.
// A claim that was taken over or released reports ErrIdempotencyNotFound.
func (r *IdempotencyRepository) Complete(ctx context.Context, record *entity.IdempotencyRecord) error {
	query := `
		UPDATE idempotency_records
		SET status = ?, flow_id = ?, response_code = ?, response_body = ?
		WHERE idempotency_key = ? AND claim_token = ? AND status = ?
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		string(entity.IdempotencyCompleted),
		nullableStringValue(record.FlowID),
		record.ResponseCode,
		record.ResponseBody,
		record.Key,
		record.ClaimToken,
		string(entity.IdempotencyProcessing),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrIdempotencyNotFound
	}
	record.Status = entity.IdempotencyCompleted
	return nil
}

// Release drops a PROCESSING claim, but only while claimToken still owns it.
func (r *IdempotencyRepository) Release(ctx context.Context, key, claimToken string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE idempotency_key = ? AND claim_token = ? AND status = ?`,
		key, claimToken, string(entity.IdempotencyProcessing))
	return err
}

// DeleteReclaimable removes the record under key when it has expired or is a
// PROCESSING claim whose lease ran out. A record claimed afresh in between
// is left alone.
func (r *IdempotencyRepository) DeleteReclaimable(ctx context.Context, key string, now time.Time) (bool, error) {
	query := `
		DELETE FROM idempotency_records
		WHERE idempotency_key = ?
			AND (expires_at <= ? OR (status = ? AND locked_until <= ?))
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, key, now, string(entity.IdempotencyProcessing), now)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteExpired removes up to limit records whose expires_at is not after now.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time, limit int32) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE expires_at <= ? LIMIT ?`, now, limit)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
