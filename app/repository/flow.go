package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

const flowColumns = `
	id, merchant_id, api_key_id, amount, currency, memo, merchant_ref, merchant_data_json,
	state, result_code, held_amount, settled_amount, returned_amount, fee_amount, net_amount,
	card_id, payer_id, hold_id, on_complete, on_cancel, notify_url,
	charge_transaction_id, refund_transaction_ids_json,
	created_at, held_at, settled_at, voided_at, returned_at, denied_at, expired_at, expires_at, updated_at,
	version
`

type FlowFilter struct {
	MerchantID string
	State      string
	Limit      int32
	Offset     int32
}

type FlowRepository struct {
	db DBTX
}

func NewFlowRepository(db DBTX) *FlowRepository {
	return &FlowRepository{db: db}
}

func (r *FlowRepository) Create(ctx context.Context, flow *entity.PaymentFlow) error {
	merchantData, err := serializeMetadata(flow.MerchantData)
	if err != nil {
		return err
	}
	refundIDs, err := serializeStringList(flow.RefundTransactionIDs)
	if err != nil {
		return err
	}

	query := `INSERT INTO payment_flows (` + flowColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = conn(ctx, r.db).ExecContext(ctx, query,
		flow.ID,
		flow.MerchantID,
		flow.APIKeyID,
		flow.Amount,
		flow.Currency,
		flow.Memo,
		nullableStringValue(flow.MerchantRef),
		merchantData,
		string(flow.State),
		flow.ResultCode,
		flow.HeldAmount,
		flow.SettledAmount,
		flow.ReturnedAmount,
		flow.FeeAmount,
		flow.NetAmount,
		nullableStringValue(flow.CardID),
		nullableStringValue(flow.PayerID),
		nullableStringValue(flow.HoldID),
		nullableStringValue(flow.OnComplete),
		nullableStringValue(flow.OnCancel),
		nullableStringValue(flow.NotifyURL),
		nullableStringValue(flow.ChargeTransactionID),
		refundIDs,
		flow.CreatedAt,
		nullableTimeValue(flow.HeldAt),
		nullableTimeValue(flow.SettledAt),
		nullableTimeValue(flow.VoidedAt),
		nullableTimeValue(flow.ReturnedAt),
		nullableTimeValue(flow.DeniedAt),
		nullableTimeValue(flow.ExpiredAt),
		flow.ExpiresAt,
		flow.UpdatedAt,
		flow.Version,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrFlowAlreadyExists
		}
		return err
	}
	return nil
}

// Update writes every mutable column guarded by the version read with the
// row. A stale version yields ErrFlowVersionConflict.
func (r *FlowRepository) Update(ctx context.Context, flow *entity.PaymentFlow) error {
	refundIDs, err := serializeStringList(flow.RefundTransactionIDs)
	if err != nil {
		return err
	}

	query := `
		UPDATE payment_flows SET
			state = ?,
			result_code = ?,
			held_amount = ?,
			settled_amount = ?,
			returned_amount = ?,
			fee_amount = ?,
			net_amount = ?,
			card_id = ?,
			payer_id = ?,
			hold_id = ?,
			charge_transaction_id = ?,
			refund_transaction_ids_json = ?,
			held_at = ?,
			settled_at = ?,
			voided_at = ?,
			returned_at = ?,
			denied_at = ?,
			expired_at = ?,
			expires_at = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		string(flow.State),
		flow.ResultCode,
		flow.HeldAmount,
		flow.SettledAmount,
		flow.ReturnedAmount,
		flow.FeeAmount,
		flow.NetAmount,
		nullableStringValue(flow.CardID),
		nullableStringValue(flow.PayerID),
		nullableStringValue(flow.HoldID),
		nullableStringValue(flow.ChargeTransactionID),
		refundIDs,
		nullableTimeValue(flow.HeldAt),
		nullableTimeValue(flow.SettledAt),
		nullableTimeValue(flow.VoidedAt),
		nullableTimeValue(flow.ReturnedAt),
		nullableTimeValue(flow.DeniedAt),
		nullableTimeValue(flow.ExpiredAt),
		flow.ExpiresAt,
		flow.UpdatedAt,
		flow.ID,
		flow.Version,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrFlowVersionConflict
	}

	flow.Version++
	return nil
}

func (r *FlowRepository) FindByID(ctx context.Context, id string) (*entity.PaymentFlow, error) {
	query := `SELECT ` + flowColumns + ` FROM payment_flows WHERE id = ?`
	return r.findOne(ctx, query, id)
}

// FindByIDForUpdate locks the flow row until the surrounding transaction ends.
func (r *FlowRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.PaymentFlow, error) {
	query := `SELECT ` + flowColumns + ` FROM payment_flows WHERE id = ? FOR UPDATE`
	return r.findOne(ctx, query, id)
}

func (r *FlowRepository) List(ctx context.Context, filter FlowFilter) ([]*entity.PaymentFlow, error) {
	query := `SELECT ` + flowColumns + ` FROM payment_flows`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if strings.TrimSpace(filter.MerchantID) != "" {
		conditions = append(conditions, "merchant_id = ?")
		args = append(args, filter.MerchantID)
	}
	if strings.TrimSpace(filter.State) != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, filter.State)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.findMany(ctx, query, args...)
}

// ListExpiredHeld returns HELD flows whose expires_at is before now.
func (r *FlowRepository) ListExpiredHeld(ctx context.Context, now time.Time, limit int32) ([]*entity.PaymentFlow, error) {
	query := `SELECT ` + flowColumns + `
		FROM payment_flows
		WHERE state = ? AND expires_at < ?
		ORDER BY expires_at ASC
		LIMIT ?`
	return r.findMany(ctx, query, string(entity.FlowStateHeld), now, limit)
}

func (r *FlowRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.PaymentFlow, error) {
	flow := &entity.PaymentFlow{}
	if err := scanFlow(conn(ctx, r.db).QueryRowContext(ctx, query, args...), flow); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return flow, nil
}

func (r *FlowRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*entity.PaymentFlow, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flows := make([]*entity.PaymentFlow, 0)
	for rows.Next() {
		flow := &entity.PaymentFlow{}
		if err := scanFlow(rows, flow); err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return flows, nil
}

func scanFlow(scan rowScanner, flow *entity.PaymentFlow) error {
	var (
		state          string
		merchantRef    sql.NullString
		merchantData   string
		cardID         sql.NullString
		payerID        sql.NullString
		holdID         sql.NullString
		onComplete     sql.NullString
		onCancel       sql.NullString
		notifyURL      sql.NullString
		chargeTxID     sql.NullString
		refundTxIDs    string
		heldAt         sql.NullTime
		settledAt      sql.NullTime
		voidedAt       sql.NullTime
		returnedAt     sql.NullTime
		deniedAt       sql.NullTime
		expiredAt      sql.NullTime
		amount         decimal.Decimal
		heldAmount     decimal.Decimal
		settledAmount  decimal.Decimal
		returnedAmount decimal.Decimal
		feeAmount      decimal.Decimal
		netAmount      decimal.Decimal
	)

	err := scan.Scan(
		&flow.ID,
		&flow.MerchantID,
		&flow.APIKeyID,
		&amount,
		&flow.Currency,
		&flow.Memo,
		&merchantRef,
		&merchantData,
		&state,
		&flow.ResultCode,
		&heldAmount,
		&settledAmount,
		&returnedAmount,
		&feeAmount,
		&netAmount,
		&cardID,
		&payerID,
		&holdID,
		&onComplete,
		&onCancel,
		&notifyURL,
		&chargeTxID,
		&refundTxIDs,
		&flow.CreatedAt,
		&heldAt,
		&settledAt,
		&voidedAt,
		&returnedAt,
		&deniedAt,
		&expiredAt,
		&flow.ExpiresAt,
		&flow.UpdatedAt,
		&flow.Version,
	)
	if err != nil {
		return err
	}

	flow.State = entity.FlowState(state)
	flow.Amount = amount
	flow.HeldAmount = heldAmount
	flow.SettledAmount = settledAmount
	flow.ReturnedAmount = returnedAmount
	flow.FeeAmount = feeAmount
	flow.NetAmount = netAmount
	flow.MerchantRef = stringPtrFromNull(merchantRef)
	flow.CardID = stringPtrFromNull(cardID)
	flow.PayerID = stringPtrFromNull(payerID)
	flow.HoldID = stringPtrFromNull(holdID)
	flow.OnComplete = stringPtrFromNull(onComplete)
	flow.OnCancel = stringPtrFromNull(onCancel)
	flow.NotifyURL = stringPtrFromNull(notifyURL)
	flow.ChargeTransactionID = stringPtrFromNull(chargeTxID)
	flow.HeldAt = timePtrFromNull(heldAt)
	flow.SettledAt = timePtrFromNull(settledAt)
	flow.VoidedAt = timePtrFromNull(voidedAt)
	flow.ReturnedAt = timePtrFromNull(returnedAt)
	flow.DeniedAt = timePtrFromNull(deniedAt)
	flow.ExpiredAt = timePtrFromNull(expiredAt)

	data, err := parseMetadata(merchantData)
	if err != nil {
		return err
	}
	flow.MerchantData = data

	refunds, err := parseStringList(refundTxIDs)
	if err != nil {
		return err
	}
	flow.RefundTransactionIDs = refunds

	return nil
}
