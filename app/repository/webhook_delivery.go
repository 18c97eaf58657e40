package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

const webhookDeliveryColumns = `
	id, flow_id, merchant_id, event_type, url, payload_json,
	status, attempts, next_at, last_error, last_status_code, delivered_at,
	created_at, updated_at
`

type WebhookDeliveryRepository struct {
	db DBTX
}

func NewWebhookDeliveryRepository(db DBTX) *WebhookDeliveryRepository {
	return &WebhookDeliveryRepository{db: db}
}

func (r *WebhookDeliveryRepository) Create(ctx context.Context, delivery *entity.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (
			flow_id, merchant_id, event_type, url, payload_json,
			status, attempts, next_at, last_error, last_status_code, delivered_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		delivery.FlowID,
		delivery.MerchantID,
		delivery.EventType,
		delivery.URL,
		delivery.PayloadJSON,
		delivery.Status,
		delivery.Attempts,
		nullableTimeValue(delivery.NextAt),
		nullableStringValue(delivery.LastError),
		nullableInt32Value(delivery.LastStatusCode),
		nullableTimeValue(delivery.DeliveredAt),
		delivery.CreatedAt,
		delivery.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	delivery.ID = uint64(id)

	return nil
}

func (r *WebhookDeliveryRepository) Update(ctx context.Context, delivery *entity.WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries SET
			status = ?,
			attempts = ?,
			next_at = ?,
			last_error = ?,
			last_status_code = ?,
			delivered_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		delivery.Status,
		delivery.Attempts,
		nullableTimeValue(delivery.NextAt),
		nullableStringValue(delivery.LastError),
		nullableInt32Value(delivery.LastStatusCode),
		nullableTimeValue(delivery.DeliveredAt),
		delivery.UpdatedAt,
		delivery.ID,
	)
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

func (r *WebhookDeliveryRepository) FindByID(ctx context.Context, id uint64) (*entity.WebhookDelivery, error) {
	query := `SELECT ` + webhookDeliveryColumns + ` FROM webhook_deliveries WHERE id = ?`
	delivery := &entity.WebhookDelivery{}
	if err := scanWebhookDelivery(conn(ctx, r.db).QueryRowContext(ctx, query, id), delivery); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *WebhookDeliveryRepository) ListDue(ctx context.Context, now time.Time, limit int32) ([]*entity.WebhookDelivery, error) {
	query := `SELECT ` + webhookDeliveryColumns + `
		FROM webhook_deliveries
		WHERE status = ?
		  AND next_at IS NOT NULL
		  AND next_at <= ?
		ORDER BY next_at ASC, id ASC
		LIMIT ?`
	return r.findMany(ctx, query, entity.WebhookDeliveryPending, now, limit)
}

func (r *WebhookDeliveryRepository) ListByFlow(ctx context.Context, flowID string) ([]*entity.WebhookDelivery, error) {
	query := `SELECT ` + webhookDeliveryColumns + `
		FROM webhook_deliveries
		WHERE flow_id = ?
		ORDER BY id ASC`
	return r.findMany(ctx, query, flowID)
}

func (r *WebhookDeliveryRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*entity.WebhookDelivery, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.WebhookDelivery, 0)
	for rows.Next() {
		item := &entity.WebhookDelivery{}
		if err := scanWebhookDelivery(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanWebhookDelivery(scan rowScanner, delivery *entity.WebhookDelivery) error {
	var (
		nextAt         sql.NullTime
		lastError      sql.NullString
		lastStatusCode sql.NullInt32
		deliveredAt    sql.NullTime
	)
	if err := scan.Scan(
		&delivery.ID,
		&delivery.FlowID,
		&delivery.MerchantID,
		&delivery.EventType,
		&delivery.URL,
		&delivery.PayloadJSON,
		&delivery.Status,
		&delivery.Attempts,
		&nextAt,
		&lastError,
		&lastStatusCode,
		&deliveredAt,
		&delivery.CreatedAt,
		&delivery.UpdatedAt,
	); err != nil {
		return err
	}
	delivery.NextAt = timePtrFromNull(nextAt)
	delivery.LastError = stringPtrFromNull(lastError)
	delivery.LastStatusCode = int32PtrFromNull(lastStatusCode)
	delivery.DeliveredAt = timePtrFromNull(deliveredAt)
	return nil
}
