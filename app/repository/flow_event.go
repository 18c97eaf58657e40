package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

type FlowEventRepository struct {
	db DBTX
}

func NewFlowEventRepository(db DBTX) *FlowEventRepository {
	return &FlowEventRepository{db: db}
}

func (r *FlowEventRepository) Create(ctx context.Context, event *entity.FlowEvent) error {
	query := `
		INSERT INTO flow_events (
			flow_id, merchant_id, event_type, from_state, to_state, result_code, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var fromState interface{}
	if event.FromState != nil {
		fromState = string(*event.FromState)
	}

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		event.FlowID,
		event.MerchantID,
		event.EventType,
		fromState,
		string(event.ToState),
		event.ResultCode,
		event.PayloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

func (r *FlowEventRepository) ListUnpublished(ctx context.Context, limit int32) ([]*entity.FlowEvent, error) {
	query := `
		SELECT id, flow_id, merchant_id, event_type, from_state, to_state, result_code, payload_json, created_at, published_at
		FROM flow_events
		WHERE published_at IS NULL
		ORDER BY id ASC
		LIMIT ?
	`
	return r.findMany(ctx, query, limit)
}

func (r *FlowEventRepository) ListByFlow(ctx context.Context, flowID string) ([]*entity.FlowEvent, error) {
	query := `
		SELECT id, flow_id, merchant_id, event_type, from_state, to_state, result_code, payload_json, created_at, published_at
		FROM flow_events
		WHERE flow_id = ?
		ORDER BY id ASC
	`
	return r.findMany(ctx, query, flowID)
}

func (r *FlowEventRepository) MarkPublished(ctx context.Context, ids []uint64, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE flow_events SET published_at = ? WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, publishedAt)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

func (r *FlowEventRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]*entity.FlowEvent, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*entity.FlowEvent, 0)
	for rows.Next() {
		var (
			fromState   sql.NullString
			toState     string
			publishedAt sql.NullTime
		)
		event := &entity.FlowEvent{}
		if err := rows.Scan(
			&event.ID,
			&event.FlowID,
			&event.MerchantID,
			&event.EventType,
			&fromState,
			&toState,
			&event.ResultCode,
			&event.PayloadJSON,
			&event.CreatedAt,
			&publishedAt,
		); err != nil {
			return nil, err
		}
		if fromState.Valid {
			state := entity.FlowState(fromState.String)
			event.FromState = &state
		}
		event.ToState = entity.FlowState(toState)
		event.PublishedAt = timePtrFromNull(publishedAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
