package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
)

type IdempotencyRepository struct {
	store *Store
}

func (r *IdempotencyRepository) Claim(ctx context.Context, record *entity.IdempotencyRecord) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.st.idempotency[record.Key]; ok {
		return repository.ErrIdempotencyKeyExists
	}
	record.Status = entity.IdempotencyProcessing
	record.ResponseCode = 0
	record.ResponseBody = nil
	r.store.st.idempotency[record.Key] = cloneIdempotencyRecord(record)
	return nil
}

func (r *IdempotencyRepository) Find(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	defer r.store.lock(ctx)()

	record, ok := r.store.st.idempotency[key]
	if !ok {
		return nil, nil
	}
	return cloneIdempotencyRecord(record), nil
}

func (r *IdempotencyRepository) Complete(ctx context.Context, record *entity.IdempotencyRecord) error {
	defer r.store.lock(ctx)()

	current, ok := r.store.st.idempotency[record.Key]
	if !ok || current.Status != entity.IdempotencyProcessing || current.ClaimToken != record.ClaimToken {
		return repository.ErrIdempotencyNotFound
	}

	current.Status = entity.IdempotencyCompleted
	current.FlowID = record.FlowID
	current.ResponseCode = record.ResponseCode
	current.ResponseBody = append([]byte(nil), record.ResponseBody...)
	record.Status = entity.IdempotencyCompleted
	return nil
}

func (r *IdempotencyRepository) Release(ctx context.Context, key, claimToken string) error {
	defer r.store.lock(ctx)()

	current, ok := r.store.st.idempotency[key]
	if ok && current.Status == entity.IdempotencyProcessing && current.ClaimToken == claimToken {
		delete(r.store.st.idempotency, key)
	}
	return nil
}

func (r *IdempotencyRepository) DeleteReclaimable(ctx context.Context, key string, now time.Time) (bool, error) {
	defer r.store.lock(ctx)()

	current, ok := r.store.st.idempotency[key]
	if !ok || !current.Reclaimable(now) {
		return false, nil
	}
	delete(r.store.st.idempotency, key)
	return true, nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time, limit int32) (int64, error) {
	defer r.store.lock(ctx)()

	expired := make([]*entity.IdempotencyRecord, 0)
	for _, record := range r.store.st.idempotency {
		if !now.Before(record.ExpiresAt) {
			expired = append(expired, record)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
	expired = page(expired, limit, 0)

	for _, record := range expired {
		delete(r.store.st.idempotency, record.Key)
	}
	return int64(len(expired)), nil
}
