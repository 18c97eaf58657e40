package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/factory"
	"github.com/vibast-solutions/ms-go-novapay/app/metrics"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
	"github.com/vibast-solutions/ms-go-novapay/config"
)

const (
	idempotencyExecuted   = "executed"
	idempotencyReplayed   = "replayed"
	idempotencyReused     = "reused"
	idempotencyInProgress = "in_progress"
	idempotencyReleased   = "released"
	idempotencyReclaimed  = "reclaimed"

	defaultClaimLease = time.Minute
)

// errDiscardResponse rolls back a gated operation whose response is a
// system failure, so the claim can be released and the call retried.
var errDiscardResponse = errors.New("idempotency: discard system failure")

// responseCache is a read-through copy of completed idempotency records.
type responseCache interface {
	Get(ctx context.Context, key string) (*entity.IdempotencyRecord, error)
	Set(ctx context.Context, record *entity.IdempotencyRecord, ttl time.Duration) error
}

// IdempotencyService gates mutating operations on a client token so a
// retried request replays the stored response instead of executing twice.
type IdempotencyService struct {
	tx      transactor
	records idempotencyRepository
	cache   responseCache
	cfg     config.IdempotencyConfig
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewIdempotencyService(repos Repositories, cache responseCache, cfg config.IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		tx:      repos.Tx,
		records: repos.Idempotency,
		cache:   cache,
		cfg:     cfg,
		logger:  factory.NewModuleLogger("idempotency-service"),
		now:     utcNow,
	}
}

// IdempotencyKey scopes a client token to the API key that sent it.
func IdempotencyKey(apiKeyID, token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	return apiKeyID + ":" + token
}

// Execute runs fn at most once per key. An empty key runs fn directly.
// fn and the completed record commit in one transaction, so a response is
// stored if and only if its writes are. Responses with a 5xx status roll
// back and release the claim so the caller may retry.
func (s *IdempotencyService) Execute(
	ctx context.Context,
	key string,
	operation string,
	requestHash string,
	fn func(ctx context.Context) (*types.Response, error),
) (*types.Response, error) {
	if key == "" {
		return fn(ctx)
	}

	if resp, ok, err := s.fromCache(ctx, key, operation, requestHash); err != nil || ok {
		return resp, err
	}

	record, replay, err := s.claim(ctx, key, operation, requestHash)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	var resp *types.Response
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		resp, err = fn(ctx)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return errDiscardResponse
		}

		record.ResponseCode = resp.StatusCode
		record.ResponseBody = resp.Body
		record.FlowID = normalizeOptionalString(resp.FlowID)
		return s.records.Complete(ctx, record)
	})
	if err != nil {
		s.release(ctx, record)
		metrics.ObserveIdempotency(operation, idempotencyReleased)
		if errors.Is(err, errDiscardResponse) {
			return resp, nil
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(context.WithoutCancel(ctx), record, time.Until(record.ExpiresAt)); err != nil {
			s.logger.WithError(err).WithField("operation", operation).Warn("Failed to cache idempotent response")
		}
	}

	metrics.ObserveIdempotency(operation, idempotencyExecuted)
	return resp, nil
}

// claim returns the fresh PROCESSING record, or the response to replay when
// another request already completed under the key. Expired records and
// claims whose lease ran out are taken over.
func (s *IdempotencyService) claim(ctx context.Context, key, operation, requestHash string) (*entity.IdempotencyRecord, *types.Response, error) {
	deadline := s.now().Add(s.cfg.WaitTimeout)
	lease := s.cfg.LockTimeout
	if lease <= 0 {
		lease = defaultClaimLease
	}

	for {
		now := s.now()
		record := &entity.IdempotencyRecord{
			Key:         key,
			Operation:   operation,
			RequestHash: requestHash,
			ClaimToken:  uuid.NewString(),
			Status:      entity.IdempotencyProcessing,
			CreatedAt:   now,
			LockedUntil: now.Add(lease),
			ExpiresAt:   now.Add(s.cfg.TTL),
		}

		err := s.records.Claim(ctx, record)
		if err == nil {
			return record, nil, nil
		}
		if !errors.Is(err, repository.ErrIdempotencyKeyExists) {
			return nil, nil, err
		}

		existing, err := s.records.Find(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case existing == nil:
			continue
		case existing.Reclaimable(now):
			deleted, err := s.records.DeleteReclaimable(ctx, key, now)
			if err != nil {
				return nil, nil, err
			}
			if deleted {
				metrics.ObserveIdempotency(operation, idempotencyReclaimed)
			}
			continue
		case existing.RequestHash != requestHash:
			metrics.ObserveIdempotency(operation, idempotencyReused)
			return nil, nil, ErrIdempotencyKeyReused
		case existing.Status == entity.IdempotencyCompleted:
			metrics.ObserveIdempotency(operation, idempotencyReplayed)
			return nil, replayOf(existing), nil
		}

		if !s.now().Before(deadline) {
			metrics.ObserveIdempotency(operation, idempotencyInProgress)
			return nil, nil, ErrIdempotencyInProgress
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func (s *IdempotencyService) fromCache(ctx context.Context, key, operation, requestHash string) (*types.Response, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}

	record, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithField("operation", operation).Warn("Idempotency cache lookup failed")
		return nil, false, nil
	}
	if record == nil || record.Expired(s.now()) {
		return nil, false, nil
	}
	if record.RequestHash != requestHash {
		metrics.ObserveIdempotency(operation, idempotencyReused)
		return nil, false, ErrIdempotencyKeyReused
	}

	metrics.ObserveIdempotency(operation, idempotencyReplayed)
	return replayOf(record), true, nil
}

func (s *IdempotencyService) release(ctx context.Context, record *entity.IdempotencyRecord) {
	if err := s.records.Release(context.WithoutCancel(ctx), record.Key, record.ClaimToken); err != nil {
		s.logger.WithError(err).Warn("Failed to release idempotency claim")
	}
}

// Purge deletes up to limit expired records and reports how many went.
func (s *IdempotencyService) Purge(ctx context.Context, limit int32) (int64, error) {
	return s.records.DeleteExpired(ctx, s.now(), limit)
}

func replayOf(record *entity.IdempotencyRecord) *types.Response {
	resp := &types.Response{
		StatusCode: record.ResponseCode,
		Body:       append([]byte(nil), record.ResponseBody...),
	}
	if record.FlowID != nil {
		resp.FlowID = *record.FlowID
	}
	return resp
}
