package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/factory"
	"github.com/vibast-solutions/ms-go-novapay/app/metrics"
	"github.com/vibast-solutions/ms-go-novapay/app/provider"
	"github.com/vibast-solutions/ms-go-novapay/config"
)

const (
	EventHeader    = "X-NovaPay-Event"
	DeliveryHeader = "X-NovaPay-Delivery"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookDispatcher drains the webhook outbox. A failed delivery is retried
// with exponential backoff and parked as DEAD after the configured attempts.
type WebhookDispatcher struct {
	deliveries webhookDeliveryRepository
	merchants  merchantRepository
	client     httpDoer
	cfg        config.WebhooksConfig
	logger     logrus.FieldLogger
	now        func() time.Time
}

func NewWebhookDispatcher(repos Repositories, client httpDoer, cfg config.WebhooksConfig) *WebhookDispatcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &WebhookDispatcher{
		deliveries: repos.WebhookDeliveries,
		merchants:  repos.Merchants,
		client:     client,
		cfg:        cfg,
		logger:     factory.NewModuleLogger("webhook-dispatcher"),
		now:        utcNow,
	}
}

// DispatchDue attempts every due delivery, up to limit.
func (d *WebhookDispatcher) DispatchDue(ctx context.Context, limit int32) error {
	items, err := d.deliveries.ListDue(ctx, d.now(), limit)
	if err != nil {
		return err
	}

	var firstErr error
	for _, delivery := range items {
		if delivery == nil {
			continue
		}
		if err := d.deliver(ctx, delivery); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}

// Retry re-queues a delivery, DEAD or not, with a fresh attempt budget and
// attempts it immediately.
func (d *WebhookDispatcher) Retry(ctx context.Context, id uint64) (*entity.WebhookDelivery, error) {
	delivery, err := d.deliveries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}

	now := d.now()
	delivery.Status = entity.WebhookDeliveryPending
	delivery.Attempts = 0
	delivery.NextAt = &now
	delivery.UpdatedAt = now
	if err := d.deliveries.Update(ctx, delivery); err != nil {
		return nil, err
	}

	if err := d.deliver(ctx, delivery); err != nil {
		return delivery, err
	}
	return delivery, nil
}

func (d *WebhookDispatcher) deliver(ctx context.Context, delivery *entity.WebhookDelivery) error {
	now := d.now()

	merchant, err := d.merchants.FindByID(ctx, delivery.MerchantID)
	if err != nil {
		return err
	}
	if merchant == nil {
		return d.recordFailure(ctx, delivery, now, nil, ErrMerchantNotFound, true)
	}

	body := []byte(delivery.PayloadJSON)
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.HTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, delivery.URL, bytes.NewReader(body))
	if err != nil {
		return d.recordFailure(ctx, delivery, now, nil, err, true)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, delivery.EventType)
	req.Header.Set(DeliveryHeader, strconv.FormatUint(delivery.ID, 10))
	req.Header.Set(provider.SignatureHeader, provider.SignWebhook(body, merchant.WebhookSecret, now))

	resp, err := d.client.Do(req)
	if err != nil {
		return d.recordFailure(ctx, delivery, now, nil, err, false)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	statusCode := int32(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return d.recordFailure(ctx, delivery, now, &statusCode, fmt.Errorf("webhook endpoint returned status=%d", resp.StatusCode), false)
	}

	delivery.Attempts++
	delivery.Status = entity.WebhookDeliveryDelivered
	delivery.NextAt = nil
	delivery.LastError = nil
	delivery.LastStatusCode = &statusCode
	delivery.DeliveredAt = &now
	delivery.UpdatedAt = now
	if err := d.deliveries.Update(ctx, delivery); err != nil {
		return err
	}

	metrics.ObserveWebhookDelivery("delivered")
	return nil
}

func (d *WebhookDispatcher) recordFailure(
	ctx context.Context,
	delivery *entity.WebhookDelivery,
	now time.Time,
	statusCode *int32,
	deliveryErr error,
	permanent bool,
) error {
	delivery.Attempts++
	trimmed := truncate(deliveryErr.Error(), 1024)
	delivery.LastError = &trimmed
	delivery.LastStatusCode = statusCode

	maxAttempts := d.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	outcome := "retry"
	if permanent || delivery.Attempts >= maxAttempts {
		outcome = "dead"
		delivery.Status = entity.WebhookDeliveryDead
		delivery.NextAt = nil
	} else {
		next := now.Add(d.backoff(delivery.Attempts))
		delivery.Status = entity.WebhookDeliveryPending
		delivery.NextAt = &next
	}
	delivery.UpdatedAt = now

	if err := d.deliveries.Update(ctx, delivery); err != nil {
		return err
	}

	metrics.ObserveWebhookDelivery(outcome)
	d.logger.WithFields(logrus.Fields{
		"delivery_id": delivery.ID,
		"flow_id":     delivery.FlowID,
		"attempts":    delivery.Attempts,
		"outcome":     outcome,
	}).WithError(deliveryErr).Warn("Webhook delivery failed")
	return deliveryErr
}

// backoff is the wait after the given number of failed attempts: the retry
// interval doubled per attempt, capped at the max interval.
func (d *WebhookDispatcher) backoff(attempts int32) time.Duration {
	interval := d.cfg.RetryInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	limit := d.cfg.MaxRetryInterval
	if limit < interval {
		limit = interval
	}

	for i := int32(1); i < attempts; i++ {
		interval *= 2
		if interval >= limit {
			return limit
		}
	}
	return interval
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
