package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/factory"
	"github.com/vibast-solutions/ms-go-novapay/app/money"
	"github.com/vibast-solutions/ms-go-novapay/app/provider"
	"github.com/vibast-solutions/ms-go-novapay/app/repository"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
	"github.com/vibast-solutions/ms-go-novapay/config"
)

const (
	defaultListLimit = int32(50)
	defaultBatchSize = int32(100)
)

// Principal is the authenticated merchant credential behind a request.
type Principal struct {
	MerchantID string
	AccountID  string
	APIKeyID   string
}

type reserveFlowRequest interface {
	GetAmount() decimal.Decimal
	GetCurrency() string
	GetMemo() string
	GetMerchantRef() string
	GetMerchantData() map[string]string
	GetOnComplete() string
	GetOnCancel() string
	GetNotifyURL() string
}

type authorizeFlowRequest interface {
	GetFlowID() string
	GetCardNumber() string
	GetExpiryMonth() int
	GetExpiryYear() int
	GetSecurityCode() string
	GetCardholderEmail() string
}

type chargeFlowRequest interface {
	GetFlowID() string
	GetAmount() *decimal.Decimal
}

type voidFlowRequest interface {
	GetFlowID() string
	GetReason() string
}

type refundFlowRequest interface {
	GetFlowID() string
	GetAmount() *decimal.Decimal
	GetReason() string
}

type listFlowsRequest interface {
	GetState() string
	GetLimit() int32
	GetOffset() int32
}

type cardNetwork interface {
	Authorize(ctx context.Context, creds *provider.CardCredentials, now time.Time) (*entity.Card, error)
}

// FlowService is the flow state machine. It is the only writer of payment
// flows; every transition locks the flow row and applies its balance, ledger,
// event and outbox writes in the same transaction.
type FlowService struct {
	tx       transactor
	flows    flowRepository
	ledger   *Ledger
	entries  ledgerRepository
	balances balanceRepository
	outbox   *Outbox
	cards    cardNetwork
	cfg      config.FlowsConfig
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewFlowService(repos Repositories, ledger *Ledger, outbox *Outbox, cards cardNetwork, cfg config.FlowsConfig) *FlowService {
	return &FlowService{
		tx:       repos.Tx,
		flows:    repos.Flows,
		ledger:   ledger,
		entries:  repos.Ledger,
		balances: repos.Balances,
		outbox:   outbox,
		cards:    cards,
		cfg:      cfg,
		logger:   factory.NewModuleLogger("flow-service"),
		now:      utcNow,
	}
}

func (s *FlowService) Reserve(ctx context.Context, principal *Principal, req reserveFlowRequest) (*entity.PaymentFlow, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.GetCurrency()))
	if !containsCurrency(s.cfg.Currencies, currency) {
		return nil, ErrUnsupportedCurrency
	}
	amount := req.GetAmount()
	if err := money.Validate(amount); err != nil {
		return nil, ErrInvalidAmount
	}

	now := s.now()
	flow := &entity.PaymentFlow{
		ID:           newID("flow"),
		MerchantID:   principal.MerchantID,
		APIKeyID:     principal.APIKeyID,
		Amount:       amount,
		Currency:     currency,
		Memo:         strings.TrimSpace(req.GetMemo()),
		MerchantRef:  normalizeOptionalString(req.GetMerchantRef()),
		MerchantData: cloneMetadata(req.GetMerchantData()),
		State:        entity.FlowStateCreated,
		ResultCode:   types.CodeFlowCreated.Int(),
		OnComplete:   normalizeOptionalString(req.GetOnComplete()),
		OnCancel:     normalizeOptionalString(req.GetOnCancel()),
		NotifyURL:    normalizeOptionalString(req.GetNotifyURL()),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.CheckoutTTL),
		UpdatedAt:    now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.flows.Create(ctx, flow); err != nil {
			return err
		}
		return s.outbox.Record(ctx, flow, nil, EventFlowCreated, now)
	})
	if err != nil {
		return nil, err
	}
	return flow, nil
}

// Authorize places the hold for a CREATED flow. A declined card or payer
// balance moves the flow to DENIED and commits; the decline is returned as
// a *FlowError carrying the denied flow.
func (s *FlowService) Authorize(ctx context.Context, req authorizeFlowRequest) (*entity.PaymentFlow, error) {
	var (
		flow    *entity.PaymentFlow
		decline error
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		decline = nil
		now := s.now()

		var err error
		flow, err = s.lockFlow(ctx, req.GetFlowID(), nil)
		if err != nil {
			return err
		}
		if flow.State != entity.FlowStateCreated {
			return ErrInvalidTransition
		}
		if flow.Expired(now) {
			return ErrFlowExpired
		}

		card, err := s.cards.Authorize(ctx, &provider.CardCredentials{
			Number:       req.GetCardNumber(),
			ExpiryMonth:  req.GetExpiryMonth(),
			ExpiryYear:   req.GetExpiryYear(),
			SecurityCode: req.GetSecurityCode(),
			HolderEmail:  req.GetCardholderEmail(),
		}, now)
		if err == nil {
			var hold *entity.LedgerTransaction
			hold, err = s.ledger.Hold(ctx, card.AccountID, flow.Currency, flow.Amount, flow.ID)
			if err == nil {
				return s.hold(ctx, flow, card, hold, now)
			}
		}

		if !isAuthorizationDecline(err) {
			return err
		}
		decline = err
		if card != nil {
			flow.CardID = &card.ID
			flow.PayerID = &card.AccountID
		}
		return s.deny(ctx, flow, ResultCodeOf(err), now)
	})
	if err != nil {
		return nil, err
	}
	if decline != nil {
		s.logger.WithFields(logrus.Fields{"flow_id": flow.ID, "result_code": flow.ResultCode}).Info("Authorization declined")
		return flow, &FlowError{Flow: flow, Err: decline}
	}
	return flow, nil
}

// Charge captures a HELD flow. amount defaults to the held amount; a partial
// capture releases the remainder to the payer.
func (s *FlowService) Charge(ctx context.Context, principal *Principal, req chargeFlowRequest) (*entity.PaymentFlow, error) {
	var (
		flow    *entity.PaymentFlow
		expired bool
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		expired = false
		now := s.now()

		var err error
		flow, err = s.lockFlow(ctx, req.GetFlowID(), principal)
		if err != nil {
			return err
		}
		if flow.State != entity.FlowStateHeld {
			return ErrInvalidTransition
		}
		if flow.Expired(now) {
			expired = true
			return s.expire(ctx, flow, now)
		}

		amount := flow.HeldAmount
		if requested := req.GetAmount(); requested != nil {
			amount = *requested
		}
		if !amount.IsPositive() {
			return ErrInvalidAmount
		}
		if amount.GreaterThan(flow.HeldAmount) {
			return ErrChargeExceedsHeld
		}

		fee := money.Fee(amount, s.cfg.FeeRate)
		holdID := stringValue(flow.HoldID)
		payerID := stringValue(flow.PayerID)

		capture, err := s.ledger.Commit(ctx, holdID, amount, fee, principal.AccountID, flow.Currency, flow.ID, payerID)
		if err != nil {
			return err
		}

		if remainder := flow.HeldAmount.Sub(amount); remainder.IsPositive() {
			if _, err := s.ledger.Release(ctx, holdID, payerID, flow.Currency, remainder, flow.ID, entity.LedgerVoidCredit); err != nil {
				return err
			}
		}

		from := flow.State
		flow.State = entity.FlowStateSettled
		flow.ResultCode = types.CodeFlowSettled.Int()
		flow.SettledAmount = amount
		flow.FeeAmount = fee
		flow.NetAmount = amount.Sub(fee)
		flow.ChargeTransactionID = &capture.ID
		flow.SettledAt = &now
		return s.save(ctx, flow, from, EventFlowSettled, now)
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return flow, &FlowError{Flow: flow, Err: ErrFlowExpired}
	}
	return flow, nil
}

// Void releases the full hold of a HELD flow back to the payer.
func (s *FlowService) Void(ctx context.Context, principal *Principal, req voidFlowRequest) (*entity.PaymentFlow, error) {
	var flow *entity.PaymentFlow

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()

		var err error
		flow, err = s.lockFlow(ctx, req.GetFlowID(), principal)
		if err != nil {
			return err
		}
		if flow.State != entity.FlowStateHeld {
			return ErrInvalidTransition
		}

		if _, err := s.ledger.Release(ctx, stringValue(flow.HoldID), stringValue(flow.PayerID), flow.Currency, flow.HeldAmount, flow.ID, entity.LedgerVoidCredit); err != nil {
			return err
		}

		from := flow.State
		flow.State = entity.FlowStateVoided
		flow.ResultCode = types.CodeFlowVoided.Int()
		flow.VoidedAt = &now
		return s.save(ctx, flow, from, EventFlowVoided, now)
	})
	if err != nil {
		return nil, err
	}
	return flow, nil
}

// Refund returns settled funds to the payer. amount defaults to what is left
// to refund. The returned ledger row is the merchant-side debit.
func (s *FlowService) Refund(ctx context.Context, principal *Principal, req refundFlowRequest) (*entity.PaymentFlow, *entity.LedgerTransaction, error) {
	var (
		flow  *entity.PaymentFlow
		debit *entity.LedgerTransaction
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()

		var err error
		flow, err = s.lockFlow(ctx, req.GetFlowID(), principal)
		if err != nil {
			return err
		}
		if !flow.State.CanTransitionTo(entity.FlowStateReturned) {
			return ErrInvalidTransition
		}

		remaining := flow.RefundableAmount()
		amount := remaining
		if requested := req.GetAmount(); requested != nil {
			amount = *requested
		}
		if !amount.IsPositive() {
			if remaining.IsZero() {
				return ErrRefundExceedsSettled
			}
			return ErrInvalidAmount
		}
		if amount.GreaterThan(remaining) {
			return ErrRefundExceedsSettled
		}

		debit, _, err = s.ledger.Refund(ctx, principal.AccountID, stringValue(flow.PayerID), flow.Currency, amount, flow.ID)
		if err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				return ErrMerchantInsufficient
			}
			return err
		}

		from := flow.State
		flow.State = entity.FlowStateReturned
		flow.ResultCode = types.CodeFlowReturned.Int()
		flow.ReturnedAmount = flow.ReturnedAmount.Add(amount)
		flow.RefundTransactionIDs = append(flow.RefundTransactionIDs, debit.ID)
		flow.ReturnedAt = &now
		return s.save(ctx, flow, from, EventFlowReturned, now)
	})
	if err != nil {
		return nil, nil, err
	}
	return flow, debit, nil
}

// Lookup returns a merchant's flow. Flows of other merchants are reported as
// not found.
func (s *FlowService) Lookup(ctx context.Context, principal *Principal, flowID string) (*entity.PaymentFlow, error) {
	flow, err := s.flows.FindByID(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if flow == nil || (principal != nil && flow.MerchantID != principal.MerchantID) {
		return nil, ErrFlowNotFound
	}
	return flow, nil
}

// Checkout is the payer-facing read of a flow.
func (s *FlowService) Checkout(ctx context.Context, flowID string) (*entity.PaymentFlow, error) {
	return s.Lookup(ctx, nil, flowID)
}

func (s *FlowService) ListFlows(ctx context.Context, principal *Principal, req listFlowsRequest) ([]*entity.PaymentFlow, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.flows.List(ctx, repository.FlowFilter{
		MerchantID: principal.MerchantID,
		State:      strings.ToUpper(strings.TrimSpace(req.GetState())),
		Limit:      limit,
		Offset:     req.GetOffset(),
	})
}

func (s *FlowService) ListTransactions(ctx context.Context, principal *Principal, flowID string) ([]*entity.LedgerTransaction, error) {
	if _, err := s.Lookup(ctx, principal, flowID); err != nil {
		return nil, err
	}
	return s.entries.ListByFlow(ctx, flowID)
}

func (s *FlowService) ListBalances(ctx context.Context, principal *Principal) ([]*entity.AccountBalance, error) {
	return s.balances.ListByAccount(ctx, principal.AccountID)
}

// ExpireHeld moves one HELD flow past its expiry to EXPIRED, returning the
// hold to the payer. It reports false when the flow no longer qualifies.
func (s *FlowService) ExpireHeld(ctx context.Context, flowID string) (bool, error) {
	expired := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		expired = false
		now := s.now()

		flow, err := s.lockFlow(ctx, flowID, nil)
		if err != nil {
			return err
		}
		if flow.State != entity.FlowStateHeld || !flow.Expired(now) {
			return nil
		}

		expired = true
		return s.expire(ctx, flow, now)
	})
	return expired, err
}

func (s *FlowService) hold(ctx context.Context, flow *entity.PaymentFlow, card *entity.Card, hold *entity.LedgerTransaction, now time.Time) error {
	from := flow.State
	flow.State = entity.FlowStateHeld
	flow.ResultCode = types.CodeFlowHeld.Int()
	flow.CardID = &card.ID
	flow.PayerID = &card.AccountID
	flow.HoldID = hold.HoldID
	flow.HeldAmount = flow.Amount
	flow.HeldAt = &now
	flow.ExpiresAt = now.Add(s.cfg.HoldTTL)
	return s.save(ctx, flow, from, EventFlowHeld, now)
}

func (s *FlowService) deny(ctx context.Context, flow *entity.PaymentFlow, code types.ResultCode, now time.Time) error {
	from := flow.State
	flow.State = entity.FlowStateDenied
	flow.ResultCode = code.Int()
	flow.DeniedAt = &now
	return s.save(ctx, flow, from, EventFlowDenied, now)
}

func (s *FlowService) expire(ctx context.Context, flow *entity.PaymentFlow, now time.Time) error {
	if _, err := s.ledger.Release(ctx, stringValue(flow.HoldID), stringValue(flow.PayerID), flow.Currency, flow.HeldAmount, flow.ID, entity.LedgerExpiryCredit); err != nil {
		return err
	}

	from := flow.State
	flow.State = entity.FlowStateExpired
	flow.ResultCode = types.CodeFlowExpired.Int()
	flow.ExpiredAt = &now
	if err := s.save(ctx, flow, from, EventFlowExpired, now); err != nil {
		return err
	}

	s.logger.WithField("flow_id", flow.ID).Info("Held flow expired")
	return nil
}

// save persists a transition that the caller already applied to flow.
func (s *FlowService) save(ctx context.Context, flow *entity.PaymentFlow, from entity.FlowState, eventType string, now time.Time) error {
	if !from.CanTransitionTo(flow.State) {
		return ErrInvalidTransition
	}

	flow.UpdatedAt = now
	if err := s.flows.Update(ctx, flow); err != nil {
		return err
	}
	return s.outbox.Record(ctx, flow, &from, eventType, now)
}

func (s *FlowService) lockFlow(ctx context.Context, flowID string, principal *Principal) (*entity.PaymentFlow, error) {
	flow, err := s.flows.FindByIDForUpdate(ctx, strings.TrimSpace(flowID))
	if err != nil {
		return nil, err
	}
	if flow == nil || (principal != nil && flow.MerchantID != principal.MerchantID) {
		return nil, ErrFlowNotFound
	}
	return flow, nil
}

func isAuthorizationDecline(err error) bool {
	code := ResultCodeOf(err)
	return code >= 5000 && code < 6000
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
