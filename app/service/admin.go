package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/money"
	"github.com/vibast-solutions/ms-go-novapay/app/provider"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
	"github.com/vibast-solutions/ms-go-novapay/config"
)

type creditAccountRequest interface {
	GetAccountID() string
	GetCurrency() string
	GetAmount() decimal.Decimal
	GetReference() string
}

// IssueCardInput describes a closed-loop card to issue. An empty AccountID
// opens a new payer account for the card.
type IssueCardInput struct {
	AccountID    string
	Number       string
	ExpiryMonth  int
	ExpiryYear   int
	SecurityCode string
	HolderEmail  string
}

// MerchantCredentials is a newly onboarded merchant. RawAPIKey is only
// available at creation time.
type MerchantCredentials struct {
	Merchant  *entity.Merchant
	APIKey    *entity.APIKey
	RawAPIKey string
}

// AdminService holds the operator actions: onboarding merchants, issuing
// cards and topping up accounts.
type AdminService struct {
	tx         transactor
	accounts   accountRepository
	merchants  merchantRepository
	cards      cardRepository
	ledger     *Ledger
	currencies []string
	bcryptCost int
	now        func() time.Time
}

func NewAdminService(repos Repositories, ledger *Ledger, cfg config.FlowsConfig, bcryptCost int) *AdminService {
	return &AdminService{
		tx:         repos.Tx,
		accounts:   repos.Accounts,
		merchants:  repos.Merchants,
		cards:      repos.Cards,
		ledger:     ledger,
		currencies: cfg.Currencies,
		bcryptCost: bcryptCost,
		now:        utcNow,
	}
}

func (s *AdminService) CreateMerchant(ctx context.Context, name string) (*MerchantCredentials, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &types.RequestError{Code: types.CodeMissingField, Message: "name is required"}
	}

	now := s.now()
	account := &entity.Account{
		ID:        newID("acct"),
		Kind:      entity.AccountKindMerchant,
		Status:    entity.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	merchant := &entity.Merchant{
		ID:            newID("mch"),
		Name:          name,
		AccountID:     account.ID,
		WebhookSecret: newSecret("whsec"),
		Status:        entity.MerchantStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	rawKey := newSecret("npk")
	key := &entity.APIKey{
		ID:         newID("key"),
		MerchantID: merchant.ID,
		KeyHash:    HashAPIKey(rawKey),
		Status:     entity.APIKeyStatusActive,
		CreatedAt:  now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Create(ctx, account); err != nil {
			return err
		}
		if err := s.merchants.Create(ctx, merchant); err != nil {
			return err
		}
		return s.merchants.CreateAPIKey(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	return &MerchantCredentials{Merchant: merchant, APIKey: key, RawAPIKey: rawKey}, nil
}

func (s *AdminService) IssueCard(ctx context.Context, input *IssueCardInput) (*entity.Card, error) {
	number := strings.ReplaceAll(strings.TrimSpace(input.Number), " ", "")
	if !types.ValidCardNumber(number) {
		return nil, &types.RequestError{Code: types.CodeInvalidCardDetails, Message: "card number is invalid"}
	}
	if input.ExpiryMonth < 1 || input.ExpiryMonth > 12 || input.ExpiryYear < 2000 {
		return nil, &types.RequestError{Code: types.CodeInvalidCardDetails, Message: "card expiry is invalid"}
	}
	if strings.TrimSpace(input.SecurityCode) == "" {
		return nil, &types.RequestError{Code: types.CodeMissingField, Message: "security code is required"}
	}

	cvvHash, err := provider.HashSecurityCode(strings.TrimSpace(input.SecurityCode), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	card := &entity.Card{
		ID:          newID("card"),
		AccountID:   strings.TrimSpace(input.AccountID),
		NumberHash:  provider.HashCardNumber(number),
		Last4:       provider.Last4(number),
		ExpiryMonth: input.ExpiryMonth,
		ExpiryYear:  input.ExpiryYear,
		CVVHash:     cvvHash,
		HolderEmail: strings.ToLower(strings.TrimSpace(input.HolderEmail)),
		Status:      entity.CardStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if card.AccountID == "" {
			account := &entity.Account{
				ID:        newID("acct"),
				Kind:      entity.AccountKindPayer,
				Status:    entity.AccountStatusActive,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.accounts.Create(ctx, account); err != nil {
				return err
			}
			card.AccountID = account.ID
		} else {
			account, err := s.accounts.FindByID(ctx, card.AccountID)
			if err != nil {
				return err
			}
			if account == nil {
				return ErrAccountNotFound
			}
		}
		return s.cards.Create(ctx, card)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (s *AdminService) CreditAccount(ctx context.Context, req creditAccountRequest) (*entity.LedgerTransaction, *entity.AccountBalance, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.GetCurrency()))
	if !containsCurrency(s.currencies, currency) {
		return nil, nil, ErrUnsupportedCurrency
	}
	if err := money.Validate(req.GetAmount()); err != nil {
		return nil, nil, ErrInvalidAmount
	}
	return s.ledger.Credit(ctx, strings.TrimSpace(req.GetAccountID()), currency, req.GetAmount(), req.GetReference())
}

// SetAccountFrozen freezes or unfreezes an account.
func (s *AdminService) SetAccountFrozen(ctx context.Context, accountID string, frozen bool) (*entity.Account, error) {
	account, err := s.accounts.FindByID(ctx, strings.TrimSpace(accountID))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	account.Status = entity.AccountStatusActive
	if frozen {
		account.Status = entity.AccountStatusFrozen
	}
	account.UpdatedAt = s.now()
	if err := s.accounts.UpdateStatus(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func containsCurrency(currencies []string, currency string) bool {
	for _, item := range currencies {
		if item == currency {
			return true
		}
	}
	return false
}

func newSecret(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
