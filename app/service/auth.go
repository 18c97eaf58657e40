package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"github.com/vibast-solutions/ms-go-novapay/app/factory"
)

// AuthService resolves merchant API keys.
type AuthService struct {
	merchants merchantRepository
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewAuthService(repos Repositories) *AuthService {
	return &AuthService{
		merchants: repos.Merchants,
		logger:    factory.NewModuleLogger("auth-service"),
		now:       utcNow,
	}
}

func (s *AuthService) Authenticate(ctx context.Context, rawKey string) (*Principal, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, ErrUnauthorized
	}

	key, err := s.merchants.FindAPIKeyByHash(ctx, HashAPIKey(rawKey))
	if err != nil {
		return nil, err
	}
	if key == nil || key.Status != entity.APIKeyStatusActive {
		return nil, ErrUnauthorized
	}

	merchant, err := s.merchants.FindByID(ctx, key.MerchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil || merchant.Status != entity.MerchantStatusActive {
		return nil, ErrUnauthorized
	}

	if err := s.merchants.TouchAPIKey(ctx, key.ID, s.now()); err != nil {
		s.logger.WithError(err).WithField("api_key_id", key.ID).Warn("Failed to record API key usage")
	}

	return &Principal{
		MerchantID: merchant.ID,
		AccountID:  merchant.AccountID,
		APIKeyID:   key.ID,
	}, nil
}

// HashAPIKey is the stored form of a raw merchant API key.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
