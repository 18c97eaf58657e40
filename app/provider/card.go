package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrCardNotFound         = errors.New("card not found")
	ErrCardInactive         = errors.New("card is not active")
	ErrCardExpired          = errors.New("card is expired")
	ErrSecurityCodeMismatch = errors.New("security code does not match")
)

type CardCredentials struct {
	Number       string
	ExpiryMonth  int
	ExpiryYear   int
	SecurityCode string
	HolderEmail  string
}

type cardRepository interface {
	FindByNumberHash(ctx context.Context, numberHash string) (*entity.Card, error)
}

// ClosedLoopNetwork authorizes cards issued by this platform against the
// card store. No external network is contacted.
type ClosedLoopNetwork struct {
	cards cardRepository
}

func NewClosedLoopNetwork(cards cardRepository) *ClosedLoopNetwork {
	return &ClosedLoopNetwork{cards: cards}
}

// Authorize resolves credentials to an issued card. Checks run in a fixed
// order so the decline reported for a given card is deterministic.
func (n *ClosedLoopNetwork) Authorize(ctx context.Context, creds *CardCredentials, now time.Time) (*entity.Card, error) {
	card, err := n.cards.FindByNumberHash(ctx, HashCardNumber(creds.Number))
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrCardNotFound
	}
	if !strings.EqualFold(strings.TrimSpace(card.HolderEmail), strings.TrimSpace(creds.HolderEmail)) {
		return nil, ErrCardNotFound
	}
	if card.Status != entity.CardStatusActive {
		return nil, ErrCardInactive
	}
	if card.ExpiredAt(now) {
		return nil, ErrCardExpired
	}
	if card.ExpiryMonth != creds.ExpiryMonth || card.ExpiryYear != creds.ExpiryYear {
		return nil, ErrCardNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(card.CVVHash), []byte(creds.SecurityCode)) != nil {
		return nil, ErrSecurityCodeMismatch
	}
	return card, nil
}

func HashCardNumber(number string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(number)))
	return hex.EncodeToString(sum[:])
}

func HashSecurityCode(code string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func Last4(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
