package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
	"golang.org/x/crypto/bcrypt"
)

type fakeCardRepo struct {
	cards map[string]*entity.Card
}

func (f *fakeCardRepo) FindByNumberHash(_ context.Context, numberHash string) (*entity.Card, error) {
	return f.cards[numberHash], nil
}

func newTestNetwork(t *testing.T, card *entity.Card, number, cvv string) *ClosedLoopNetwork {
	t.Helper()
	hash, err := HashSecurityCode(cvv, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash cvv: %v", err)
	}
	card.NumberHash = HashCardNumber(number)
	card.CVVHash = hash
	return NewClosedLoopNetwork(&fakeCardRepo{cards: map[string]*entity.Card{card.NumberHash: card}})
}

func TestClosedLoopNetworkAuthorize(t *testing.T) {
	const number = "4111111111111111"
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	card := &entity.Card{
		ID:          "card-1",
		AccountID:   "payer-1",
		ExpiryMonth: 12,
		ExpiryYear:  2028,
		HolderEmail: "payer@example.com",
		Status:      entity.CardStatusActive,
	}
	network := newTestNetwork(t, card, number, "123")

	valid := CardCredentials{Number: number, ExpiryMonth: 12, ExpiryYear: 2028, SecurityCode: "123", HolderEmail: "Payer@Example.com"}

	got, err := network.Authorize(context.Background(), &valid, now)
	if err != nil {
		t.Fatalf("expected authorization, got %v", err)
	}
	if got.AccountID != "payer-1" {
		t.Fatalf("unexpected account: %s", got.AccountID)
	}

	cases := []struct {
		name   string
		mutate func(c *CardCredentials)
		want   error
	}{
		{"unknown number", func(c *CardCredentials) { c.Number = "5555555555554444" }, ErrCardNotFound},
		{"email mismatch", func(c *CardCredentials) { c.HolderEmail = "other@example.com" }, ErrCardNotFound},
		{"expiry mismatch", func(c *CardCredentials) { c.ExpiryYear = 2029 }, ErrCardNotFound},
		{"cvv mismatch", func(c *CardCredentials) { c.SecurityCode = "999" }, ErrSecurityCodeMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creds := valid
			tc.mutate(&creds)
			if _, err := network.Authorize(context.Background(), &creds, now); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestClosedLoopNetworkCardState(t *testing.T) {
	const number = "4111111111111111"
	card := &entity.Card{ExpiryMonth: 1, ExpiryYear: 2026, HolderEmail: "p@example.com", Status: entity.CardStatusInactive}
	network := newTestNetwork(t, card, number, "123")
	creds := &CardCredentials{Number: number, ExpiryMonth: 1, ExpiryYear: 2026, SecurityCode: "123", HolderEmail: "p@example.com"}

	if _, err := network.Authorize(context.Background(), creds, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrCardInactive) {
		t.Fatalf("expected inactive card, got %v", err)
	}

	card.Status = entity.CardStatusActive
	if _, err := network.Authorize(context.Background(), creds, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrCardExpired) {
		t.Fatalf("expected expired card, got %v", err)
	}
}

func TestLast4(t *testing.T) {
	if Last4("4111111111111111") != "1111" {
		t.Fatal("unexpected last4")
	}
	if Last4("12") != "12" {
		t.Fatal("expected short input unchanged")
	}
}
