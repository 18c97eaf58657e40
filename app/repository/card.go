package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-novapay/app/entity"
)

const cardColumns = `
	id, account_id, number_hash, last4, expiry_month, expiry_year, cvv_hash,
	holder_email, status, created_at, updated_at
`

type CardRepository struct {
	db DBTX
}

func NewCardRepository(db DBTX) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, card *entity.Card) error {
	query := `INSERT INTO cards (` + cardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		card.ID,
		card.AccountID,
		card.NumberHash,
		card.Last4,
		card.ExpiryMonth,
		card.ExpiryYear,
		card.CVVHash,
		card.HolderEmail,
		string(card.Status),
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil && isDuplicateEntryError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *CardRepository) FindByNumberHash(ctx context.Context, numberHash string) (*entity.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE number_hash = ?`
	card := &entity.Card{}
	if err := scanCard(conn(ctx, r.db).QueryRowContext(ctx, query, numberHash), card); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return card, nil
}

func scanCard(scan rowScanner, card *entity.Card) error {
	var status string
	if err := scan.Scan(
		&card.ID,
		&card.AccountID,
		&card.NumberHash,
		&card.Last4,
		&card.ExpiryMonth,
		&card.ExpiryYear,
		&card.CVVHash,
		&card.HolderEmail,
		&status,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		return err
	}
	card.Status = entity.CardStatus(status)
	return nil
}
