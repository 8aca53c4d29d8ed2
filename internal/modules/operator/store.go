// README: Operator store interface and PostgreSQL implementation.
package operator

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetbid/internal/types"
)

var ErrNotFound = errors.New("operator not found")

type Store interface {
	Get(ctx context.Context, id types.ID) (*Operator, error)
	SetApproval(ctx context.Context, id types.ID, approval Approval) error
	UpdateBank(ctx context.Context, id types.ID, bank BankDetails) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Operator, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, approval, reputation_score,
		       bank_account_name, bank_account_number, bank_sort_code, created_at
		FROM operators
		WHERE id = $1`, string(id),
	)
	var o Operator
	err := row.Scan(
		&o.ID, &o.Name, &o.Approval, &o.ReputationScore,
		&o.Bank.AccountName, &o.Bank.AccountNumber, &o.Bank.SortCode, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PGStore) SetApproval(ctx context.Context, id types.ID, approval Approval) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE operators SET approval = $1 WHERE id = $2`,
		string(approval), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdateBank(ctx context.Context, id types.ID, bank BankDetails) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE operators
		SET bank_account_name = $1, bank_account_number = $2, bank_sort_code = $3
		WHERE id = $4`,
		bank.AccountName, bank.AccountNumber, bank.SortCode, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
