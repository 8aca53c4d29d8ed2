// README: Bid store interface and PostgreSQL implementation (CAS status updates).
package bid

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetbid/internal/types"
)

type Store interface {
	Upsert(ctx context.Context, b *Bid) error
	Get(ctx context.Context, id types.ID) (*Bid, error)
	GetByJobOperator(ctx context.Context, jobID, operatorID types.ID) (*Bid, error)
	ListByJob(ctx context.Context, jobID types.ID) ([]Bid, error)
	// UpdateStatus applies from→to only when the row still holds from;
	// the return value reports whether this caller won the race.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, deadline *time.Time) (bool, error)
	// MarkOpenLost forces every non-terminal bid on the job to LOST, except
	// the given winner (empty winner means all of them).
	MarkOpenLost(ctx context.Context, jobID, exceptID types.ID) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Upsert(ctx context.Context, b *Bid) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bids (id, job_id, operator_id, amount, status, acceptance_deadline, submitted_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (job_id, operator_id) DO UPDATE
		SET amount = EXCLUDED.amount,
		    status = EXCLUDED.status,
		    acceptance_deadline = EXCLUDED.acceptance_deadline,
		    submitted_at = EXCLUDED.submitted_at,
		    updated_at = EXCLUDED.updated_at`,
		string(b.ID), string(b.JobID), string(b.OperatorID),
		b.Amount.Amount, string(b.Status), b.AcceptanceDeadline,
		b.SubmittedAt, b.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Bid, error) {
	return s.scanOne(s.db.QueryRow(ctx, selectBid+` WHERE id = $1`, string(id)))
}

func (s *PGStore) GetByJobOperator(ctx context.Context, jobID, operatorID types.ID) (*Bid, error) {
	return s.scanOne(s.db.QueryRow(ctx,
		selectBid+` WHERE job_id = $1 AND operator_id = $2`,
		string(jobID), string(operatorID),
	))
}

func (s *PGStore) ListByJob(ctx context.Context, jobID types.ID) ([]Bid, error) {
	rows, err := s.db.Query(ctx,
		selectBid+` WHERE job_id = $1 ORDER BY submitted_at`, string(jobID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, deadline *time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bids
		SET status = $1,
		    acceptance_deadline = CASE WHEN $2::timestamptz IS NULL THEN acceptance_deadline ELSE $2 END,
		    updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		string(to), deadline, string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) MarkOpenLost(ctx context.Context, jobID, exceptID types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE bids
		SET status = $1, updated_at = NOW()
		WHERE job_id = $2
		  AND id <> $3
		  AND status IN ($4, $5)`,
		string(StatusLost), string(jobID), string(exceptID),
		string(StatusPending), string(StatusOffered),
	)
	return err
}

const selectBid = `
	SELECT id, job_id, operator_id, amount, status, acceptance_deadline, submitted_at, updated_at
	FROM bids`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PGStore) scanOne(row rowScanner) (*Bid, error) {
	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func scanBid(row rowScanner) (*Bid, error) {
	var b Bid
	err := row.Scan(
		&b.ID, &b.JobID, &b.OperatorID, &b.Amount.Amount, &b.Status,
		&b.AcceptanceDeadline, &b.SubmittedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Amount.Currency = types.DefaultCurrency
	return &b, nil
}
