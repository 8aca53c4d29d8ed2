// README: Payout store interface and PostgreSQL implementation over the jobs/bids tables.
package payout

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleetbid/internal/modules/job"
	"fleetbid/internal/types"
)

type Store interface {
	// UnpaidCompleted returns the operator's completed jobs still at payout
	// status unpaid, oldest completion first. PROCESSING jobs are excluded,
	// which is what makes a payout re-run idempotent.
	UnpaidCompleted(ctx context.Context, operatorID types.ID) ([]Entry, error)
	Processing(ctx context.Context, operatorID types.ID) ([]Entry, error)
	OperatorsWithUnpaid(ctx context.Context) ([]types.ID, error)
	AdvancePayout(ctx context.Context, jobID types.ID, from, to job.PayoutStatus) (bool, error)
	RecordLedger(ctx context.Context, operatorID types.ID, jobIDs []types.ID, total types.Money, at time.Time) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const selectEntries = `
	SELECT j.id, j.assigned_operator_id, b.amount, j.completed_at
	FROM jobs j
	JOIN bids b ON b.id = j.winning_bid_id
	WHERE j.assigned_operator_id = $1
	  AND j.status = 'completed'
	  AND j.payout_status = $2
	ORDER BY j.completed_at`

func (s *PGStore) UnpaidCompleted(ctx context.Context, operatorID types.ID) ([]Entry, error) {
	return s.entries(ctx, operatorID, job.PayoutUnpaid)
}

func (s *PGStore) Processing(ctx context.Context, operatorID types.ID) ([]Entry, error) {
	return s.entries(ctx, operatorID, job.PayoutProcessing)
}

func (s *PGStore) entries(ctx context.Context, operatorID types.ID, status job.PayoutStatus) ([]Entry, error) {
	rows, err := s.db.Query(ctx, selectEntries, string(operatorID), string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.JobID, &e.OperatorID, &e.Amount.Amount, &e.CompletedAt); err != nil {
			return nil, err
		}
		e.Amount.Currency = types.DefaultCurrency
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) OperatorsWithUnpaid(ctx context.Context) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT assigned_operator_id FROM jobs
		WHERE status = 'completed'
		  AND payout_status = 'unpaid'
		  AND assigned_operator_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, types.ID(id))
	}
	return out, rows.Err()
}

func (s *PGStore) AdvancePayout(ctx context.Context, jobID types.ID, from, to job.PayoutStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET payout_status = $1
		WHERE id = $2 AND payout_status = $3`,
		string(to), string(jobID), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) RecordLedger(ctx context.Context, operatorID types.ID, jobIDs []types.ID, total types.Money, at time.Time) error {
	ids := make([]string, len(jobIDs))
	for i, id := range jobIDs {
		ids[i] = string(id)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO payout_ledger (operator_id, job_ids, total, paid_at)
		VALUES ($1, $2, $3, $4)`,
		string(operatorID), ids, total.Amount, at,
	)
	return err
}
