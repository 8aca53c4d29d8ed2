// README: Job store interface and PostgreSQL implementation (status_version CAS).
package job

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetbid/internal/types"
)

// Store is the persistence port for jobs. Every status mutation is a
// compare-and-swap on (status, status_version): the first actor wins and the
// loser observes false, which the service layer treats as "already
// transitioned, no-op".
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id types.ID) (*Job, error)
	GetByBooking(ctx context.Context, bookingID types.ID) (*Job, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error)
	Assign(ctx context.Context, id types.ID, from Status, version int, operatorID, bidID types.ID, margin types.Money) (bool, error)
	ReopenWindow(ctx context.Context, id types.ID, version int, opensAt, closesAt time.Time) (bool, error)
	ListOpen(ctx context.Context) ([]Job, error)
	ListByStatus(ctx context.Context, status Status) ([]Job, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, j *Job) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO jobs (
			id, booking_id, vehicle_class, customer_price, pickup_at,
			status, status_version, bidding_opens_at, bidding_closes_at,
			payout_status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		string(j.ID), string(j.BookingID), string(j.Vehicle),
		j.CustomerPrice.Amount, j.PickupAt,
		string(j.Status), j.StatusVersion, j.BiddingOpensAt, j.BiddingClosesAt,
		string(j.PayoutStatus), j.CreatedAt,
	)
	return err
}

const selectJob = `
	SELECT id, booking_id, vehicle_class, customer_price, pickup_at,
	       status, status_version, bidding_opens_at, bidding_closes_at,
	       assigned_operator_id, winning_bid_id, platform_margin,
	       payout_status, completed_at, created_at
	FROM jobs`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Job, error) {
	return scanJob(s.db.QueryRow(ctx, selectJob+` WHERE id = $1`, string(id)))
}

func (s *PGStore) GetByBooking(ctx context.Context, bookingID types.ID) (*Job, error) {
	return scanJob(s.db.QueryRow(ctx, selectJob+` WHERE booking_id = $1`, string(bookingID)))
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = $1,
		    status_version = status_version + 1,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) Assign(ctx context.Context, id types.ID, from Status, version int, operatorID, bidID types.ID, margin types.Money) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = $1,
		    status_version = status_version + 1,
		    assigned_operator_id = $2,
		    winning_bid_id = $3,
		    platform_margin = $4
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(StatusAssigned), string(operatorID), string(bidID), margin.Amount,
		string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ReopenWindow(ctx context.Context, id types.ID, version int, opensAt, closesAt time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = $1,
		    status_version = status_version + 1,
		    bidding_opens_at = $2,
		    bidding_closes_at = $3
		WHERE id = $4 AND status = $5 AND status_version = $6`,
		string(StatusOpenForBidding), opensAt, closesAt,
		string(id), string(StatusNoBidsReceived), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ListOpen(ctx context.Context) ([]Job, error) {
	return s.ListByStatus(ctx, StatusOpenForBidding)
}

func (s *PGStore) ListByStatus(ctx context.Context, status Status) ([]Job, error) {
	rows, err := s.db.Query(ctx,
		selectJob+` WHERE status = $1 ORDER BY bidding_closes_at`,
		string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var operatorID, bidID sql.NullString
	var margin sql.NullInt64
	var completedAt sql.NullTime

	err := row.Scan(
		&j.ID, &j.BookingID, &j.Vehicle, &j.CustomerPrice.Amount, &j.PickupAt,
		&j.Status, &j.StatusVersion, &j.BiddingOpensAt, &j.BiddingClosesAt,
		&operatorID, &bidID, &margin,
		&j.PayoutStatus, &completedAt, &j.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	j.CustomerPrice.Currency = types.DefaultCurrency
	if operatorID.Valid {
		v := types.ID(operatorID.String)
		j.AssignedOperatorID = &v
	}
	if bidID.Valid {
		v := types.ID(bidID.String)
		j.WinningBidID = &v
	}
	if margin.Valid {
		m := types.Pence(margin.Int64)
		j.PlatformMargin = &m
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return &j, nil
}
