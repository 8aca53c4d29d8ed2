// README: Rate store backed by PostgreSQL with a two-tier (vehicle, default) lookup.
package fare

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Rate resolves rule × vehicle, falling back to the 'default' vehicle row.
// A missing specific rate never fails the quote; only a missing default does.
func (s *Store) Rate(ctx context.Context, rule RuleType, vehicle VehicleClass) (int64, error) {
	var value int64
	err := s.db.QueryRow(ctx, `
		SELECT value FROM fare_rates
		WHERE rule_type = $1 AND vehicle_class = $2`,
		string(rule), string(vehicle),
	).Scan(&value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT value FROM fare_rates
		WHERE rule_type = $1 AND vehicle_class = $2`,
		string(rule), string(ClassDefault),
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s/%s", ErrRateNotConfigured, rule, vehicle)
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}
