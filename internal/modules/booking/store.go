// README: Booking store interface and PostgreSQL implementation (CAS status updates).
package booking

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetbid/internal/types"
)

type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings (
			id, vehicle_class, service_type, journey, passengers, luggage,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			pickup_postcode, dropoff_postcode, pickup_at,
			customer_price, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		string(b.ID), string(b.Vehicle), string(b.Service), string(b.Journey),
		b.Passengers, b.Luggage,
		b.Pickup.Lat, b.Pickup.Lng, b.Dropoff.Lat, b.Dropoff.Lng,
		b.PickupPostcode, b.DropoffPostcode, b.PickupAt,
		b.CustomerPrice.Amount, string(b.Status), b.CreatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, vehicle_class, service_type, journey, passengers, luggage,
		       pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
		       pickup_postcode, dropoff_postcode, pickup_at,
		       customer_price, status, created_at
		FROM bookings
		WHERE id = $1`, string(id),
	)
	var b Booking
	err := row.Scan(
		&b.ID, &b.Vehicle, &b.Service, &b.Journey, &b.Passengers, &b.Luggage,
		&b.Pickup.Lat, &b.Pickup.Lng, &b.Dropoff.Lat, &b.Dropoff.Lng,
		&b.PickupPostcode, &b.DropoffPostcode, &b.PickupAt,
		&b.CustomerPrice.Amount, &b.Status, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.CustomerPrice.Currency = types.DefaultCurrency
	return &b, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings SET status = $1
		WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
