// README: Booking service; create/pay/cancel lifecycle, price fixed at quote time.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fleetbid/internal/modules/fare"
	"fleetbid/internal/types"
)

var (
	ErrNotFound     = errors.New("booking not found")
	ErrInvalidState = errors.New("invalid booking state transition")
	ErrConflict     = errors.New("booking state conflict")
	ErrBadRequest   = errors.New("bad booking request")
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	Vehicle         fare.VehicleClass
	Service         fare.ServiceType
	Journey         Journey
	Passengers      int
	Luggage         int
	Pickup          types.Point
	Dropoff         types.Point
	PickupPostcode  string
	DropoffPostcode string
	PickupAt        time.Time
	// QuotedPrice is the fare calculator's total at quote time; it becomes
	// the immutable customer price.
	QuotedPrice types.Money
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.Vehicle == "" || cmd.PickupAt.IsZero() || cmd.QuotedPrice.Amount <= 0 {
		return "", ErrBadRequest
	}
	if cmd.Journey == "" {
		cmd.Journey = JourneyOneWay
	}
	b := &Booking{
		ID:              types.ID(uuid.NewString()),
		Vehicle:         cmd.Vehicle,
		Service:         cmd.Service,
		Journey:         cmd.Journey,
		Passengers:      cmd.Passengers,
		Luggage:         cmd.Luggage,
		Pickup:          cmd.Pickup,
		Dropoff:         cmd.Dropoff,
		PickupPostcode:  cmd.PickupPostcode,
		DropoffPostcode: cmd.DropoffPostcode,
		PickupAt:        cmd.PickupAt,
		CustomerPrice:   cmd.QuotedPrice,
		Status:          StatusPending,
		CreatedAt:       time.Now(),
	}
	if err := s.store.Create(ctx, b); err != nil {
		return "", err
	}
	return b.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

// MarkPaid records the captured payment. The caller is expected to spawn the
// Job immediately afterwards.
func (s *Service) MarkPaid(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, StatusPaid)
}

func (s *Service) MarkAssigned(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, StatusAssigned)
}

func (s *Service) MarkCompleted(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id types.ID, to Status) error {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(b.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, id, b.Status, to)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}
