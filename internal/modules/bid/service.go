// README: Bid service; submission-time validation plus the status operations the job state machine drives.
package bid

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fleetbid/internal/modules/fare"
	"fleetbid/internal/modules/operator"
	"fleetbid/internal/types"
)

var (
	ErrNotFound            = errors.New("bid not found")
	ErrConflict            = errors.New("bid state conflict")
	ErrInvalidState        = errors.New("invalid bid state transition")
	ErrInvalidAmount       = errors.New("bid amount out of range")
	ErrOperatorNotApproved = errors.New("operator not approved to bid")
	ErrJobNotOpen          = errors.New("job not open for bidding")
)

// JobView is what bid validation needs to know about a Job.
type JobView struct {
	ID             types.ID
	OpenForBidding bool
	CustomerPrice  types.Money
	Vehicle        fare.VehicleClass
}

// JobCatalog is implemented by the job service.
type JobCatalog interface {
	JobForBidding(ctx context.Context, jobID types.ID) (JobView, error)
}

// Operators is the approval/reputation directory.
type Operators interface {
	Get(ctx context.Context, id types.ID) (*operator.Operator, error)
}

type Service struct {
	store     Store
	jobs      JobCatalog
	operators Operators
	rates     fare.RateResolver
}

func NewService(store Store, jobs JobCatalog, operators Operators, rates fare.RateResolver) *Service {
	return &Service{store: store, jobs: jobs, operators: operators, rates: rates}
}

type SubmitCommand struct {
	JobID      types.ID
	OperatorID types.ID
	Amount     types.Money
}

// Submit validates and records a sealed bid. A resubmission while the bid is
// still pending updates the existing row rather than duplicating it.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (types.ID, error) {
	op, err := s.operators.Get(ctx, cmd.OperatorID)
	if err != nil {
		return "", err
	}
	if !op.CanBid() {
		return "", ErrOperatorNotApproved
	}

	view, err := s.jobs.JobForBidding(ctx, cmd.JobID)
	if err != nil {
		return "", err
	}
	if !view.OpenForBidding {
		return "", ErrJobNotOpen
	}
	if err := s.validateAmount(ctx, view, cmd.Amount); err != nil {
		return "", err
	}

	now := time.Now()
	b := &Bid{
		ID:          types.ID(uuid.NewString()),
		JobID:       cmd.JobID,
		OperatorID:  cmd.OperatorID,
		Amount:      cmd.Amount,
		Status:      StatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if existing, err := s.store.GetByJobOperator(ctx, cmd.JobID, cmd.OperatorID); err == nil {
		if existing.Status != StatusPending && existing.Status != StatusWithdrawn {
			return "", ErrInvalidState
		}
		b.ID = existing.ID
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	if err := s.store.Upsert(ctx, b); err != nil {
		return "", err
	}
	return b.ID, nil
}

func (s *Service) validateAmount(ctx context.Context, view JobView, amount types.Money) error {
	if amount.Amount <= 0 || amount.Amount > view.CustomerPrice.Amount {
		return ErrInvalidAmount
	}
	minBps, err := s.rates.Rate(ctx, fare.RuleMinBidBps, view.Vehicle)
	if err != nil {
		return err
	}
	if amount.Amount < view.CustomerPrice.Bps(minBps).Amount {
		return ErrInvalidAmount
	}
	return nil
}

// Withdraw retracts a pending bid before the window closes.
func (s *Service) Withdraw(ctx context.Context, jobID, operatorID types.ID) error {
	b, err := s.store.GetByJobOperator(ctx, jobID, operatorID)
	if err != nil {
		return err
	}
	if b.Status != StatusPending {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, StatusPending, StatusWithdrawn, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Bid, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ByJobOperator(ctx context.Context, jobID, operatorID types.ID) (*Bid, error) {
	return s.store.GetByJobOperator(ctx, jobID, operatorID)
}

// ActiveByJob returns the job's non-withdrawn bids, the winner selector's
// input.
func (s *Service) ActiveByJob(ctx context.Context, jobID types.ID) ([]Bid, error) {
	all, err := s.store.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, b := range all {
		if b.Status != StatusWithdrawn {
			out = append(out, b)
		}
	}
	return out, nil
}

// MarkOffered moves pending→offered with the acceptance deadline.
func (s *Service) MarkOffered(ctx context.Context, id types.ID, deadline time.Time) error {
	return s.cas(ctx, id, StatusPending, StatusOffered, &deadline)
}

// AcceptOffered moves offered→won. A late accept (the deadline timer already
// moved the bid on) loses the race and returns ErrConflict.
func (s *Service) AcceptOffered(ctx context.Context, id types.ID) error {
	return s.cas(ctx, id, StatusOffered, StatusWon, nil)
}

func (s *Service) DeclineOffered(ctx context.Context, id types.ID) error {
	return s.cas(ctx, id, StatusOffered, StatusDeclined, nil)
}

// TimeoutOffered moves offered→lost when the acceptance deadline expires.
func (s *Service) TimeoutOffered(ctx context.Context, id types.ID) error {
	return s.cas(ctx, id, StatusOffered, StatusLost, nil)
}

// MarkOthersLost settles every other live bid on the job once a winner is
// decided.
func (s *Service) MarkOthersLost(ctx context.Context, jobID, winnerID types.ID) error {
	return s.store.MarkOpenLost(ctx, jobID, winnerID)
}

// ForceLoseOpen terminates all live bids (job cancelled or escalated).
func (s *Service) ForceLoseOpen(ctx context.Context, jobID types.ID) error {
	return s.store.MarkOpenLost(ctx, jobID, "")
}

// RevertWon rolls a won bid back to lost. Only the job state machine calls
// this, when an accept loses the assignment race to a manual override.
func (s *Service) RevertWon(ctx context.Context, id types.ID) error {
	ok, err := s.store.UpdateStatus(ctx, id, StatusWon, StatusLost, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// ForceWin implements the admin manual override: the operator's bid is
// created or overwritten as WON at the given amount.
func (s *Service) ForceWin(ctx context.Context, jobID, operatorID types.ID, amount types.Money) (*Bid, error) {
	now := time.Now()
	b := &Bid{
		ID:          types.ID(uuid.NewString()),
		JobID:       jobID,
		OperatorID:  operatorID,
		Amount:      amount,
		Status:      StatusWon,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if existing, err := s.store.GetByJobOperator(ctx, jobID, operatorID); err == nil {
		b.ID = existing.ID
		b.SubmittedAt = existing.SubmittedAt
		if amount.Amount <= 0 {
			b.Amount = existing.Amount
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if b.Amount.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.store.Upsert(ctx, b); err != nil {
		return nil, err
	}
	if err := s.store.MarkOpenLost(ctx, jobID, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) cas(ctx context.Context, id types.ID, from, to Status, deadline *time.Time) error {
	if !CanTransition(from, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, id, from, to, deadline)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}
