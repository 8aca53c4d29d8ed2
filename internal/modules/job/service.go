// README: Job service; spawns jobs from paid bookings and drives the bidding-window state machine.
package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fleetbid/internal/config"
	"fleetbid/internal/modules/bid"
	"fleetbid/internal/modules/booking"
	"fleetbid/internal/modules/operator"
	"fleetbid/internal/notify"
	"fleetbid/internal/types"
)

var (
	ErrNotFound        = errors.New("job not found")
	ErrInvalidState    = errors.New("invalid job state transition")
	ErrConflict        = errors.New("job state conflict")
	ErrBadRequest      = errors.New("bad request")
	ErrJobExists       = errors.New("job already exists for booking")
	ErrBookingNotPaid  = errors.New("booking is not paid")
	ErrOfferExpired    = errors.New("offer no longer open; job redirected")
	ErrNoOfferedBid    = errors.New("no offered bid for operator")
	ErrNotApproved     = errors.New("operator not approved")
)

// Timers is the cancellable delayed-task runner driving window-close and
// acceptance-deadline transitions.
type Timers interface {
	Schedule(key string, at time.Time, fn func(ctx context.Context))
	Cancel(key string) bool
}

// BidBook is the slice of the bid service the state machine drives.
type BidBook interface {
	ActiveByJob(ctx context.Context, jobID types.ID) ([]bid.Bid, error)
	ByJobOperator(ctx context.Context, jobID, operatorID types.ID) (*bid.Bid, error)
	MarkOffered(ctx context.Context, id types.ID, deadline time.Time) error
	AcceptOffered(ctx context.Context, id types.ID) error
	DeclineOffered(ctx context.Context, id types.ID) error
	TimeoutOffered(ctx context.Context, id types.ID) error
	MarkOthersLost(ctx context.Context, jobID, winnerID types.ID) error
	ForceLoseOpen(ctx context.Context, jobID types.ID) error
	RevertWon(ctx context.Context, id types.ID) error
	ForceWin(ctx context.Context, jobID, operatorID types.ID, amount types.Money) (*bid.Bid, error)
}

type Bookings interface {
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
	MarkAssigned(ctx context.Context, id types.ID) error
	MarkCompleted(ctx context.Context, id types.ID) error
}

type Operators interface {
	Get(ctx context.Context, id types.ID) (*operator.Operator, error)
}

type Service struct {
	store     Store
	bids      BidBook
	bookings  Bookings
	operators Operators
	timers    Timers
	notifier  notify.Dispatcher
	cfg       config.AuctionConfig
	log       *slog.Logger
}

func NewService(store Store, bids BidBook, bookings Bookings, operators Operators, timers Timers, notifier notify.Dispatcher, cfg config.AuctionConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		bids:      bids,
		bookings:  bookings,
		operators: operators,
		timers:    timers,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
	}
}

type CreateCommand struct {
	BookingID types.ID
}

// CreateFromBooking spawns the Job the instant its Booking is paid. The
// bidding window duration follows the journey urgency: one-way bookings get
// the short window, return journeys the long one. Exactly one Job may derive
// from a Booking.
func (s *Service) CreateFromBooking(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.BookingID == "" {
		return "", ErrBadRequest
	}
	bk, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		return "", err
	}
	if bk.Status != booking.StatusPaid {
		return "", ErrBookingNotPaid
	}
	if _, err := s.store.GetByBooking(ctx, cmd.BookingID); err == nil {
		return "", ErrJobExists
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	window := s.cfg.OneWayWindow
	if bk.Journey == booking.JourneyReturn {
		window = s.cfg.ReturnWindow
	}

	now := time.Now()
	j := &Job{
		ID:              types.ID(uuid.NewString()),
		BookingID:       bk.ID,
		Vehicle:         bk.Vehicle,
		CustomerPrice:   bk.CustomerPrice,
		PickupAt:        bk.PickupAt,
		Status:          StatusOpenForBidding,
		StatusVersion:   0,
		BiddingOpensAt:  now,
		BiddingClosesAt: now.Add(window),
		PayoutStatus:    PayoutUnpaid,
		CreatedAt:       now,
	}
	if err := s.store.Create(ctx, j); err != nil {
		return "", err
	}

	s.scheduleClose(j.ID, j.BiddingClosesAt)
	s.notifier.Notify(ctx, notify.Event{Kind: notify.KindJobOpen, JobID: j.ID})
	return j.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Job, error) {
	return s.store.Get(ctx, id)
}

// JobForBidding implements the bid service's view of a job.
func (s *Service) JobForBidding(ctx context.Context, jobID types.ID) (bid.JobView, error) {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return bid.JobView{}, err
	}
	open := j.Status == StatusOpenForBidding && time.Now().Before(j.BiddingClosesAt)
	return bid.JobView{
		ID:             j.ID,
		OpenForBidding: open,
		CustomerPrice:  j.CustomerPrice,
		Vehicle:        j.Vehicle,
	}, nil
}

// ListVisibleToOperator is the "jobs visible to operator X" read model:
// everything currently open for bidding.
func (s *Service) ListVisibleToOperator(ctx context.Context, operatorID types.ID) ([]Job, error) {
	op, err := s.operators.Get(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if !op.CanBid() {
		return nil, nil
	}
	return s.store.ListOpen(ctx)
}

// CloseWindow evaluates a job's bidding window: zero bids escalate to
// NO_BIDS_RECEIVED, otherwise the ranked offer cascade starts. Evaluating a
// job already past OPEN_FOR_BIDDING is a guaranteed no-op, which makes the
// scheduled timer, an admin early close, and a re-run all safe against each
// other: the first actor wins and the loser observes the transition.
func (s *Service) CloseWindow(ctx context.Context, jobID types.ID) error {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != StatusOpenForBidding {
		if j.Status == StatusBiddingClosed {
			// An earlier evaluation may have died between the status flip
			// and the first offer; re-derive from current state.
			return s.rearmOffer(ctx, jobID)
		}
		s.log.Info("window close skipped, job already transitioned", "job_id", jobID, "status", j.Status)
		return nil
	}
	ok, err := s.store.UpdateStatus(ctx, j.ID, StatusOpenForBidding, StatusBiddingClosed, j.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Info("window close lost the race, no-op", "job_id", jobID)
		return nil
	}

	active, err := s.bids.ActiveByJob(ctx, jobID)
	if err != nil {
		return err
	}
	pending := 0
	for _, b := range active {
		if b.Status == bid.StatusPending {
			pending++
		}
	}
	if pending == 0 {
		return s.escalate(ctx, jobID, notify.ReasonNoBids)
	}
	return s.offerNext(ctx, jobID)
}

// EarlyClose is the admin trigger: it cancels the pending scheduled timer
// first so the evaluation cannot run twice, then performs the same
// evaluation.
func (s *Service) EarlyClose(ctx context.Context, jobID types.ID) error {
	s.timers.Cancel(closeKey(jobID))
	return s.CloseWindow(ctx, jobID)
}

// Reopen returns a NO_BIDS_RECEIVED job to the market with a fresh window.
func (s *Service) Reopen(ctx context.Context, jobID types.ID) error {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != StatusNoBidsReceived {
		return ErrInvalidState
	}
	now := time.Now()
	closesAt := now.Add(s.cfg.ReopenWindow)
	ok, err := s.store.ReopenWindow(ctx, j.ID, j.StatusVersion, now, closesAt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.scheduleClose(j.ID, closesAt)
	s.notifier.Notify(ctx, notify.Event{Kind: notify.KindJobOpen, JobID: j.ID})
	return nil
}

type ManualAssignCommand struct {
	JobID      types.ID
	OperatorID types.ID
	// Amount is required when the operator holds no bid on the job;
	// otherwise their existing bid amount is kept when zero.
	Amount types.Money
}

// ManualAssign lets an admin hand the job to any approved operator at any
// point before assignment. It cancels pending timers, forces the operator's
// bid to WON, marks the rest LOST, and records the platform margin.
func (s *Service) ManualAssign(ctx context.Context, cmd ManualAssignCommand) error {
	op, err := s.operators.Get(ctx, cmd.OperatorID)
	if err != nil {
		return err
	}
	if !op.CanBid() {
		return ErrNotApproved
	}

	j, err := s.store.Get(ctx, cmd.JobID)
	if err != nil {
		return err
	}
	switch j.Status {
	case StatusOpenForBidding, StatusBiddingClosed, StatusNoBidsReceived:
	default:
		return ErrInvalidState
	}
	if cmd.Amount.Amount > j.CustomerPrice.Amount {
		return ErrBadRequest
	}

	s.cancelTimers(ctx, j)

	won, err := s.bids.ForceWin(ctx, j.ID, cmd.OperatorID, cmd.Amount)
	if err != nil {
		return err
	}
	if won.Amount.Amount > j.CustomerPrice.Amount {
		return ErrBadRequest
	}
	margin := j.CustomerPrice.Sub(won.Amount)
	ok, err := s.store.Assign(ctx, j.ID, j.Status, j.StatusVersion, cmd.OperatorID, won.ID, margin)
	if err != nil {
		return err
	}
	if !ok {
		// A competing assignment landed between the snapshot and the CAS;
		// the forced-won bid must not survive it.
		s.rollbackLostWin(ctx, j.ID, won.ID)
		return ErrConflict
	}
	if err := s.bookings.MarkAssigned(ctx, j.BookingID); err != nil {
		s.log.Warn("booking assign update failed", "booking_id", j.BookingID, "err", err)
	}
	s.notifier.Notify(ctx, notify.Event{Kind: notify.KindJobAssigned, JobID: j.ID, OperatorID: cmd.OperatorID})
	return nil
}

// rollbackLostWin reverts a bid that was moved to WON by an actor that then
// lost the job's assignment CAS. When the competing assignment landed on the
// same bid the revert is skipped: the job row is authoritative and that bid
// really did win.
func (s *Service) rollbackLostWin(ctx context.Context, jobID, bidID types.ID) {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		s.log.Error("job lookup for won-bid rollback failed", "job_id", jobID, "bid_id", bidID, "err", err)
		return
	}
	if j.WinningBidID != nil && *j.WinningBidID == bidID {
		return
	}
	if err := s.bids.RevertWon(ctx, bidID); err != nil && !errors.Is(err, bid.ErrConflict) {
		s.log.Error("reverting won bid after lost assignment failed", "job_id", jobID, "bid_id", bidID, "err", err)
	}
}

// Start moves an assigned job into progress.
func (s *Service) Start(ctx context.Context, jobID types.ID) error {
	return s.transition(ctx, jobID, StatusAssigned, StatusInProgress)
}

// Complete finishes the journey; the job now ages toward payout
// eligibility.
func (s *Service) Complete(ctx context.Context, jobID types.ID) error {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, jobID, StatusInProgress, StatusCompleted); err != nil {
		return err
	}
	if err := s.bookings.MarkCompleted(ctx, j.BookingID); err != nil {
		s.log.Warn("booking complete update failed", "booking_id", j.BookingID, "err", err)
	}
	return nil
}

// Cancel tears the job down before completion: pending timers are cancelled
// so no stale evaluation fires later, and remaining live bids are forced
// terminal.
func (s *Service) Cancel(ctx context.Context, jobID types.ID) error {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !CanTransition(j.Status, StatusCancelled) {
		return ErrInvalidState
	}
	s.cancelTimers(ctx, j)
	ok, err := s.store.UpdateStatus(ctx, j.ID, j.Status, StatusCancelled, j.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if err := s.bids.ForceLoseOpen(ctx, j.ID); err != nil {
		s.log.Warn("forcing bids lost failed", "job_id", j.ID, "err", err)
	}
	s.notifier.Notify(ctx, notify.Event{Kind: notify.KindJobCancelled, JobID: j.ID})
	return nil
}

// CancelForBooking is the booking-cancellation boundary.
func (s *Service) CancelForBooking(ctx context.Context, bookingID types.ID) error {
	j, err := s.store.GetByBooking(ctx, bookingID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Cancel(ctx, j.ID)
}

func (s *Service) transition(ctx context.Context, jobID types.ID, from, to Status) error {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != from || !CanTransition(from, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, j.ID, from, to, j.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// escalate parks the job for human action. Both "no bids at all" and
// "ranked list exhausted" end here; the reason code distinguishes them.
func (s *Service) escalate(ctx context.Context, jobID types.ID, reason string) error {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != StatusBiddingClosed {
		return nil
	}
	ok, err := s.store.UpdateStatus(ctx, j.ID, StatusBiddingClosed, StatusNoBidsReceived, j.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.notifier.Notify(ctx, notify.Event{Kind: notify.KindEscalation, JobID: jobID, Reason: reason})
	return nil
}

func (s *Service) scheduleClose(jobID types.ID, at time.Time) {
	s.timers.Schedule(closeKey(jobID), at, func(ctx context.Context) {
		// Each job's evaluation is independent; a failure here must not
		// block other jobs, and the evaluation re-derives everything from
		// current state on the next trigger.
		if err := s.CloseWindow(ctx, jobID); err != nil {
			s.log.Error("scheduled window close failed", "job_id", jobID, "err", err)
		}
	})
}

// Rehydrate re-arms the in-memory timers from persisted state: open jobs get
// their window-close timer back (overdue windows evaluate immediately, the
// scheduler fires past deadlines at once), jobs holding a live offer get the
// acceptance-deadline timer back, and a job stuck mid-evaluation with no live
// offer re-enters the cascade. Called at boot, after a restart wiped the
// timers, and by the periodic sweeper.
func (s *Service) Rehydrate(ctx context.Context) error {
	open, err := s.store.ListByStatus(ctx, StatusOpenForBidding)
	if err != nil {
		return err
	}
	for _, j := range open {
		s.scheduleClose(j.ID, j.BiddingClosesAt)
	}

	closed, err := s.store.ListByStatus(ctx, StatusBiddingClosed)
	if err != nil {
		return err
	}
	for _, j := range closed {
		if err := s.rearmOffer(ctx, j.ID); err != nil {
			s.log.Error("rehydrating offer state failed", "job_id", j.ID, "err", err)
		}
	}
	return nil
}

// RunOverdueSweeper periodically re-derives timer state from the store, so a
// window or deadline that should have fired while the process was down still
// evaluates. Blocks until ctx is done.
func (s *Service) RunOverdueSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Rehydrate(ctx); err != nil {
				s.log.Error("overdue sweep failed", "err", err)
			}
		}
	}
}

// rearmOffer restores the acceptance-deadline timer for a BIDDING_CLOSED
// job's live offer. When no offer is live the previous evaluation never
// finished, so the cascade re-enters from current state: remaining pending
// bids get offered, an empty bid list escalates.
func (s *Service) rearmOffer(ctx context.Context, jobID types.ID) error {
	active, err := s.bids.ActiveByJob(ctx, jobID)
	if err != nil {
		return err
	}
	for _, b := range active {
		if b.Status != bid.StatusOffered {
			continue
		}
		deadline := time.Now().Add(s.cfg.AcceptanceWindow)
		if b.AcceptanceDeadline != nil {
			deadline = *b.AcceptanceDeadline
		}
		bidID, operatorID := b.ID, b.OperatorID
		s.timers.Schedule(offerKey(bidID), deadline, func(ctx context.Context) {
			s.onOfferTimeout(ctx, jobID, bidID, operatorID)
		})
		return nil
	}
	if len(active) == 0 {
		return s.escalate(ctx, jobID, notify.ReasonNoBids)
	}
	return s.offerNext(ctx, jobID)
}

func (s *Service) cancelTimers(ctx context.Context, j *Job) {
	s.timers.Cancel(closeKey(j.ID))
	active, err := s.bids.ActiveByJob(ctx, j.ID)
	if err != nil {
		s.log.Warn("listing bids for timer cancel failed", "job_id", j.ID, "err", err)
		return
	}
	for _, b := range active {
		if b.Status == bid.StatusOffered {
			s.timers.Cancel(offerKey(b.ID))
		}
	}
}

func closeKey(jobID types.ID) string { return "job-close:" + string(jobID) }
func offerKey(bidID types.ID) string { return "bid-offer:" + string(bidID) }
