// README: Shared in-memory fakes and fixture plumbing for the job tests.
package job

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"fleetbid/internal/config"
	"fleetbid/internal/modules/bid"
	"fleetbid/internal/modules/booking"
	"fleetbid/internal/modules/fare"
	"fleetbid/internal/modules/operator"
	"fleetbid/internal/notify"
	"fleetbid/internal/scheduler"
	"fleetbid/internal/types"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[types.ID]*Job
}

func newMemStore() *memStore {
	return &memStore{jobs: map[types.ID]*Job{}}
}

func (m *memStore) Create(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) GetByBooking(_ context.Context, bookingID types.ID) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.BookingID == bookingID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != from || j.StatusVersion != version {
		return false, nil
	}
	j.Status = to
	j.StatusVersion++
	if to == StatusCompleted && j.CompletedAt == nil {
		now := time.Now()
		j.CompletedAt = &now
	}
	return true, nil
}

func (m *memStore) Assign(_ context.Context, id types.ID, from Status, version int, operatorID, bidID types.ID, margin types.Money) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != from || j.StatusVersion != version {
		return false, nil
	}
	j.Status = StatusAssigned
	j.StatusVersion++
	j.AssignedOperatorID = &operatorID
	j.WinningBidID = &bidID
	j.PlatformMargin = &margin
	return true, nil
}

func (m *memStore) ReopenWindow(_ context.Context, id types.ID, version int, opensAt, closesAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != StatusNoBidsReceived || j.StatusVersion != version {
		return false, nil
	}
	j.Status = StatusOpenForBidding
	j.StatusVersion++
	j.BiddingOpensAt = opensAt
	j.BiddingClosesAt = closesAt
	return true, nil
}

func (m *memStore) ListOpen(ctx context.Context) ([]Job, error) {
	return m.ListByStatus(ctx, StatusOpenForBidding)
}

func (m *memStore) ListByStatus(_ context.Context, status Status) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for _, j := range m.jobs {
		if j.Status == status {
			out = append(out, *j)
		}
	}
	return out, nil
}

// memBidBook mirrors the bid service's CAS semantics so the state machine
// sees the same conflict signals it would against the real store.
type memBidBook struct {
	mu   sync.Mutex
	bids map[types.ID]*bid.Bid
}

func newMemBidBook() *memBidBook {
	return &memBidBook{bids: map[types.ID]*bid.Bid{}}
}

func (m *memBidBook) add(b bid.Bid) types.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = types.ID(uuid.NewString())
	}
	if b.Status == "" {
		b.Status = bid.StatusPending
	}
	if b.SubmittedAt.IsZero() {
		b.SubmittedAt = time.Now()
	}
	cp := b
	m.bids[b.ID] = &cp
	return b.ID
}

func (m *memBidBook) get(id types.ID) bid.Bid {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.bids[id]
}

func (m *memBidBook) countWon(jobID types.ID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bids {
		if b.JobID == jobID && b.Status == bid.StatusWon {
			n++
		}
	}
	return n
}

func (m *memBidBook) ActiveByJob(_ context.Context, jobID types.ID) ([]bid.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []bid.Bid
	for _, b := range m.bids {
		if b.JobID == jobID && b.Status != bid.StatusWithdrawn {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memBidBook) ByJobOperator(_ context.Context, jobID, operatorID types.ID) (*bid.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids {
		if b.JobID == jobID && b.OperatorID == operatorID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, bid.ErrNotFound
}

func (m *memBidBook) cas(id types.ID, from, to bid.Status, deadline *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return bid.ErrNotFound
	}
	if b.Status != from {
		return bid.ErrConflict
	}
	b.Status = to
	if deadline != nil {
		d := *deadline
		b.AcceptanceDeadline = &d
	}
	return nil
}

func (m *memBidBook) MarkOffered(_ context.Context, id types.ID, deadline time.Time) error {
	return m.cas(id, bid.StatusPending, bid.StatusOffered, &deadline)
}

func (m *memBidBook) AcceptOffered(_ context.Context, id types.ID) error {
	return m.cas(id, bid.StatusOffered, bid.StatusWon, nil)
}

func (m *memBidBook) DeclineOffered(_ context.Context, id types.ID) error {
	return m.cas(id, bid.StatusOffered, bid.StatusDeclined, nil)
}

func (m *memBidBook) TimeoutOffered(_ context.Context, id types.ID) error {
	return m.cas(id, bid.StatusOffered, bid.StatusLost, nil)
}

func (m *memBidBook) MarkOthersLost(_ context.Context, jobID, winnerID types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids {
		if b.JobID == jobID && b.ID != winnerID && (b.Status == bid.StatusPending || b.Status == bid.StatusOffered) {
			b.Status = bid.StatusLost
		}
	}
	return nil
}

func (m *memBidBook) ForceLoseOpen(ctx context.Context, jobID types.ID) error {
	return m.MarkOthersLost(ctx, jobID, "")
}

func (m *memBidBook) RevertWon(_ context.Context, id types.ID) error {
	return m.cas(id, bid.StatusWon, bid.StatusLost, nil)
}

func (m *memBidBook) ForceWin(_ context.Context, jobID, operatorID types.ID, amount types.Money) (*bid.Bid, error) {
	m.mu.Lock()
	var target *bid.Bid
	for _, b := range m.bids {
		if b.JobID == jobID && b.OperatorID == operatorID {
			target = b
			break
		}
	}
	if target == nil {
		if amount.Amount <= 0 {
			m.mu.Unlock()
			return nil, bid.ErrInvalidAmount
		}
		target = &bid.Bid{
			ID:          types.ID(uuid.NewString()),
			JobID:       jobID,
			OperatorID:  operatorID,
			SubmittedAt: time.Now(),
		}
		m.bids[target.ID] = target
	}
	if amount.Amount > 0 {
		target.Amount = amount
	}
	target.Status = bid.StatusWon
	winner := *target
	m.mu.Unlock()

	if err := m.MarkOthersLost(context.Background(), jobID, winner.ID); err != nil {
		return nil, err
	}
	return &winner, nil
}

type memBookings struct {
	mu sync.Mutex
	m  map[types.ID]*booking.Booking
}

func newMemBookings() *memBookings {
	return &memBookings{m: map[types.ID]*booking.Booking{}}
}

func (b *memBookings) add(bk booking.Booking) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := bk
	b.m[bk.ID] = &cp
}

func (b *memBookings) Get(_ context.Context, id types.ID) (*booking.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, ok := b.m[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *bk
	return &cp, nil
}

func (b *memBookings) setStatus(id types.ID, st booking.Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, ok := b.m[id]
	if !ok {
		return booking.ErrNotFound
	}
	bk.Status = st
	return nil
}

func (b *memBookings) MarkAssigned(_ context.Context, id types.ID) error {
	return b.setStatus(id, booking.StatusAssigned)
}

func (b *memBookings) MarkCompleted(_ context.Context, id types.ID) error {
	return b.setStatus(id, booking.StatusCompleted)
}

type memOperators map[types.ID]*operator.Operator

func (o memOperators) Get(_ context.Context, id types.ID) (*operator.Operator, error) {
	op, ok := o[id]
	if !ok {
		return nil, operator.ErrNotFound
	}
	return op, nil
}

type memNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *memNotifier) Notify(_ context.Context, e notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *memNotifier) byKind(kind string) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, e := range n.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc       *Service
	store     *memStore
	bids      *memBidBook
	bookings  *memBookings
	operators memOperators
	notifier  *memNotifier
	timers    *scheduler.Scheduler
	cfg       config.AuctionConfig
}

func newFixture(t *testing.T, cfg config.AuctionConfig) *fixture {
	t.Helper()
	if cfg.OneWayWindow == 0 {
		cfg.OneWayWindow = time.Hour
	}
	if cfg.ReturnWindow == 0 {
		cfg.ReturnWindow = 2 * time.Hour
	}
	if cfg.ReopenWindow == 0 {
		cfg.ReopenWindow = time.Hour
	}
	if cfg.AcceptanceWindow == 0 {
		cfg.AcceptanceWindow = time.Hour
	}

	timers := scheduler.New(nil)
	t.Cleanup(timers.Stop)

	f := &fixture{
		store:     newMemStore(),
		bids:      newMemBidBook(),
		bookings:  newMemBookings(),
		operators: memOperators{},
		notifier:  &memNotifier{},
		timers:    timers,
		cfg:       cfg,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.store, f.bids, f.bookings, f.operators, timers, f.notifier, cfg, log)
	return f
}

func (f *fixture) addOperator(id types.ID, reputation float64) {
	f.operators[id] = &operator.Operator{
		ID:              id,
		Approval:        operator.ApprovalApproved,
		ReputationScore: reputation,
	}
}

func unapproved(id types.ID) *operator.Operator {
	return &operator.Operator{ID: id, Approval: operator.ApprovalPending}
}

func (f *fixture) addPaidBooking(id types.ID, journey booking.Journey, price int64) {
	f.bookings.add(booking.Booking{
		ID:            id,
		Vehicle:       fare.ClassSaloon,
		Journey:       journey,
		PickupAt:      time.Now().Add(72 * time.Hour),
		CustomerPrice: types.Pence(price),
		Status:        booking.StatusPaid,
	})
}

// seedJob drops a job directly into the given status so tests don't have to
// walk the whole lifecycle every time.
func (f *fixture) seedJob(id types.ID, status Status, price int64) *Job {
	j := &Job{
		ID:              id,
		BookingID:       id + "-bk",
		Vehicle:         fare.ClassSaloon,
		CustomerPrice:   types.Pence(price),
		PickupAt:        time.Now().Add(72 * time.Hour),
		Status:          status,
		BiddingOpensAt:  time.Now().Add(-time.Hour),
		BiddingClosesAt: time.Now().Add(time.Hour),
		PayoutStatus:    PayoutUnpaid,
		CreatedAt:       time.Now(),
	}
	f.store.Create(context.Background(), j)
	f.bookings.add(booking.Booking{
		ID:            j.BookingID,
		Vehicle:       fare.ClassSaloon,
		CustomerPrice: types.Pence(price),
		Status:        booking.StatusPaid,
	})
	return j
}

func (f *fixture) jobStatus(t *testing.T, id types.ID) Status {
	t.Helper()
	j, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get job %s: %v", id, err)
	}
	return j.Status
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
