// README: Concurrency tests; competing actors must resolve through CAS with one winner.
package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"fleetbid/internal/config"
	"fleetbid/internal/modules/bid"
	"fleetbid/internal/notify"
	"fleetbid/internal/types"
)

func TestConcurrentWindowEvaluations(t *testing.T) {
	// Scheduled close, admin early close, and a stray re-run all hit the same
	// job; the CAS lets exactly one evaluation through.
	f := newFixture(t, config.AuctionConfig{})
	f.seedJob("job-1", StatusOpenForBidding, 10000)
	f.addOperator("op-1", 4.0)
	b1 := f.bids.add(bid.Bid{JobID: "job-1", OperatorID: "op-1", Amount: types.Pence(8000)})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(early bool) {
			defer wg.Done()
			var err error
			if early {
				err = f.svc.EarlyClose(context.Background(), "job-1")
			} else {
				err = f.svc.CloseWindow(context.Background(), "job-1")
			}
			if err != nil {
				t.Errorf("evaluation: %v", err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	if got := f.jobStatus(t, "job-1"); got != StatusBiddingClosed {
		t.Errorf("status = %s, want bidding_closed", got)
	}
	if got := f.bids.get(b1).Status; got != bid.StatusOffered {
		t.Errorf("bid status = %s, want offered exactly once", got)
	}
	if got := len(f.notifier.byKind(notify.KindBidOffered)); got != 1 {
		t.Errorf("offer notifications = %d, want 1", got)
	}
}

func TestConcurrentCloseNoBidsEscalatesOnce(t *testing.T) {
	f := newFixture(t, config.AuctionConfig{})
	f.seedJob("job-1", StatusOpenForBidding, 10000)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.svc.CloseWindow(context.Background(), "job-1"); err != nil {
				t.Errorf("close: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.jobStatus(t, "job-1"); got != StatusNoBidsReceived {
		t.Errorf("status = %s, want no_bids_received", got)
	}
	if got := len(f.notifier.byKind(notify.KindEscalation)); got != 1 {
		t.Errorf("escalations = %d, want exactly 1", got)
	}
}

func TestAcceptRacesDeadlineTimer(t *testing.T) {
	// The accept lands right around the acceptance deadline. Whichever side
	// wins the bid CAS decides the outcome; both outcomes must leave the
	// machine consistent.
	f := newFixture(t, config.AuctionConfig{AcceptanceWindow: 15 * time.Millisecond})
	f.seedJob("job-1", StatusOpenForBidding, 10000)
	f.addOperator("op-1", 4.0)
	f.addOperator("op-2", 4.0)
	id1 := f.bids.add(bid.Bid{JobID: "job-1", OperatorID: "op-1", Amount: types.Pence(7000)})
	id2 := f.bids.add(bid.Bid{JobID: "job-1", OperatorID: "op-2", Amount: types.Pence(8000)})
	if err := f.svc.CloseWindow(context.Background(), "job-1"); err != nil {
		t.Fatalf("close: %v", err)
	}

	time.Sleep(14 * time.Millisecond)
	acceptErr := f.svc.AcceptOffer(context.Background(), "job-1", "op-1")

	switch {
	case acceptErr == nil:
		// Accept won: op-1 assigned, op-2 settled lost.
		j, _ := f.store.Get(context.Background(), "job-1")
		if j.Status != StatusAssigned || j.AssignedOperatorID == nil || *j.AssignedOperatorID != "op-1" {
			t.Errorf("accept won but job = %s/%v", j.Status, j.AssignedOperatorID)
		}
		if got := f.bids.get(id1).Status; got != bid.StatusWon {
			t.Errorf("accepted bid status = %s, want won", got)
		}
		waitFor(t, "losing bid settled", func() bool {
			return f.bids.get(id2).Status == bid.StatusLost
		})
	default:
		// The timer won: op-1 lost and the offer moved to op-2, whose own
		// short deadline may already have exhausted the cascade by the time
		// we look.
		waitFor(t, "offer passed to next bidder", func() bool {
			return f.bids.get(id2).Status != bid.StatusPending
		})
		if got := f.bids.get(id1).Status; got != bid.StatusLost {
			t.Errorf("timed-out bid status = %s, want lost", got)
		}
		switch f.bids.get(id2).Status {
		case bid.StatusOffered:
			if got := f.jobStatus(t, "job-1"); got != StatusBiddingClosed {
				t.Errorf("job status = %s, want bidding_closed", got)
			}
		case bid.StatusLost:
			waitFor(t, "exhausted cascade to escalate", func() bool {
				return f.jobStatus(t, "job-1") == StatusNoBidsReceived
			})
		default:
			t.Errorf("next bid status = %s, want offered or lost", f.bids.get(id2).Status)
		}
	}
}

func TestAcceptRacesManualAssign(t *testing.T) {
	// An operator accept and an admin override collide. The job row is
	// authoritative: whoever wins its CAS is the assignee, and the job's
	// winning bid must always be a WON bid with a non-negative margin.
	f := newFixture(t, config.AuctionConfig{})
	f.seedJob("job-1", StatusOpenForBidding, 10000)
	f.addOperator("op-1", 4.0)
	f.addOperator("op-2", 4.0)
	f.bids.add(bid.Bid{JobID: "job-1", OperatorID: "op-1", Amount: types.Pence(7000)})
	f.bids.add(bid.Bid{JobID: "job-1", OperatorID: "op-2", Amount: types.Pence(8000)})
	if err := f.svc.CloseWindow(context.Background(), "job-1"); err != nil {
		t.Fatalf("close: %v", err)
	}

	var wg sync.WaitGroup
	var acceptErr, manualErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		acceptErr = f.svc.AcceptOffer(context.Background(), "job-1", "op-1")
	}()
	go func() {
		defer wg.Done()
		manualErr = f.svc.ManualAssign(context.Background(), ManualAssignCommand{JobID: "job-1", OperatorID: "op-2"})
	}()
	wg.Wait()

	if acceptErr != nil && manualErr != nil {
		t.Fatalf("both actors lost: accept=%v manual=%v", acceptErr, manualErr)
	}

	j, _ := f.store.Get(context.Background(), "job-1")
	if j.Status != StatusAssigned {
		t.Fatalf("status = %s, want assigned", j.Status)
	}
	if j.AssignedOperatorID == nil || j.WinningBidID == nil || j.PlatformMargin == nil {
		t.Fatalf("assignment fields incomplete: %+v", j)
	}
	winner := f.bids.get(*j.WinningBidID)
	if winner.Status != bid.StatusWon {
		t.Errorf("winning bid status = %s, want won", winner.Status)
	}
	if winner.OperatorID != *j.AssignedOperatorID {
		t.Errorf("winning bid operator %s != assigned operator %s", winner.OperatorID, *j.AssignedOperatorID)
	}
	if j.PlatformMargin.Amount != j.CustomerPrice.Amount-winner.Amount.Amount {
		t.Errorf("margin = %d, want %d", j.PlatformMargin.Amount, j.CustomerPrice.Amount-winner.Amount.Amount)
	}
	if j.PlatformMargin.Amount < 0 {
		t.Errorf("negative margin %d", j.PlatformMargin.Amount)
	}
	if got := f.bids.countWon("job-1"); got != 1 {
		t.Errorf("won bids = %d, want exactly 1", got)
	}
}

// racingStore injects a competing actor between a service's job snapshot and
// its CAS: the hook runs once, right after the first Get.
type racingStore struct {
	*memStore
	once   sync.Once
	onRead func()
}

func (r *racingStore) Get(ctx context.Context, id types.ID) (*Job, error) {
	j, err := r.memStore.Get(ctx, id)
	r.once.Do(r.onRead)
	return j, err
}

func TestManualAssignLosingRaceRevertsForcedBid(t *testing.T) {
	// An accept completes between the manual assign's snapshot and its CAS.
	// The manual path must roll its forced-won bid back, leaving exactly one
	// WON bid on the job.
	f := newFixture(t, config.AuctionConfig{})
	f.seedJob("job-1", StatusOpenForBidding, 10000)
	f.addOperator("op-1", 4.0)
	f.addOperator("op-2", 4.0)
	id1 := f.bids.add(bid.Bid{JobID: "job-1", OperatorID: "op-1", Amount: types.Pence(7000)})
	id2 := f.bids.add(bid.Bid{JobID: "job-1", OperatorID: "op-2", Amount: types.Pence(8000)})
	ctx := context.Background()
	if err := f.svc.CloseWindow(ctx, "job-1"); err != nil {
		t.Fatalf("close: %v", err)
	}

	racer := &racingStore{memStore: f.store, onRead: func() {
		if err := f.svc.AcceptOffer(ctx, "job-1", "op-1"); err != nil {
			t.Errorf("accept: %v", err)
		}
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	manual := NewService(racer, f.bids, f.bookings, f.operators, f.timers, f.notifier, f.cfg, log)

	err := manual.ManualAssign(ctx, ManualAssignCommand{JobID: "job-1", OperatorID: "op-2"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("manual assign err = %v, want ErrConflict", err)
	}

	j, _ := f.store.Get(ctx, "job-1")
	if j.Status != StatusAssigned || *j.AssignedOperatorID != "op-1" {
		t.Fatalf("job = %s/%v, want assigned to op-1", j.Status, j.AssignedOperatorID)
	}
	if got := f.bids.get(id1).Status; got != bid.StatusWon {
		t.Errorf("winner bid status = %s, want won", got)
	}
	if got := f.bids.get(id2).Status; got != bid.StatusLost {
		t.Errorf("forced bid status = %s, want lost after rollback", got)
	}
	if got := f.bids.countWon("job-1"); got != 1 {
		t.Errorf("won bids = %d, want exactly 1", got)
	}
}

func TestManualAssignLosingRaceToSameBidKeepsWin(t *testing.T) {
	// Both actors target the same operator. The manual path loses the job CAS
	// but must not revert the bid: it is the one the job row points at.
	f := newFixture(t, config.AuctionConfig{})
	f.seedJob("job-1", StatusOpenForBidding, 10000)
	f.addOperator("op-1", 4.0)
	id1 := f.bids.add(bid.Bid{JobID: "job-1", OperatorID: "op-1", Amount: types.Pence(7000)})
	ctx := context.Background()
	if err := f.svc.CloseWindow(ctx, "job-1"); err != nil {
		t.Fatalf("close: %v", err)
	}

	racer := &racingStore{memStore: f.store, onRead: func() {
		if err := f.svc.AcceptOffer(ctx, "job-1", "op-1"); err != nil {
			t.Errorf("accept: %v", err)
		}
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	manual := NewService(racer, f.bids, f.bookings, f.operators, f.timers, f.notifier, f.cfg, log)

	err := manual.ManualAssign(ctx, ManualAssignCommand{JobID: "job-1", OperatorID: "op-1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("manual assign err = %v, want ErrConflict", err)
	}

	j, _ := f.store.Get(ctx, "job-1")
	if j.Status != StatusAssigned || *j.AssignedOperatorID != "op-1" {
		t.Fatalf("job = %s/%v, want assigned to op-1", j.Status, j.AssignedOperatorID)
	}
	if got := f.bids.get(id1).Status; got != bid.StatusWon {
		t.Errorf("winning bid status = %s, want won (not reverted)", got)
	}
}

func TestConcurrentCancelAndClose(t *testing.T) {
	f := newFixture(t, config.AuctionConfig{})
	f.seedJob("job-1", StatusOpenForBidding, 10000)

	var wg sync.WaitGroup
	wg.Add(2)
	var cancelErr, closeErr error
	go func() {
		defer wg.Done()
		cancelErr = f.svc.Cancel(context.Background(), "job-1")
	}()
	go func() {
		defer wg.Done()
		closeErr = f.svc.CloseWindow(context.Background(), "job-1")
	}()
	wg.Wait()

	// CloseWindow treats losing the race as a no-op; Cancel reports it.
	got := f.jobStatus(t, "job-1")
	if got != StatusCancelled && got != StatusNoBidsReceived {
		t.Fatalf("status = %s, want cancelled or no_bids_received", got)
	}
	if got == StatusNoBidsReceived && cancelErr == nil {
		t.Error("cancel reported success but the close won")
	}
	if closeErr != nil {
		t.Errorf("close: %v", closeErr)
	}
}
