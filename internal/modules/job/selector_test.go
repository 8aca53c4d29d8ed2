// README: Winner selector ordering tests.
package job

import (
	"testing"
	"time"

	"fleetbid/internal/modules/bid"
	"fleetbid/internal/types"
)

func mkBid(id, op types.ID, amount int64, submitted time.Time) bid.Bid {
	return bid.Bid{
		ID:          id,
		JobID:       "job-1",
		OperatorID:  op,
		Amount:      types.Pence(amount),
		Status:      bid.StatusPending,
		SubmittedAt: submitted,
	}
}

func TestRankBidsLowestAmountFirst(t *testing.T) {
	now := time.Now()
	bids := []bid.Bid{
		mkBid("b1", "op-1", 9000, now),
		mkBid("b2", "op-2", 7000, now),
		mkBid("b3", "op-3", 8000, now),
	}
	ranked := RankBids(bids, nil)
	want := []types.ID{"b2", "b3", "b1"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestRankBidsReputationBreaksAmountTie(t *testing.T) {
	// Two £80 bids: the 4.8-rated operator outranks the 4.5-rated one.
	now := time.Now()
	bids := []bid.Bid{
		mkBid("b1", "op-low", 8000, now),
		mkBid("b2", "op-high", 8000, now),
	}
	reps := map[types.ID]float64{"op-low": 4.5, "op-high": 4.8}
	ranked := RankBids(bids, reps)
	if ranked[0].OperatorID != "op-high" {
		t.Errorf("ranked[0] operator = %s, want op-high", ranked[0].OperatorID)
	}
}

func TestRankBidsEarlierSubmissionBreaksReputationTie(t *testing.T) {
	now := time.Now()
	bids := []bid.Bid{
		mkBid("b1", "op-1", 8000, now.Add(time.Minute)),
		mkBid("b2", "op-2", 8000, now),
	}
	reps := map[types.ID]float64{"op-1": 4.5, "op-2": 4.5}
	ranked := RankBids(bids, reps)
	if ranked[0].ID != "b2" {
		t.Errorf("ranked[0] = %s, want earlier submission b2", ranked[0].ID)
	}
}

func TestRankBidsFullTieFallsBackToID(t *testing.T) {
	now := time.Now()
	bids := []bid.Bid{
		mkBid("b2", "op-2", 8000, now),
		mkBid("b1", "op-1", 8000, now),
	}
	ranked := RankBids(bids, nil)
	if ranked[0].ID != "b1" {
		t.Errorf("ranked[0] = %s, want b1", ranked[0].ID)
	}
}

func TestRankBidsDeterministic(t *testing.T) {
	now := time.Now()
	bids := []bid.Bid{
		mkBid("b1", "op-1", 9000, now),
		mkBid("b2", "op-2", 8000, now.Add(time.Second)),
		mkBid("b3", "op-3", 8000, now),
		mkBid("b4", "op-4", 7000, now),
	}
	reps := map[types.ID]float64{"op-2": 4.9, "op-3": 4.1}
	first := RankBids(bids, reps)
	for run := 0; run < 10; run++ {
		again := RankBids(bids, reps)
		for i := range first {
			if again[i].ID != first[i].ID {
				t.Fatalf("run %d: ranking diverged at %d: %s vs %s", run, i, again[i].ID, first[i].ID)
			}
		}
	}
}

func TestRankBidsDoesNotMutateInput(t *testing.T) {
	now := time.Now()
	bids := []bid.Bid{
		mkBid("b1", "op-1", 9000, now),
		mkBid("b2", "op-2", 7000, now),
	}
	RankBids(bids, nil)
	if bids[0].ID != "b1" {
		t.Errorf("input slice reordered, first = %s", bids[0].ID)
	}
}
