// README: Winner selector; deterministic total ordering of a job's bids.
package job

import (
	"sort"

	"fleetbid/internal/modules/bid"
	"fleetbid/internal/types"
)

// RankBids orders a job's bids into a deterministic total order: lowest
// amount first, then highest operator reputation, then earliest submission,
// then bid id as the final tie-break so re-running selection on an unchanged
// bid set always reproduces the same ranking.
func RankBids(bids []bid.Bid, reputation map[types.ID]float64) []bid.Bid {
	ranked := make([]bid.Bid, len(bids))
	copy(ranked, bids)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Amount.Amount != b.Amount.Amount {
			return a.Amount.Amount < b.Amount.Amount
		}
		if reputation[a.OperatorID] != reputation[b.OperatorID] {
			return reputation[a.OperatorID] > reputation[b.OperatorID]
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})
	return ranked
}
