// README: Job aggregate, bidding-lifecycle status definitions, and payout status.
package job

import (
	"time"

	"fleetbid/internal/modules/fare"
	"fleetbid/internal/types"
)

type Status string

const (
	StatusNone            Status = "none"
	StatusOpenForBidding  Status = "open_for_bidding"
	StatusBiddingClosed   Status = "bidding_closed"
	StatusAssigned        Status = "assigned"
	StatusNoBidsReceived  Status = "no_bids_received"
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

type PayoutStatus string

const (
	PayoutUnpaid     PayoutStatus = "unpaid"
	PayoutProcessing PayoutStatus = "processing"
	PayoutPaid       PayoutStatus = "paid"
)

// Job is the biddable unit derived from a paid Booking. Vehicle and
// CustomerPrice are snapshotted at creation; the customer price never
// changes after payment.
type Job struct {
	ID            types.ID
	BookingID     types.ID
	Vehicle       fare.VehicleClass
	CustomerPrice types.Money
	PickupAt      time.Time

	Status        Status
	StatusVersion int

	BiddingOpensAt  time.Time
	BiddingClosesAt time.Time

	AssignedOperatorID *types.ID
	WinningBidID       *types.ID
	// PlatformMargin = CustomerPrice − winning bid amount; always ≥ 0.
	PlatformMargin *types.Money

	PayoutStatus PayoutStatus
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// AllowedTransitions represents the job bidding flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusOpenForBidding: {StatusBiddingClosed, StatusAssigned, StatusCancelled},
	StatusBiddingClosed:  {StatusAssigned, StatusNoBidsReceived, StatusCancelled},
	StatusNoBidsReceived: {StatusOpenForBidding, StatusAssigned, StatusCancelled},
	StatusAssigned:       {StatusInProgress, StatusCancelled},
	StatusInProgress:     {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// payoutOrder enforces forward-only payout progression.
var payoutOrder = map[PayoutStatus]int{
	PayoutUnpaid:     0,
	PayoutProcessing: 1,
	PayoutPaid:       2,
}

func CanAdvancePayout(from, to PayoutStatus) bool {
	a, okA := payoutOrder[from]
	b, okB := payoutOrder[to]
	return okA && okB && b == a+1
}
