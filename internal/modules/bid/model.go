// README: Sealed bid aggregate and status definitions.
package bid

import (
	"time"

	"fleetbid/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusOffered   Status = "offered"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusDeclined  Status = "declined"
	StatusWithdrawn Status = "withdrawn"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusWon, StatusLost, StatusDeclined, StatusWithdrawn:
		return true
	}
	return false
}

// Bid is one operator's sealed offer against a Job. Exactly one live row per
// (job, operator) pair; resubmission updates it in place.
type Bid struct {
	ID         types.ID
	JobID      types.ID
	OperatorID types.ID
	Amount     types.Money
	Status     Status
	// AcceptanceDeadline is set while the bid is OFFERED.
	AcceptanceDeadline *time.Time
	SubmittedAt        time.Time
	UpdatedAt          time.Time
}

var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusOffered, StatusWon, StatusLost, StatusWithdrawn},
	StatusOffered: {StatusWon, StatusLost, StatusDeclined},
}

func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
