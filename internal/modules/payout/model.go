// README: Payout partition shapes and run summaries.
package payout

import (
	"time"

	"fleetbid/internal/types"
)

// Entry is one unpaid completed job in an operator's payout pipeline. Amount
// is the winning bid amount, the operator's share of the job.
type Entry struct {
	JobID       types.ID
	OperatorID  types.ID
	Amount      types.Money
	CompletedAt time.Time
	// DaysRemaining is populated for IN_HOLD entries only.
	DaysRemaining int
}

// Partition splits an operator's unpaid completed jobs into three pairwise
// disjoint sets whose union is the whole input.
type Partition struct {
	Eligible []Entry
	InHold   []Entry
	HeldBack []Entry
}

// Forecast is the operator earnings read model.
type Forecast struct {
	EligibleTotal types.Money
	InHoldTotal   types.Money
	HeldBackTotal types.Money
}

// RunSummary reports one payout run. Operators missing bank details are
// skipped and listed, never silently paid.
type RunSummary struct {
	RunAt            time.Time
	Disabled         bool
	JobsProcessed    int
	TotalProcessed   types.Money
	ProcessedByOp    map[types.ID]types.Money
	SkippedOperators []types.ID
}
