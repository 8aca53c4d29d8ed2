// README: Transport operator aggregate: approval state, reputation, bank details.
package operator

import (
	"time"

	"fleetbid/internal/types"
)

type Approval string

const (
	ApprovalPending   Approval = "pending"
	ApprovalApproved  Approval = "approved"
	ApprovalSuspended Approval = "suspended"
)

type BankDetails struct {
	AccountName   string
	AccountNumber string
	SortCode      string
}

// Complete reports whether the details are sufficient to pay the operator.
func (b BankDetails) Complete() bool {
	return b.AccountName != "" && b.AccountNumber != "" && b.SortCode != ""
}

type Operator struct {
	ID              types.ID
	Name            string
	Approval        Approval
	ReputationScore float64
	Bank            BankDetails
	CreatedAt       time.Time
}

func (o *Operator) CanBid() bool {
	return o.Approval == ApprovalApproved
}
