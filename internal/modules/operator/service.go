// README: Operator service; thin directory over the store.
package operator

import (
	"context"

	"fleetbid/internal/types"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Operator, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Approve(ctx context.Context, id types.ID) error {
	return s.store.SetApproval(ctx, id, ApprovalApproved)
}

func (s *Service) Suspend(ctx context.Context, id types.ID) error {
	return s.store.SetApproval(ctx, id, ApprovalSuspended)
}

func (s *Service) UpdateBank(ctx context.Context, id types.ID, bank BankDetails) error {
	return s.store.UpdateBank(ctx, id, bank)
}
