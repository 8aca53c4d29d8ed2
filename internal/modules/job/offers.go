// README: Acceptance orchestrator; drives the ranked bid list through offer → accept/decline/timeout → reoffer.
package job

import (
	"context"
	"errors"
	"time"

	"fleetbid/internal/modules/bid"
	"fleetbid/internal/notify"
	"fleetbid/internal/types"
)

// offerNext offers the job to the best remaining pending bid, or escalates
// when the ranked list is exhausted. It re-derives everything from current
// state, so a stale caller is harmless.
func (s *Service) offerNext(ctx context.Context, jobID types.ID) error {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != StatusBiddingClosed {
		s.log.Info("offer skipped, job already transitioned", "job_id", jobID, "status", j.Status)
		return nil
	}

	active, err := s.bids.ActiveByJob(ctx, jobID)
	if err != nil {
		return err
	}
	pending := make([]bid.Bid, 0, len(active))
	for _, b := range active {
		if b.Status == bid.StatusPending {
			pending = append(pending, b)
		}
	}
	if len(pending) == 0 {
		return s.escalate(ctx, jobID, notify.ReasonAllOffersRejected)
	}

	ranked := RankBids(pending, s.reputations(ctx, pending))
	next := ranked[0]
	deadline := time.Now().Add(s.cfg.AcceptanceWindow)
	if err := s.bids.MarkOffered(ctx, next.ID, deadline); err != nil {
		if errors.Is(err, bid.ErrConflict) {
			s.log.Info("offer lost the race, no-op", "job_id", jobID, "bid_id", next.ID)
			return nil
		}
		return err
	}

	s.timers.Schedule(offerKey(next.ID), deadline, func(ctx context.Context) {
		s.onOfferTimeout(ctx, jobID, next.ID, next.OperatorID)
	})
	s.notifier.Notify(ctx, notify.Event{Kind: notify.KindBidOffered, JobID: jobID, OperatorID: next.OperatorID})
	return nil
}

// onOfferTimeout fires when the selected bidder never responded: the bid is
// marked LOST and the next-ranked bidder gets the offer. An accept or
// decline that landed first wins the CAS and this becomes a no-op.
func (s *Service) onOfferTimeout(ctx context.Context, jobID, bidID, operatorID types.ID) {
	if err := s.bids.TimeoutOffered(ctx, bidID); err != nil {
		if errors.Is(err, bid.ErrConflict) {
			return
		}
		s.log.Error("offer timeout failed", "job_id", jobID, "bid_id", bidID, "err", err)
		return
	}
	s.notifier.Notify(ctx, notify.Event{Kind: notify.KindBidLost, JobID: jobID, OperatorID: operatorID})
	if err := s.offerNext(ctx, jobID); err != nil {
		s.log.Error("reoffer after timeout failed", "job_id", jobID, "err", err)
	}
}

// AcceptOffer confirms the assignment for the operator currently holding the
// offer. An accept arriving after its deadline already triggered the next
// offer is rejected with ErrOfferExpired, never silently honoured.
func (s *Service) AcceptOffer(ctx context.Context, jobID, operatorID types.ID) error {
	b, err := s.bids.ByJobOperator(ctx, jobID, operatorID)
	if err != nil {
		if errors.Is(err, bid.ErrNotFound) {
			return ErrNoOfferedBid
		}
		return err
	}
	if b.Status != bid.StatusOffered {
		return ErrOfferExpired
	}
	if err := s.bids.AcceptOffered(ctx, b.ID); err != nil {
		if errors.Is(err, bid.ErrConflict) {
			return ErrOfferExpired
		}
		return err
	}
	s.timers.Cancel(offerKey(b.ID))

	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	margin := j.CustomerPrice.Sub(b.Amount)
	ok, err := s.store.Assign(ctx, j.ID, StatusBiddingClosed, j.StatusVersion, operatorID, b.ID, margin)
	if err != nil {
		return err
	}
	if !ok {
		// A manual assignment slipped in between the two updates; the job
		// is authoritative, so the accept is rolled back.
		s.rollbackLostWin(ctx, j.ID, b.ID)
		return ErrOfferExpired
	}

	if err := s.bids.MarkOthersLost(ctx, jobID, b.ID); err != nil {
		s.log.Warn("settling losing bids failed", "job_id", jobID, "err", err)
	}
	if err := s.bookings.MarkAssigned(ctx, j.BookingID); err != nil {
		s.log.Warn("booking assign update failed", "booking_id", j.BookingID, "err", err)
	}
	s.notifier.Notify(ctx, notify.Event{Kind: notify.KindJobAssigned, JobID: jobID, OperatorID: operatorID})
	return nil
}

// DeclineOffer passes the job straight to the next-ranked bidder.
func (s *Service) DeclineOffer(ctx context.Context, jobID, operatorID types.ID) error {
	b, err := s.bids.ByJobOperator(ctx, jobID, operatorID)
	if err != nil {
		if errors.Is(err, bid.ErrNotFound) {
			return ErrNoOfferedBid
		}
		return err
	}
	if b.Status != bid.StatusOffered {
		return ErrOfferExpired
	}
	if err := s.bids.DeclineOffered(ctx, b.ID); err != nil {
		if errors.Is(err, bid.ErrConflict) {
			return ErrOfferExpired
		}
		return err
	}
	s.timers.Cancel(offerKey(b.ID))
	return s.offerNext(ctx, jobID)
}

func (s *Service) reputations(ctx context.Context, bids []bid.Bid) map[types.ID]float64 {
	reps := make(map[types.ID]float64, len(bids))
	for _, b := range bids {
		if _, ok := reps[b.OperatorID]; ok {
			continue
		}
		op, err := s.operators.Get(ctx, b.OperatorID)
		if err != nil {
			s.log.Warn("reputation lookup failed", "operator_id", b.OperatorID, "err", err)
			continue
		}
		reps[b.OperatorID] = op.ReputationScore
	}
	return reps
}
