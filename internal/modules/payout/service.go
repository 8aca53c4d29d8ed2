// README: Payout service; time-windowed eligibility partitioning and the payout run.
package payout

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"fleetbid/internal/config"
	"fleetbid/internal/modules/job"
	"fleetbid/internal/modules/operator"
	"fleetbid/internal/notify"
	"fleetbid/internal/types"
)

var ErrNothingToConfirm = errors.New("no processing payouts for operator")

type Operators interface {
	Get(ctx context.Context, id types.ID) (*operator.Operator, error)
}

type Service struct {
	store     Store
	operators Operators
	notifier  notify.Dispatcher
	cfg       config.PayoutConfig
	log       *slog.Logger
}

func NewService(store Store, operators Operators, notifier notify.Dispatcher, cfg config.PayoutConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, operators: operators, notifier: notifier, cfg: cfg, log: log}
}

// PartitionFor splits the operator's unpaid completed jobs. The N most
// recently completed jobs are always held back regardless of age; the
// held-back trim is applied before the age split.
func (s *Service) PartitionFor(ctx context.Context, operatorID types.ID, now time.Time) (Partition, error) {
	entries, err := s.store.UnpaidCompleted(ctx, operatorID)
	if err != nil {
		return Partition{}, err
	}
	return s.partition(entries, now), nil
}

func (s *Service) partition(entries []Entry, now time.Time) Partition {
	var p Partition

	n := s.cfg.HeldBackCount
	if n > len(entries) {
		n = len(entries)
	}
	split := len(entries) - n
	p.HeldBack = append(p.HeldBack, entries[split:]...)

	cutoff := now.AddDate(0, 0, -s.cfg.HoldPeriodDays)
	for _, e := range entries[:split] {
		if !e.CompletedAt.After(cutoff) {
			p.Eligible = append(p.Eligible, e)
			continue
		}
		e.DaysRemaining = int(math.Ceil(e.CompletedAt.Sub(cutoff).Hours() / 24))
		p.InHold = append(p.InHold, e)
	}
	return p
}

// ForecastFor is the operator earnings read model.
func (s *Service) ForecastFor(ctx context.Context, operatorID types.ID, now time.Time) (Forecast, error) {
	p, err := s.PartitionFor(ctx, operatorID, now)
	if err != nil {
		return Forecast{}, err
	}
	return Forecast{
		EligibleTotal: sum(p.Eligible),
		InHoldTotal:   sum(p.InHold),
		HeldBackTotal: sum(p.HeldBack),
	}, nil
}

// Run moves every eligible job of every payable operator to PROCESSING.
// Operators with incomplete bank details are skipped and reported. The
// global disable flag skips the entire run. Re-running is safe: PROCESSING
// jobs no longer appear in the unpaid scan.
func (s *Service) Run(ctx context.Context, now time.Time) (RunSummary, error) {
	summary := RunSummary{
		RunAt:         now,
		ProcessedByOp: map[types.ID]types.Money{},
	}
	if s.cfg.Disabled {
		summary.Disabled = true
		s.log.Info("payout run disabled, skipping")
		return summary, nil
	}

	operators, err := s.store.OperatorsWithUnpaid(ctx)
	if err != nil {
		return summary, err
	}
	for _, opID := range operators {
		p, err := s.PartitionFor(ctx, opID, now)
		if err != nil {
			// Per-operator isolation: one operator's failure must not
			// block the rest of the run.
			s.log.Error("payout partition failed", "operator_id", opID, "err", err)
			continue
		}
		if len(p.Eligible) == 0 {
			continue
		}

		op, err := s.operators.Get(ctx, opID)
		if err != nil {
			s.log.Error("operator lookup failed", "operator_id", opID, "err", err)
			continue
		}
		if !op.Bank.Complete() {
			summary.SkippedOperators = append(summary.SkippedOperators, opID)
			s.log.Warn("operator skipped, bank details incomplete", "operator_id", opID)
			continue
		}

		total := types.Pence(0)
		for _, e := range p.Eligible {
			ok, err := s.store.AdvancePayout(ctx, e.JobID, job.PayoutUnpaid, job.PayoutProcessing)
			if err != nil {
				s.log.Error("payout advance failed", "job_id", e.JobID, "err", err)
				continue
			}
			if !ok {
				// Another run got there first.
				continue
			}
			total = total.Add(e.Amount)
			summary.JobsProcessed++
		}
		if total.IsZero() {
			continue
		}
		summary.ProcessedByOp[opID] = total
		summary.TotalProcessed = summary.TotalProcessed.Add(total)
		s.notifier.Notify(ctx, notify.Event{Kind: notify.KindPayoutProcessing, OperatorID: opID})
	}
	return summary, nil
}

// Confirm records the gateway's confirmation: the operator's PROCESSING jobs
// become PAID and the ledger total is written.
func (s *Service) Confirm(ctx context.Context, operatorID types.ID, now time.Time) (types.Money, error) {
	entries, err := s.store.Processing(ctx, operatorID)
	if err != nil {
		return types.Money{}, err
	}
	if len(entries) == 0 {
		return types.Money{}, ErrNothingToConfirm
	}

	total := types.Pence(0)
	jobIDs := make([]types.ID, 0, len(entries))
	for _, e := range entries {
		ok, err := s.store.AdvancePayout(ctx, e.JobID, job.PayoutProcessing, job.PayoutPaid)
		if err != nil {
			return types.Money{}, err
		}
		if !ok {
			continue
		}
		total = total.Add(e.Amount)
		jobIDs = append(jobIDs, e.JobID)
	}
	if err := s.store.RecordLedger(ctx, operatorID, jobIDs, total, now); err != nil {
		return types.Money{}, err
	}
	return total, nil
}

func sum(entries []Entry) types.Money {
	total := types.Pence(0)
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
