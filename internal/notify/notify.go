// README: Fire-and-forget notification dispatcher publishing to a Redis stream.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetbid/internal/types"
)

// Event kinds emitted by the bidding and payout flows. Delivery is
// best-effort: a failed publish is logged and never blocks or rolls back the
// state transition that produced it.
const (
	KindJobOpen          = "job_open"
	KindBidOffered       = "bid_offered"
	KindJobAssigned      = "job_assigned"
	KindBidLost          = "bid_lost"
	KindEscalation       = "escalation"
	KindJobCancelled     = "job_cancelled"
	KindPayoutProcessing = "payout_processing"
)

// Escalation reason codes.
const (
	ReasonNoBids            = "no_bids"
	ReasonAllOffersRejected = "all_offers_rejected"
)

type Event struct {
	Kind       string
	JobID      types.ID
	OperatorID types.ID
	Reason     string
	At         time.Time
}

// Dispatcher is the outbound notification sink consumed by the services.
type Dispatcher interface {
	Notify(ctx context.Context, e Event)
}

// StreamDispatcher appends events to a Redis stream for downstream delivery
// workers (email/SMS templating lives outside this core).
type StreamDispatcher struct {
	rdb    *redis.Client
	stream string
	log    *slog.Logger
}

func NewStreamDispatcher(rdb *redis.Client, stream string, log *slog.Logger) *StreamDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &StreamDispatcher{rdb: rdb, stream: stream, log: log}
}

func (d *StreamDispatcher) Notify(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := d.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]any{
			"kind":        e.Kind,
			"job_id":      string(e.JobID),
			"operator_id": string(e.OperatorID),
			"reason":      e.Reason,
			"at":          e.At.UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		d.log.Warn("notification publish failed", "kind", e.Kind, "job_id", e.JobID, "err", err)
	}
}
