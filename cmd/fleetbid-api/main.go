// README: Entry point; loads config, wires services, starts HTTP server and the timer scheduler.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fleetbid/internal/config"
	httptransport "fleetbid/internal/http"
	"fleetbid/internal/infra"
	"fleetbid/internal/maps"
	"fleetbid/internal/modules/bid"
	"fleetbid/internal/modules/booking"
	"fleetbid/internal/modules/fare"
	"fleetbid/internal/modules/job"
	"fleetbid/internal/modules/operator"
	"fleetbid/internal/modules/payout"
	"fleetbid/internal/notify"
	"fleetbid/internal/scheduler"
	"fleetbid/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	dispatcher := notify.NewStreamDispatcher(redisClient, cfg.Redis.Stream, logger)

	if cfg.Maps.APIKey == "" {
		log.Fatal("FLEETBID_MAPS_API_KEY is required")
	}
	distance, err := maps.NewDistanceService(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("maps init: %v", err)
	}

	timers := scheduler.New(logger)
	defer timers.Stop()

	rateStore := fare.NewStore(dbPool)
	fareSvc := fare.NewService(distance, rateStore, cfg.Fare)

	operatorSvc := operator.NewService(operator.NewStore(dbPool))
	bookingSvc := booking.NewService(booking.NewStore(dbPool))

	bidStore := bid.NewStore(dbPool)
	jobStore := job.NewStore(dbPool)

	// jobSvc implements bid.JobCatalog; the bid service is handed to the
	// job service as its BidBook. Wiring order matters only here.
	var jobSvc *job.Service
	bidSvc := bid.NewService(bidStore, jobCatalog{&jobSvc}, operatorSvc, rateStore)
	jobSvc = job.NewService(jobStore, bidSvc, bookingSvc, operatorSvc, timers, dispatcher, cfg.Auction, logger)

	// The timers live in process memory only; rebuild them from the store so
	// windows and deadlines missed while the process was down still evaluate.
	if err := jobSvc.Rehydrate(ctx); err != nil {
		log.Fatalf("timer rehydration: %v", err)
	}
	go jobSvc.RunOverdueSweeper(ctx, cfg.Auction.SweepInterval)

	payoutSvc := payout.NewService(payout.NewStore(dbPool), operatorSvc, dispatcher, cfg.Payout, logger)

	handler := httptransport.NewRouter(httptransport.ServerDeps{
		Fares:     fareSvc,
		Bookings:  bookingSvc,
		Jobs:      jobSvc,
		Bids:      bidSvc,
		Operators: operatorSvc,
		Payouts:   payoutSvc,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Printf("fleetbid-api listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// jobCatalog defers the bid→job dependency until both services exist.
type jobCatalog struct {
	jobs **job.Service
}

func (c jobCatalog) JobForBidding(ctx context.Context, jobID types.ID) (bid.JobView, error) {
	return (*c.jobs).JobForBidding(ctx, jobID)
}
