// README: HTTP router registration; delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetbid/internal/http/handlers"
	"fleetbid/internal/http/middleware"
	"fleetbid/internal/modules/bid"
	"fleetbid/internal/modules/booking"
	"fleetbid/internal/modules/fare"
	"fleetbid/internal/modules/job"
	"fleetbid/internal/modules/operator"
	"fleetbid/internal/modules/payout"
)

type ServerDeps struct {
	Fares     *fare.Service
	Bookings  *booking.Service
	Jobs      *job.Service
	Bids      *bid.Service
	Operators *operator.Service
	Payouts   *payout.Service
}

func NewRouter(deps ServerDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	quote := handlers.NewQuoteHandler(deps.Fares)
	r.POST("/api/quotes", quote.Quote)
	r.POST("/api/quotes/return", quote.QuoteReturn)

	bookingH := handlers.NewBookingHandler(deps.Bookings, deps.Jobs)
	r.POST("/api/bookings", bookingH.Create)
	r.GET("/api/bookings/:id", bookingH.Get)
	r.POST("/api/bookings/:id/paid", bookingH.MarkPaid)
	r.POST("/api/bookings/:id/cancel", bookingH.Cancel)

	jobH := handlers.NewJobHandler(deps.Jobs, deps.Bids)
	r.GET("/api/jobs/:id", jobH.Get)
	r.POST("/api/jobs/:id/bids", jobH.SubmitBid)
	r.DELETE("/api/jobs/:id/bids/:operatorId", jobH.WithdrawBid)
	r.POST("/api/jobs/:id/accept", jobH.AcceptOffer)
	r.POST("/api/jobs/:id/decline", jobH.DeclineOffer)
	r.POST("/api/jobs/:id/start", jobH.Start)
	r.POST("/api/jobs/:id/complete", jobH.Complete)

	operatorH := handlers.NewOperatorHandler(deps.Operators, deps.Payouts)
	r.GET("/api/operators/:id/jobs", jobH.ListVisible)
	r.GET("/api/operators/:id/earnings", operatorH.Earnings)
	r.PUT("/api/operators/:id/bank", operatorH.UpdateBank)

	adminH := handlers.NewAdminHandler(deps.Jobs, deps.Payouts)
	r.POST("/api/admin/jobs/:id/close", adminH.CloseBidding)
	r.POST("/api/admin/jobs/:id/reopen", adminH.Reopen)
	r.POST("/api/admin/jobs/:id/assign", adminH.ManualAssign)
	r.POST("/api/admin/payouts/run", adminH.RunPayouts)
	r.POST("/api/admin/payouts/confirm/:operatorId", adminH.ConfirmPayout)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
