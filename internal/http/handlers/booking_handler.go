// README: Booking handlers; create, payment trigger (spawns the Job), cancel.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetbid/internal/modules/booking"
	"fleetbid/internal/modules/fare"
	"fleetbid/internal/modules/job"
	"fleetbid/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
	jobs     *job.Service
}

func NewBookingHandler(bookings *booking.Service, jobs *job.Service) *BookingHandler {
	return &BookingHandler{bookings: bookings, jobs: jobs}
}

type createBookingReq struct {
	Vehicle         string    `json:"vehicle"`
	Service         string    `json:"service"`
	Journey         string    `json:"journey"`
	Passengers      int       `json:"passengers"`
	Luggage         int       `json:"luggage"`
	Pickup          pointReq  `json:"pickup"`
	Dropoff         pointReq  `json:"dropoff"`
	PickupPostcode  string    `json:"pickup_postcode"`
	DropoffPostcode string    `json:"dropoff_postcode"`
	PickupAt        time.Time `json:"pickup_at"`
	QuotedPrice     int64     `json:"quoted_price"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.bookings.Create(c.Request.Context(), booking.CreateCommand{
		Vehicle:         fare.VehicleClass(req.Vehicle),
		Service:         fare.ServiceType(req.Service),
		Journey:         booking.Journey(req.Journey),
		Passengers:      req.Passengers,
		Luggage:         req.Luggage,
		Pickup:          types.Point{Lat: req.Pickup.Lat, Lng: req.Pickup.Lng},
		Dropoff:         types.Point{Lat: req.Dropoff.Lat, Lng: req.Dropoff.Lng},
		PickupPostcode:  req.PickupPostcode,
		DropoffPostcode: req.DropoffPostcode,
		PickupAt:        req.PickupAt,
		QuotedPrice:     types.Pence(req.QuotedPrice),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking_id": id, "status": booking.StatusPending})
}

// MarkPaid records the captured payment and spawns the Job immediately.
func (h *BookingHandler) MarkPaid(c *gin.Context) {
	id := types.ID(c.Param("id"))
	ctx := c.Request.Context()
	if err := h.bookings.MarkPaid(ctx, id); err != nil {
		writeServiceError(c, err)
		return
	}
	jobID, err := h.jobs.CreateFromBooking(ctx, job.CreateCommand{BookingID: id})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": id, "job_id": jobID})
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id := types.ID(c.Param("id"))
	ctx := c.Request.Context()
	if err := h.bookings.Cancel(ctx, id); err != nil {
		writeServiceError(c, err)
		return
	}
	// The booking is already cancelled; the job teardown (timers, bids)
	// follows from it.
	if err := h.jobs.CancelForBooking(ctx, id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": id, "status": booking.StatusCancelled})
}

func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking_id":     b.ID,
		"status":         b.Status,
		"vehicle":        b.Vehicle,
		"journey":        b.Journey,
		"pickup_at":      b.PickupAt,
		"customer_price": b.CustomerPrice.Amount,
	})
}
