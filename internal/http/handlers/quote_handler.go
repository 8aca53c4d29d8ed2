// README: Quote handlers for one-way and return fare calculations.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetbid/internal/modules/fare"
	"fleetbid/internal/types"
)

type QuoteHandler struct {
	fares *fare.Service
}

func NewQuoteHandler(svc *fare.Service) *QuoteHandler {
	return &QuoteHandler{fares: svc}
}

type pointReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type legReq struct {
	Vehicle      string     `json:"vehicle"`
	Service      string     `json:"service"`
	Pickup       pointReq   `json:"pickup"`
	Dropoff      pointReq   `json:"dropoff"`
	Waypoints    []pointReq `json:"waypoints"`
	PickupAt     time.Time  `json:"pickup_at"`
	MeetAndGreet bool       `json:"meet_and_greet"`
	ChildSeats   int        `json:"child_seats"`
	BoosterSeats int        `json:"booster_seats"`
	PickAndDrop  bool       `json:"pick_and_drop"`
}

func (r legReq) toLeg() fare.LegRequest {
	leg := fare.LegRequest{
		Vehicle:  fare.VehicleClass(r.Vehicle),
		Service:  fare.ServiceType(r.Service),
		Pickup:   types.Point{Lat: r.Pickup.Lat, Lng: r.Pickup.Lng},
		Dropoff:  types.Point{Lat: r.Dropoff.Lat, Lng: r.Dropoff.Lng},
		PickupAt: r.PickupAt,
		Extras: fare.Extras{
			MeetAndGreet: r.MeetAndGreet,
			ChildSeats:   r.ChildSeats,
			BoosterSeats: r.BoosterSeats,
			PickAndDrop:  r.PickAndDrop,
		},
	}
	for _, w := range r.Waypoints {
		leg.Waypoints = append(leg.Waypoints, types.Point{Lat: w.Lat, Lng: w.Lng})
	}
	return leg
}

func (h *QuoteHandler) Quote(c *gin.Context) {
	var req legReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.fares.Quote(c.Request.Context(), req.toLeg())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdownResp(b))
}

type returnQuoteReq struct {
	Outbound legReq `json:"outbound"`
	Return   legReq `json:"return"`
}

func (h *QuoteHandler) QuoteReturn(c *gin.Context) {
	var req returnQuoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	rb, err := h.fares.QuoteReturn(c.Request.Context(), req.Outbound.toLeg(), req.Return.toLeg())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"outbound": breakdownResp(rb.Outbound),
		"return":   breakdownResp(rb.Return),
		"discount": rb.Discount.Amount,
		"total":    rb.Total.Amount,
	})
}

func breakdownResp(b fare.Breakdown) gin.H {
	return gin.H{
		"miles":             b.Miles,
		"minutes":           b.Minutes,
		"base_fare":         b.BaseFare.Amount,
		"distance_charge":   b.DistanceCharge.Amount,
		"time_surcharge":    b.TimeSurcharge.Amount,
		"holiday_surcharge": b.HolidaySurcharge.Amount,
		"meet_greet_fee":    b.MeetGreetFee.Amount,
		"airport_fee":       b.AirportFee.Amount,
		"child_seat_fee":    b.ChildSeatFee.Amount,
		"booster_seat_fee":  b.BoosterSeatFee.Amount,
		"pick_drop_fee":     b.PickDropFee.Amount,
		"subtotal":          b.Subtotal.Amount,
		"currency":          types.DefaultCurrency,
	}
}
