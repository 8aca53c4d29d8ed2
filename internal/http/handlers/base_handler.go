// README: Base handler utilities (JSON helpers, module error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetbid/internal/modules/bid"
	"fleetbid/internal/modules/booking"
	"fleetbid/internal/modules/fare"
	"fleetbid/internal/modules/job"
	"fleetbid/internal/modules/operator"
	"fleetbid/internal/modules/payout"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fare.ErrBadRequest),
		errors.Is(err, booking.ErrBadRequest),
		errors.Is(err, job.ErrBadRequest),
		errors.Is(err, bid.ErrInvalidAmount):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, bid.ErrOperatorNotApproved),
		errors.Is(err, job.ErrNotApproved):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, job.ErrNotFound),
		errors.Is(err, bid.ErrNotFound),
		errors.Is(err, booking.ErrNotFound),
		errors.Is(err, operator.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, job.ErrInvalidState),
		errors.Is(err, job.ErrConflict),
		errors.Is(err, job.ErrJobExists),
		errors.Is(err, job.ErrBookingNotPaid),
		errors.Is(err, job.ErrOfferExpired),
		errors.Is(err, job.ErrNoOfferedBid),
		errors.Is(err, bid.ErrInvalidState),
		errors.Is(err, bid.ErrConflict),
		errors.Is(err, bid.ErrJobNotOpen),
		errors.Is(err, booking.ErrInvalidState),
		errors.Is(err, booking.ErrConflict),
		errors.Is(err, payout.ErrNothingToConfirm):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, fare.ErrDistanceUnavailable):
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
