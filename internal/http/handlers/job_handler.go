// README: Job handlers; operator-facing bidding surface and lifecycle triggers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetbid/internal/modules/bid"
	"fleetbid/internal/modules/job"
	"fleetbid/internal/types"
)

type JobHandler struct {
	jobs *job.Service
	bids *bid.Service
}

func NewJobHandler(jobs *job.Service, bids *bid.Service) *JobHandler {
	return &JobHandler{jobs: jobs, bids: bids}
}

func (h *JobHandler) Get(c *gin.Context) {
	j, err := h.jobs.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobResp(j))
}

// ListVisible is the "jobs visible to operator X" read model.
func (h *JobHandler) ListVisible(c *gin.Context) {
	jobs, err := h.jobs.ListVisibleToOperator(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]gin.H, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobResp(&jobs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

type submitBidReq struct {
	OperatorID string `json:"operator_id"`
	Amount     int64  `json:"amount"`
}

func (h *JobHandler) SubmitBid(c *gin.Context) {
	var req submitBidReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.bids.Submit(c.Request.Context(), bid.SubmitCommand{
		JobID:      types.ID(c.Param("id")),
		OperatorID: types.ID(req.OperatorID),
		Amount:     types.Pence(req.Amount),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bid_id": id, "status": bid.StatusPending})
}

func (h *JobHandler) WithdrawBid(c *gin.Context) {
	err := h.bids.Withdraw(c.Request.Context(), types.ID(c.Param("id")), types.ID(c.Param("operatorId")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": bid.StatusWithdrawn})
}

type offerActionReq struct {
	OperatorID string `json:"operator_id"`
}

func (h *JobHandler) AcceptOffer(c *gin.Context) {
	var req offerActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.jobs.AcceptOffer(c.Request.Context(), types.ID(c.Param("id")), types.ID(req.OperatorID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": job.StatusAssigned})
}

func (h *JobHandler) DeclineOffer(c *gin.Context) {
	var req offerActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.jobs.DeclineOffer(c.Request.Context(), types.ID(c.Param("id")), types.ID(req.OperatorID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": bid.StatusDeclined})
}

func (h *JobHandler) Start(c *gin.Context) {
	if err := h.jobs.Start(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": job.StatusInProgress})
}

func (h *JobHandler) Complete(c *gin.Context) {
	if err := h.jobs.Complete(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": job.StatusCompleted})
}

func jobResp(j *job.Job) gin.H {
	resp := gin.H{
		"job_id":            j.ID,
		"booking_id":        j.BookingID,
		"vehicle":           j.Vehicle,
		"status":            j.Status,
		"customer_price":    j.CustomerPrice.Amount,
		"pickup_at":         j.PickupAt,
		"bidding_opens_at":  j.BiddingOpensAt,
		"bidding_closes_at": j.BiddingClosesAt,
		"payout_status":     j.PayoutStatus,
	}
	if j.AssignedOperatorID != nil {
		resp["assigned_operator_id"] = *j.AssignedOperatorID
	}
	if j.PlatformMargin != nil {
		resp["platform_margin"] = j.PlatformMargin.Amount
	}
	return resp
}
