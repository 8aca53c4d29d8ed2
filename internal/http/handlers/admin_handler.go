// README: Admin handlers; early close, reopen, manual assign, payout run/confirm.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetbid/internal/modules/job"
	"fleetbid/internal/modules/payout"
	"fleetbid/internal/types"
)

type AdminHandler struct {
	jobs    *job.Service
	payouts *payout.Service
}

func NewAdminHandler(jobs *job.Service, payouts *payout.Service) *AdminHandler {
	return &AdminHandler{jobs: jobs, payouts: payouts}
}

func (h *AdminHandler) CloseBidding(c *gin.Context) {
	if err := h.jobs.EarlyClose(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": c.Param("id")})
}

func (h *AdminHandler) Reopen(c *gin.Context) {
	if err := h.jobs.Reopen(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": c.Param("id"), "status": job.StatusOpenForBidding})
}

type manualAssignReq struct {
	OperatorID string `json:"operator_id"`
	Amount     int64  `json:"amount"`
}

func (h *AdminHandler) ManualAssign(c *gin.Context) {
	var req manualAssignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.jobs.ManualAssign(c.Request.Context(), job.ManualAssignCommand{
		JobID:      types.ID(c.Param("id")),
		OperatorID: types.ID(req.OperatorID),
		Amount:     types.Pence(req.Amount),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": c.Param("id"), "status": job.StatusAssigned})
}

func (h *AdminHandler) RunPayouts(c *gin.Context) {
	summary, err := h.payouts.Run(c.Request.Context(), time.Now())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	skipped := make([]string, 0, len(summary.SkippedOperators))
	for _, id := range summary.SkippedOperators {
		skipped = append(skipped, string(id))
	}
	c.JSON(http.StatusOK, gin.H{
		"disabled":          summary.Disabled,
		"jobs_processed":    summary.JobsProcessed,
		"total_processed":   summary.TotalProcessed.Amount,
		"skipped_operators": skipped,
	})
}

func (h *AdminHandler) ConfirmPayout(c *gin.Context) {
	total, err := h.payouts.Confirm(c.Request.Context(), types.ID(c.Param("operatorId")), time.Now())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operator_id": c.Param("operatorId"), "total": total.Amount})
}
