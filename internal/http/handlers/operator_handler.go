// README: Operator handlers; earnings forecast read model and profile updates.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetbid/internal/modules/operator"
	"fleetbid/internal/modules/payout"
	"fleetbid/internal/types"
)

type OperatorHandler struct {
	operators *operator.Service
	payouts   *payout.Service
}

func NewOperatorHandler(operators *operator.Service, payouts *payout.Service) *OperatorHandler {
	return &OperatorHandler{operators: operators, payouts: payouts}
}

// Earnings is the operator earnings forecast read model.
func (h *OperatorHandler) Earnings(c *gin.Context) {
	id := types.ID(c.Param("id"))
	now := time.Now()

	forecast, err := h.payouts.ForecastFor(c.Request.Context(), id, now)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	p, err := h.payouts.PartitionFor(c.Request.Context(), id, now)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"eligible_total":  forecast.EligibleTotal.Amount,
		"in_hold_total":   forecast.InHoldTotal.Amount,
		"held_back_total": forecast.HeldBackTotal.Amount,
		"in_hold":         holdEntries(p.InHold),
	})
}

type bankReq struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	SortCode      string `json:"sort_code"`
}

func (h *OperatorHandler) UpdateBank(c *gin.Context) {
	var req bankReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.operators.UpdateBank(c.Request.Context(), types.ID(c.Param("id")), operator.BankDetails{
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		SortCode:      req.SortCode,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func holdEntries(entries []payout.Entry) []gin.H {
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"job_id":         e.JobID,
			"amount":         e.Amount.Amount,
			"days_remaining": e.DaysRemaining,
		})
	}
	return out
}
