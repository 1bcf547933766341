package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"referral-program/internal/common"
	"referral-program/internal/models"
	"referral-program/internal/services"
)

// LeaderboardHandler serves earnings ranking endpoints
type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler
func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
	}
}

// GetLeaderboard returns the top earners for a period (daily, weekly, monthly, all-time)
// GET /api/leaderboard/:period
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	periodParam := c.Param("period")

	limit := 10
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	var entries []services.LeaderboardEntry
	var err error

	switch periodParam {
	case "all-time":
		entries, err = h.leaderboardService.AllTime(c.Request.Context(), limit)
	case "daily":
		entries, err = h.leaderboardService.TopN(c.Request.Context(), models.PeriodDaily, limit)
	case "weekly":
		entries, err = h.leaderboardService.TopN(c.Request.Context(), models.PeriodWeekly, limit)
	case "monthly":
		entries, err = h.leaderboardService.TopN(c.Request.Context(), models.PeriodMonthly, limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid period, must be daily, weekly, monthly or all-time"})
		return
	}

	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"period":  periodParam,
			"entries": entries,
		},
	})
}
