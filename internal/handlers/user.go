package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"referral-program/internal/auth"
	"referral-program/internal/common"
	"referral-program/internal/services"
)

// UserHandler handles account read endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetProfile returns the caller's account with upline and referral count
// GET /api/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, referralCount, err := h.userService.GetProfile(userID)
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user":           user,
			"referral_count": referralCount,
		},
	})
}

// GetReferrals returns the caller's direct downline
// GET /api/user/referrals
func (h *UserHandler) GetReferrals(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	referrals, err := h.userService.GetReferrals(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get referrals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    referrals,
		"count":   len(referrals),
	})
}

// GetLedger returns the caller's ledger history, newest first
// GET /api/user/ledger
func (h *UserHandler) GetLedger(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, total, err := h.userService.GetLedger(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get ledger"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}
