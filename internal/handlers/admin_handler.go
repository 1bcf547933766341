package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"referral-program/internal/auth"
	"referral-program/internal/common"
	"referral-program/internal/models"
	"referral-program/internal/services"
)

// AdminHandler handles admin-only endpoints
type AdminHandler struct {
	adminService       *services.AdminService
	commissionService  *services.CommissionService
	withdrawalService  *services.WithdrawalService
	userService        *services.UserService
	leaderboardService *services.LeaderboardService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	adminService *services.AdminService,
	commissionService *services.CommissionService,
	withdrawalService *services.WithdrawalService,
	userService *services.UserService,
	leaderboardService *services.LeaderboardService,
) *AdminHandler {
	return &AdminHandler{
		adminService:       adminService,
		commissionService:  commissionService,
		withdrawalService:  withdrawalService,
		userService:        userService,
		leaderboardService: leaderboardService,
	}
}

// AdminMiddleware checks that the authenticated user has the admin role
func (h *AdminHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := auth.GetRole(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		if role != string(models.RoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ============================================================================
// DASHBOARD & REPORTS
// ============================================================================

// GetDashboard returns platform-wide counters
// GET /api/admin/dashboard
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get dashboard stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// GetRevenue returns the per-plan revenue report
// GET /api/admin/revenue
func (h *AdminHandler) GetRevenue(c *gin.Context) {
	report, total, err := h.adminService.GetRevenueReport()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get revenue report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"plans": report,
			"total": total,
		},
	})
}

// ============================================================================
// USER MANAGEMENT
// ============================================================================

// GetUsers lists accounts with optional name/email search
// GET /api/admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	search := c.Query("search")

	users, total, err := h.adminService.GetAllUsers(limit, offset, search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    users,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// ReconcileUser rederives an account's cached balances from its ledger
// POST /api/admin/users/:id/reconcile
func (h *AdminHandler) ReconcileUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	user, err := h.userService.Reconcile(c.Request.Context(), uint(userID))
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// DeleteUser removes an account and detaches its downline
// DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := h.userService.DeleteUser(uint(userID)); err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User deleted",
	})
}

// ============================================================================
// ACTIVATION REQUESTS
// ============================================================================

// ListActivations lists activation requests, optionally filtered by status
// GET /api/admin/requests/activations
func (h *AdminHandler) ListActivations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := models.RequestStatus(c.Query("status"))

	requests, total, err := h.commissionService.ListActivations(status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get activation requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    requests,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// ApproveActivation confirms payment and pays out commissions
// POST /api/admin/requests/activations/:id/approve
func (h *AdminHandler) ApproveActivation(c *gin.Context) {
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	request, err := h.commissionService.ApproveActivation(uint(requestID))
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    request,
	})
}

// RejectActivation discards a pending activation request
// POST /api/admin/requests/activations/:id/reject
func (h *AdminHandler) RejectActivation(c *gin.Context) {
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	if err := h.commissionService.RejectActivation(uint(requestID)); err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Activation request rejected",
	})
}

// ============================================================================
// UPGRADE REQUESTS
// ============================================================================

// ListUpgrades lists upgrade requests, optionally filtered by status
// GET /api/admin/requests/upgrades
func (h *AdminHandler) ListUpgrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := models.RequestStatus(c.Query("status"))

	requests, total, err := h.commissionService.ListUpgrades(status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get upgrade requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    requests,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// ApproveUpgrade finalizes a sponsor-approved upgrade and pays out commissions
// POST /api/admin/requests/upgrades/:id/approve
func (h *AdminHandler) ApproveUpgrade(c *gin.Context) {
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	request, err := h.commissionService.ApproveUpgrade(uint(requestID))
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    request,
	})
}

// RejectUpgrade discards a pending or sponsor-approved upgrade request
// POST /api/admin/requests/upgrades/:id/reject
func (h *AdminHandler) RejectUpgrade(c *gin.Context) {
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	if err := h.commissionService.RejectUpgrade(uint(requestID)); err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Upgrade request rejected",
	})
}

// ============================================================================
// WITHDRAWAL REQUESTS
// ============================================================================

// ListWithdrawals lists withdrawal requests, optionally filtered by status
// GET /api/admin/withdrawals
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := models.WithdrawalStatus(c.Query("status"))

	requests, total, err := h.withdrawalService.ListWithdrawals(status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get withdrawal requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    requests,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// ApproveWithdrawal marks a payout as sent and debits the balance
// POST /api/admin/withdrawals/:id/approve
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	request, err := h.withdrawalService.ApproveWithdrawal(uint(requestID))
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    request,
	})
}

// RejectWithdrawal declines a pending payout without touching the balance
// POST /api/admin/withdrawals/:id/reject
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	request, err := h.withdrawalService.RejectWithdrawal(uint(requestID))
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    request,
	})
}

// ============================================================================
// LEADERBOARD
// ============================================================================

// RecomputeLeaderboard triggers a full leaderboard rebuild
// POST /api/admin/leaderboard/recompute
func (h *AdminHandler) RecomputeLeaderboard(c *gin.Context) {
	if err := h.leaderboardService.RunFullRecompute(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to recompute leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Leaderboard recomputed",
	})
}
