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

// RequestHandler handles activation and upgrade request endpoints
type RequestHandler struct {
	commissionService *services.CommissionService
}

// NewRequestHandler creates a new RequestHandler
func NewRequestHandler(commissionService *services.CommissionService) *RequestHandler {
	return &RequestHandler{
		commissionService: commissionService,
	}
}

// CreateActivation submits a plan-activation request. The caller sponsors the
// subject, or activates itself when it has no upline.
// POST /api/requests/activation
func (h *RequestHandler) CreateActivation(c *gin.Context) {
	callerID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		SubjectID uint   `json:"subject_id" binding:"required"`
		Plan      string `json:"plan" binding:"required"`
		ProofRef  string `json:"proof_ref" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.commissionService.CreateActivation(callerID, req.SubjectID, models.Plan(req.Plan), req.ProofRef)
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    request,
	})
}

// CreateUpgrade opens a plan upgrade for the caller under a new sponsor
// POST /api/requests/upgrade
func (h *RequestHandler) CreateUpgrade(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Plan        string `json:"plan" binding:"required"`
		SponsorCode string `json:"sponsor_code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.commissionService.CreateUpgrade(userID, req.SponsorCode, models.Plan(req.Plan))
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    request,
	})
}

// SponsorApproveUpgrade records the new sponsor's approval with proof of
// payment, optionally granting a discount
// POST /api/requests/upgrade/:id/sponsor-approve
func (h *RequestHandler) SponsorApproveUpgrade(c *gin.Context) {
	callerID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	var req struct {
		ProofRef   string `json:"proof_ref" binding:"required"`
		Discounted bool   `json:"discounted"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.commissionService.SponsorApproveUpgrade(uint(requestID), callerID, req.ProofRef, req.Discounted)
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    request,
	})
}

// GetMyRequests returns the caller's activation and upgrade requests, both
// as subject and as sponsor
// GET /api/requests/mine
func (h *RequestHandler) GetMyRequests(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	activations, upgrades, err := h.commissionService.GetUserRequests(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"activations": activations,
			"upgrades":    upgrades,
		},
	})
}
