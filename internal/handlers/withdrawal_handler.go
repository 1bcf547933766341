package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"referral-program/internal/auth"
	"referral-program/internal/common"
	"referral-program/internal/services"
)

// WithdrawalHandler handles payout request endpoints
type WithdrawalHandler struct {
	withdrawalService *services.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler
func NewWithdrawalHandler(withdrawalService *services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{
		withdrawalService: withdrawalService,
	}
}

// CreateWithdrawal requests a payout of passive income to a bank account
// POST /api/withdrawals
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		BankName      string `json:"bank_name" binding:"required"`
		AccountName   string `json:"account_name" binding:"required"`
		AccountNumber string `json:"account_number" binding:"required"`
		Amount        string `json:"amount" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}

	request, err := h.withdrawalService.CreateWithdrawal(userID, req.BankName, req.AccountName, req.AccountNumber, amount)
	if err != nil {
		c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    request,
	})
}

// GetMyWithdrawals returns the caller's withdrawal history
// GET /api/withdrawals/mine
func (h *WithdrawalHandler) GetMyWithdrawals(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	requests, err := h.withdrawalService.GetUserWithdrawals(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get withdrawals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    requests,
		"count":   len(requests),
	})
}
