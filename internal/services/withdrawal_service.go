package services

import (
	"fmt"
	"sync"
	"time"

	"referral-program/internal/common"
	"referral-program/internal/config"
	"referral-program/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WithdrawalService runs the payout state machine. Funds are checked twice:
// once at creation against the cached passive income, and again inside the
// approval transaction with a guarded debit.
type WithdrawalService struct {
	db  *gorm.DB
	cfg *config.Config
	mu  sync.Mutex
}

func NewWithdrawalService(db *gorm.DB, cfg *config.Config) *WithdrawalService {
	return &WithdrawalService{
		db:  db,
		cfg: cfg,
	}
}

// CreateWithdrawal validates and persists a payout request in pending state
func (s *WithdrawalService) CreateWithdrawal(userID uint, bankName, accountName, accountNumber string, amount decimal.Decimal) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bankName == "" || accountName == "" || accountNumber == "" {
		return nil, fmt.Errorf("bank details are required: %w", common.ErrInvalidInput)
	}

	if amount.LessThan(s.cfg.Withdrawal.MinAmount) {
		return nil, fmt.Errorf("minimum withdrawal is %s: %w",
			s.cfg.Withdrawal.MinAmount, common.ErrInvalidInput)
	}

	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("account %d: %w", userID, common.ErrNotFound)
		}
		return nil, err
	}

	if amount.GreaterThan(user.PassiveIncome) {
		return nil, fmt.Errorf("requested %s but passive income is %s: %w",
			amount, user.PassiveIncome, common.ErrInsufficientFunds)
	}

	var pending int64
	err := s.db.Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND status = ?", userID, models.WithdrawalStatusPending).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, fmt.Errorf("account %d already has a pending withdrawal: %w",
			userID, common.ErrConflict)
	}

	request := models.WithdrawalRequest{
		UserID:        userID,
		BankName:      bankName,
		AccountName:   accountName,
		AccountNumber: accountNumber,
		Amount:        amount,
		Reference:     uuid.New().String(),
		Status:        models.WithdrawalStatusPending,
	}

	if err := s.db.Create(&request).Error; err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	log.Printf("Withdrawal request %d created: account %d, amount %s, ref %s",
		request.ID, userID, amount, request.Reference)
	return &request, nil
}

// ApproveWithdrawal debits the account and appends the ledger entry in one
// transaction. The funds are re-checked by the guarded debit itself, so an
// account drained since creation fails here with InsufficientFunds and the
// request stays pending.
func (s *WithdrawalService) ApproveWithdrawal(requestID uint) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var request models.WithdrawalRequest
	if err := s.db.Where("id = ?", requestID).First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("withdrawal request %d: %w", requestID, common.ErrNotFound)
		}
		return nil, err
	}

	if request.Status != models.WithdrawalStatusPending {
		return nil, fmt.Errorf("withdrawal request %d is %s: %w",
			requestID, request.Status, common.ErrInvalidState)
	}

	now := time.Now()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", request.ID, models.WithdrawalStatusPending).
			Updates(map[string]interface{}{
				"status":       models.WithdrawalStatusApproved,
				"processed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("withdrawal request %d already processed: %w",
				request.ID, common.ErrInvalidState)
		}

		ok, err := debitWithdrawal(tx, request.UserID, request.Amount, request.Reference)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("account %d no longer covers %s: %w",
				request.UserID, request.Amount, common.ErrInsufficientFunds)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	request.Status = models.WithdrawalStatusApproved
	request.ProcessedAt = &now

	log.Printf("Withdrawal request %d approved: account %d debited %s (ref %s)",
		request.ID, request.UserID, request.Amount, request.Reference)
	return &request, nil
}

// RejectWithdrawal closes a pending request with no balance effect
func (s *WithdrawalService) RejectWithdrawal(requestID uint) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var request models.WithdrawalRequest
	if err := s.db.Where("id = ?", requestID).First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("withdrawal request %d: %w", requestID, common.ErrNotFound)
		}
		return nil, err
	}

	if request.Status != models.WithdrawalStatusPending {
		return nil, fmt.Errorf("withdrawal request %d is %s: %w",
			requestID, request.Status, common.ErrInvalidState)
	}

	now := time.Now()
	res := s.db.Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", request.ID, models.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":       models.WithdrawalStatusRejected,
			"processed_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("withdrawal request %d already processed: %w",
			request.ID, common.ErrInvalidState)
	}

	request.Status = models.WithdrawalStatusRejected
	request.ProcessedAt = &now

	log.Printf("Withdrawal request %d rejected (account %d)", request.ID, request.UserID)
	return &request, nil
}

// GetUserWithdrawals returns a user's withdrawal history, newest first
func (s *WithdrawalService) GetUserWithdrawals(userID uint) ([]models.WithdrawalRequest, error) {
	var requests []models.WithdrawalRequest
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// ListWithdrawals returns withdrawal requests, optionally filtered by status
func (s *WithdrawalService) ListWithdrawals(status models.WithdrawalStatus, limit, offset int) ([]models.WithdrawalRequest, int64, error) {
	query := s.db.Model(&models.WithdrawalRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []models.WithdrawalRequest
	err := query.Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
