package services

import (
	"fmt"
	"sync"
	"time"

	"referral-program/internal/common"
	"referral-program/internal/config"
	"referral-program/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CommissionService runs the activation and upgrade state machines and pays
// commissions up the referral chain. Every approval is one database
// transaction; the mutex serializes in-process approvals so two goroutines
// cannot race the same request past its status check.
type CommissionService struct {
	db  *gorm.DB
	cfg *config.Config
	mu  sync.Mutex
}

func NewCommissionService(db *gorm.DB, cfg *config.Config) *CommissionService {
	return &CommissionService{
		db:  db,
		cfg: cfg,
	}
}

// pricingFor resolves the commission amounts for a plan
func (s *CommissionService) pricingFor(plan models.Plan) (config.TierPricing, error) {
	pricing, ok := s.cfg.PricingFor(string(plan))
	if !ok {
		return config.TierPricing{}, fmt.Errorf("plan %s has no pricing: %w", plan, common.ErrInvalidInput)
	}
	return pricing, nil
}

// hasOpenRequest reports whether the subject already has a non-terminal
// activation or upgrade request
func (s *CommissionService) hasOpenRequest(subjectID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.ActivationRequest{}).
		Where("user_id = ? AND status = ?", subjectID, models.RequestStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	err = s.db.Model(&models.UpgradeRequest{}).
		Where("user_id = ? AND status IN ?", subjectID,
			[]models.RequestStatus{models.RequestStatusPending, models.RequestStatusSponsorApproved}).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// CreateActivation validates and persists a plan-activation request. The
// caller is the submitting sponsor, or the subject itself when it has no
// upline. No money moves until an admin approves.
func (s *CommissionService) CreateActivation(callerID, subjectID uint, plan models.Plan, proofRef string) (*models.ActivationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !plan.Valid() {
		return nil, fmt.Errorf("plan %q: %w", plan, common.ErrInvalidInput)
	}
	if proofRef == "" {
		return nil, fmt.Errorf("proof of payment is required: %w", common.ErrInvalidInput)
	}

	var subject models.User
	if err := s.db.Where("id = ?", subjectID).First(&subject).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("account %d: %w", subjectID, common.ErrNotFound)
		}
		return nil, err
	}

	if subject.Status != models.UserStatusPending {
		return nil, fmt.Errorf("account %d is already active: %w", subjectID, common.ErrInvalidState)
	}

	// Only the subject's upline may submit for it; accounts without an
	// upline activate themselves.
	if subject.ReferrerID != nil {
		if callerID != *subject.ReferrerID {
			return nil, fmt.Errorf("caller %d is not the upline of account %d: %w",
				callerID, subjectID, common.ErrForbidden)
		}

		var sponsor models.User
		if err := s.db.Where("id = ?", callerID).First(&sponsor).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, fmt.Errorf("sponsor %d: %w", callerID, common.ErrNotFound)
			}
			return nil, err
		}

		if sponsor.Status != models.UserStatusActive || !sponsor.Plan.Valid() {
			return nil, fmt.Errorf("sponsor %d has no active plan: %w", callerID, common.ErrInvalidState)
		}

		if !sponsor.Plan.CanSponsor(plan) {
			return nil, fmt.Errorf("plan %s cannot sponsor %s: %w",
				sponsor.Plan, plan, common.ErrPlanNotAllowed)
		}
	} else if callerID != subjectID {
		return nil, fmt.Errorf("account %d has no upline, only self-activation is allowed: %w",
			subjectID, common.ErrForbidden)
	}

	open, err := s.hasOpenRequest(subjectID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("account %d already has an open request: %w", subjectID, common.ErrConflict)
	}

	request := models.ActivationRequest{
		UserID:    subjectID,
		SponsorID: &callerID,
		Plan:      plan,
		ProofRef:  proofRef,
		Status:    models.RequestStatusPending,
	}

	if err := s.db.Create(&request).Error; err != nil {
		return nil, fmt.Errorf("failed to create activation request: %w", err)
	}

	log.Printf("Activation request %d created: account %d, plan %s, sponsor %d",
		request.ID, subjectID, plan, callerID)
	return &request, nil
}

// ApproveActivation activates the subject and distributes commissions up to
// two referral levels, all inside one transaction. A request can only pass
// the guarded status transition once; a second approval attempt observes the
// terminal status and fails.
func (s *CommissionService) ApproveActivation(requestID uint) (*models.ActivationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var request models.ActivationRequest
	if err := s.db.Where("id = ?", requestID).First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("activation request %d: %w", requestID, common.ErrNotFound)
		}
		return nil, err
	}

	if request.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("activation request %d is %s: %w",
			requestID, request.Status, common.ErrInvalidState)
	}

	pricing, err := s.pricingFor(request.Plan)
	if err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("activation:%d", request.ID)
	now := time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Guarded transition: only one approval can flip the row
		res := tx.Model(&models.ActivationRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
			Updates(map[string]interface{}{
				"status":       models.RequestStatusApproved,
				"processed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("activation request %d already processed: %w",
				request.ID, common.ErrInvalidState)
		}

		if err := tx.Model(&models.User{}).Where("id = ?", request.UserID).
			Updates(map[string]interface{}{
				"status": models.UserStatusActive,
				"plan":   request.Plan,
			}).Error; err != nil {
			return fmt.Errorf("failed to activate account: %w", err)
		}

		// Self-activation pays nobody
		if request.SponsorID == nil || *request.SponsorID == request.UserID {
			return nil
		}

		sponsorID := *request.SponsorID
		if err := creditDirect(tx, sponsorID, pricing.Direct, reference); err != nil {
			return err
		}

		var sponsor models.User
		if err := tx.Where("id = ?", sponsorID).First(&sponsor).Error; err != nil {
			return fmt.Errorf("failed to load sponsor: %w", err)
		}

		if sponsor.ReferrerID != nil {
			if err := creditPassive(tx, *sponsor.ReferrerID, pricing.Passive, reference); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	request.Status = models.RequestStatusApproved
	request.ProcessedAt = &now

	log.Printf("Activation request %d approved: account %d now on %s (direct %s, passive %s)",
		request.ID, request.UserID, request.Plan, pricing.Direct, pricing.Passive)
	return &request, nil
}

// RejectActivation removes a pending request without touching any balance
func (s *CommissionService) RejectActivation(requestID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var request models.ActivationRequest
	if err := s.db.Where("id = ?", requestID).First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("activation request %d: %w", requestID, common.ErrNotFound)
		}
		return err
	}

	if request.Status != models.RequestStatusPending {
		return fmt.Errorf("activation request %d is %s: %w",
			requestID, request.Status, common.ErrInvalidState)
	}

	res := s.db.Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
		Delete(&models.ActivationRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("activation request %d already processed: %w",
			request.ID, common.ErrInvalidState)
	}

	log.Printf("Activation request %d rejected and removed (account %d)", request.ID, request.UserID)
	return nil
}

// GetActivation retrieves one activation request with its accounts preloaded
func (s *CommissionService) GetActivation(requestID uint) (*models.ActivationRequest, error) {
	var request models.ActivationRequest
	err := s.db.Preload("User").Preload("Sponsor").Where("id = ?", requestID).First(&request).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("activation request %d: %w", requestID, common.ErrNotFound)
		}
		return nil, err
	}
	return &request, nil
}

// ListActivations returns activation requests, optionally filtered by status
func (s *CommissionService) ListActivations(status models.RequestStatus, limit, offset int) ([]models.ActivationRequest, int64, error) {
	query := s.db.Model(&models.ActivationRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []models.ActivationRequest
	err := query.Preload("User").Preload("Sponsor").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// GetUserRequests returns a user's own activation and upgrade requests
func (s *CommissionService) GetUserRequests(userID uint) ([]models.ActivationRequest, []models.UpgradeRequest, error) {
	var activations []models.ActivationRequest
	err := s.db.Where("user_id = ? OR sponsor_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&activations).Error
	if err != nil {
		return nil, nil, err
	}

	var upgrades []models.UpgradeRequest
	err = s.db.Where("user_id = ? OR sponsor_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&upgrades).Error
	if err != nil {
		return nil, nil, err
	}

	return activations, upgrades, nil
}
