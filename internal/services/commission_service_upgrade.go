package services

import (
	"fmt"
	"time"

	"referral-program/internal/common"
	"referral-program/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateUpgrade opens a plan-upgrade request for the calling account. The
// subject names its new sponsor by referral code; the sponsor must approve
// with proof before an admin can finalize.
func (s *CommissionService) CreateUpgrade(subjectID uint, sponsorCode string, plan models.Plan) (*models.UpgradeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !plan.Valid() {
		return nil, fmt.Errorf("plan %q: %w", plan, common.ErrInvalidInput)
	}
	if sponsorCode == "" {
		return nil, fmt.Errorf("sponsor referral code is required: %w", common.ErrInvalidInput)
	}

	var subject models.User
	if err := s.db.Where("id = ?", subjectID).First(&subject).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("account %d: %w", subjectID, common.ErrNotFound)
		}
		return nil, err
	}

	if subject.Status != models.UserStatusActive {
		return nil, fmt.Errorf("account %d is not active yet: %w", subjectID, common.ErrInvalidState)
	}

	if plan.Rank() <= subject.Plan.Rank() {
		return nil, fmt.Errorf("account %d is already on %s, %s is not an upgrade: %w",
			subjectID, subject.Plan, plan, common.ErrInvalidState)
	}

	var sponsor models.User
	if err := s.db.Where("referral_code = ?", sponsorCode).First(&sponsor).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("referral code %q: %w", sponsorCode, common.ErrNotFound)
		}
		return nil, err
	}

	if sponsor.ID == subjectID {
		return nil, fmt.Errorf("account cannot sponsor its own upgrade: %w", common.ErrForbidden)
	}

	if sponsor.Status != models.UserStatusActive || !sponsor.Plan.Valid() {
		return nil, fmt.Errorf("sponsor %d has no active plan: %w", sponsor.ID, common.ErrInvalidState)
	}

	if !sponsor.Plan.CanSponsor(plan) {
		return nil, fmt.Errorf("plan %s cannot sponsor %s: %w",
			sponsor.Plan, plan, common.ErrPlanNotAllowed)
	}

	open, err := s.hasOpenRequest(subjectID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("account %d already has an open request: %w", subjectID, common.ErrConflict)
	}

	request := models.UpgradeRequest{
		UserID:    subjectID,
		SponsorID: &sponsor.ID,
		Plan:      plan,
		Status:    models.RequestStatusPending,
	}

	if err := s.db.Create(&request).Error; err != nil {
		return nil, fmt.Errorf("failed to create upgrade request: %w", err)
	}

	log.Printf("Upgrade request %d created: account %d to %s under sponsor %d",
		request.ID, subjectID, plan, sponsor.ID)
	return &request, nil
}

// SponsorApproveUpgrade records the new sponsor's approval and proof of
// payment. The sponsor may grant a discount here, which suppresses the
// grand-sponsor passive payout at final approval.
func (s *CommissionService) SponsorApproveUpgrade(requestID, callerID uint, proofRef string, discounted bool) (*models.UpgradeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if proofRef == "" {
		return nil, fmt.Errorf("proof of payment is required: %w", common.ErrInvalidInput)
	}

	var request models.UpgradeRequest
	if err := s.db.Where("id = ?", requestID).First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("upgrade request %d: %w", requestID, common.ErrNotFound)
		}
		return nil, err
	}

	if request.SponsorID == nil || *request.SponsorID != callerID {
		return nil, fmt.Errorf("caller %d is not the sponsor of upgrade request %d: %w",
			callerID, requestID, common.ErrForbidden)
	}

	if request.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("upgrade request %d is %s: %w",
			requestID, request.Status, common.ErrInvalidState)
	}

	now := time.Now()
	res := s.db.Model(&models.UpgradeRequest{}).
		Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":              models.RequestStatusSponsorApproved,
			"proof_ref":           proofRef,
			"discounted":          discounted,
			"sponsor_approved_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("upgrade request %d already processed: %w",
			request.ID, common.ErrInvalidState)
	}

	request.Status = models.RequestStatusSponsorApproved
	request.ProofRef = proofRef
	request.Discounted = discounted
	request.SponsorApprovedAt = &now

	log.Printf("Upgrade request %d sponsor-approved by %d (discounted=%v)",
		request.ID, callerID, discounted)
	return &request, nil
}

// ApproveUpgrade finalizes a sponsor-approved upgrade: the subject moves to
// the new plan under the new sponsor and commissions are paid, all in one
// transaction. The referral forest must stay acyclic, so a new sponsor
// sitting anywhere below the subject aborts the whole approval.
func (s *CommissionService) ApproveUpgrade(requestID uint) (*models.UpgradeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var request models.UpgradeRequest
	if err := s.db.Where("id = ?", requestID).First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("upgrade request %d: %w", requestID, common.ErrNotFound)
		}
		return nil, err
	}

	if request.Status != models.RequestStatusSponsorApproved {
		return nil, fmt.Errorf("upgrade request %d is %s, needs sponsor approval first: %w",
			requestID, request.Status, common.ErrInvalidState)
	}

	if request.SponsorID == nil {
		return nil, fmt.Errorf("upgrade request %d has no sponsor: %w", requestID, common.ErrInternal)
	}

	pricing, err := s.pricingFor(request.Plan)
	if err != nil {
		return nil, err
	}

	sponsorID := *request.SponsorID
	reference := fmt.Sprintf("upgrade:%d", request.ID)
	now := time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UpgradeRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RequestStatusSponsorApproved).
			Updates(map[string]interface{}{
				"status":       models.RequestStatusApproved,
				"processed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("upgrade request %d already processed: %w",
				request.ID, common.ErrInvalidState)
		}

		// Reassigning the subject under a sponsor from its own downline
		// would close a loop in the referral forest
		cyclic, err := chainContains(tx, sponsorID, request.UserID)
		if err != nil {
			return err
		}
		if cyclic {
			return fmt.Errorf("upgrade request %d: %w", request.ID, common.ErrReferralCycle)
		}

		if err := tx.Model(&models.User{}).Where("id = ?", request.UserID).
			Updates(map[string]interface{}{
				"plan":        request.Plan,
				"referrer_id": sponsorID,
			}).Error; err != nil {
			return fmt.Errorf("failed to move account to new plan: %w", err)
		}

		if err := creditDirect(tx, sponsorID, pricing.Direct, reference); err != nil {
			return err
		}

		if request.Discounted {
			return nil
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

	if request.Discounted {
		log.Printf("Upgrade request %d approved with discount: account %d to %s, passive payout suppressed",
			request.ID, request.UserID, request.Plan)
	} else {
		log.Printf("Upgrade request %d approved: account %d to %s under sponsor %d",
			request.ID, request.UserID, request.Plan, sponsorID)
	}
	return &request, nil
}

// RejectUpgrade removes a non-terminal upgrade request without side effects
func (s *CommissionService) RejectUpgrade(requestID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var request models.UpgradeRequest
	if err := s.db.Where("id = ?", requestID).First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("upgrade request %d: %w", requestID, common.ErrNotFound)
		}
		return err
	}

	openStatuses := []models.RequestStatus{
		models.RequestStatusPending,
		models.RequestStatusSponsorApproved,
	}

	if request.Status != models.RequestStatusPending && request.Status != models.RequestStatusSponsorApproved {
		return fmt.Errorf("upgrade request %d is %s: %w",
			requestID, request.Status, common.ErrInvalidState)
	}

	res := s.db.Where("id = ? AND status IN ?", request.ID, openStatuses).
		Delete(&models.UpgradeRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("upgrade request %d already processed: %w",
			request.ID, common.ErrInvalidState)
	}

	log.Printf("Upgrade request %d rejected and removed (account %d)", request.ID, request.UserID)
	return nil
}

// ListUpgrades returns upgrade requests, optionally filtered by status
func (s *CommissionService) ListUpgrades(status models.RequestStatus, limit, offset int) ([]models.UpgradeRequest, int64, error) {
	query := s.db.Model(&models.UpgradeRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []models.UpgradeRequest
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

// chainContains walks up the referral chain from startID and reports whether
// targetID appears among its ancestors. The visited set stops the walk if the
// stored forest is already corrupt.
func chainContains(tx *gorm.DB, startID, targetID uint) (bool, error) {
	visited := make(map[uint]bool)
	currentID := startID

	for {
		if currentID == targetID {
			return true, nil
		}
		if visited[currentID] {
			return false, fmt.Errorf("referral chain at account %d loops: %w", currentID, common.ErrInternal)
		}
		visited[currentID] = true

		var user models.User
		if err := tx.Select("referrer_id").Where("id = ?", currentID).First(&user).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return false, nil
			}
			return false, err
		}

		if user.ReferrerID == nil {
			return false, nil
		}
		currentID = *user.ReferrerID
	}
}
