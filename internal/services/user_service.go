package services

import (
	"context"
	"fmt"

	"referral-program/internal/common"
	"referral-program/internal/models"
	"referral-program/internal/repository"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserService serves account reads and the admin-side account lifecycle
type UserService struct {
	db   *gorm.DB
	repo *repository.Repository
}

func NewUserService(db *gorm.DB, repo *repository.Repository) *UserService {
	return &UserService{
		db:   db,
		repo: repo,
	}
}

// GetProfile returns the account with its upline preloaded plus the direct
// referral count
func (s *UserService) GetProfile(userID uint) (*models.User, int64, error) {
	var user models.User
	if err := s.db.Preload("Referrer").Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, 0, fmt.Errorf("account %d: %w", userID, common.ErrNotFound)
		}
		return nil, 0, err
	}

	var referralCount int64
	if err := s.db.Model(&models.User{}).Where("referrer_id = ?", userID).Count(&referralCount).Error; err != nil {
		return nil, 0, err
	}

	return &user, referralCount, nil
}

// GetReferrals returns the account's direct downline, newest first
func (s *UserService) GetReferrals(userID uint) ([]models.User, error) {
	var referrals []models.User
	err := s.db.Where("referrer_id = ?", userID).
		Order("created_at DESC").
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

// GetLedger returns the account's ledger history with total count
func (s *UserService) GetLedger(ctx context.Context, userID uint, limit, offset int) ([]*models.LedgerEntry, int64, error) {
	return s.repo.GetUserEntries(ctx, userID, limit, offset)
}

// Reconcile rederives the cached balance fields from the ledger and stores
// them. The ledger is authoritative; this is the repair path for cached
// fields, never a way to set them.
func (s *UserService) Reconcile(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("account %d: %w", userID, common.ErrNotFound)
		}
		return nil, err
	}

	direct, err := s.repo.KindSum(ctx, userID, models.EntryDirect)
	if err != nil {
		return nil, err
	}
	passive, err := s.repo.KindSum(ctx, userID, models.EntryPassive)
	if err != nil {
		return nil, err
	}
	withdrawn, err := s.repo.KindSum(ctx, userID, models.EntryWithdrawal)
	if err != nil {
		return nil, err
	}

	balance := direct.Add(passive).Sub(withdrawn)
	passiveNet := passive.Sub(withdrawn)

	err = s.db.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"balance":        balance,
			"direct_income":  direct,
			"passive_income": passiveNet,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store reconciled balances: %w", err)
	}

	if !user.Balance.Equal(balance) {
		log.Printf("Reconciled account %d: cached balance %s corrected to %s",
			userID, user.Balance, balance)
	}

	user.Balance = balance
	user.DirectIncome = direct
	user.PassiveIncome = passiveNet
	return &user, nil
}

// DeleteUser removes an account and everything it owns. The downline is
// detached, not deleted: children keep their accounts with no upline.
func (s *UserService) DeleteUser(userID uint) error {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("account %d: %w", userID, common.ErrNotFound)
		}
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("referrer_id = ?", userID).
			Update("referrer_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach downline: %w", err)
		}

		if err := tx.Model(&models.ActivationRequest{}).Where("sponsor_id = ?", userID).
			Update("sponsor_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UpgradeRequest{}).Where("sponsor_id = ?", userID).
			Update("sponsor_id", nil).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.ActivationRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UpgradeRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.WithdrawalRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.LedgerEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.LeaderboardStat{}).Error; err != nil {
			return err
		}

		if err := tx.Delete(&models.User{}, userID).Error; err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Account %d (%s) deleted, downline detached", userID, user.Email)
	return nil
}
