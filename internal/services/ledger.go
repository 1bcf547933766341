package services

import (
	"fmt"

	"referral-program/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// appendEntry writes one immutable ledger row inside the caller's transaction
func appendEntry(tx *gorm.DB, userID uint, kind models.EntryKind, amount decimal.Decimal, reference string) error {
	entry := models.LedgerEntry{
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Reference: reference,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// creditDirect pays a direct commission: one ledger row plus the cached
// direct_income and balance bumps, all inside the caller's transaction
func creditDirect(tx *gorm.DB, userID uint, amount decimal.Decimal, reference string) error {
	if err := appendEntry(tx, userID, models.EntryDirect, amount, reference); err != nil {
		return err
	}

	return tx.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"direct_income": gorm.Expr("direct_income + ?", amount),
			"balance":       gorm.Expr("balance + ?", amount),
		}).Error
}

// creditPassive pays a passive commission one referral level up
func creditPassive(tx *gorm.DB, userID uint, amount decimal.Decimal, reference string) error {
	if err := appendEntry(tx, userID, models.EntryPassive, amount, reference); err != nil {
		return err
	}

	return tx.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"passive_income": gorm.Expr("passive_income + ?", amount),
			"balance":        gorm.Expr("balance + ?", amount),
		}).Error
}

// debitWithdrawal takes an approved payout off the account. The update is
// guarded on passive_income so a stale approval cannot drive it negative;
// false means the funds are no longer there.
func debitWithdrawal(tx *gorm.DB, userID uint, amount decimal.Decimal, reference string) (bool, error) {
	res := tx.Model(&models.User{}).
		Where("id = ? AND passive_income >= ?", userID, amount).
		Updates(map[string]interface{}{
			"passive_income": gorm.Expr("passive_income - ?", amount),
			"balance":        gorm.Expr("balance - ?", amount),
		})

	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := appendEntry(tx, userID, models.EntryWithdrawal, amount, reference); err != nil {
		return false, err
	}

	return true, nil
}
