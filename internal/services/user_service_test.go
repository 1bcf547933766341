package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"referral-program/internal/common"
	"referral-program/internal/models"
	"referral-program/internal/repository"
)

func newUserService(db *gorm.DB) *UserService {
	return NewUserService(db, repository.NewRepository(db))
}

func TestGetProfileCountsReferrals(t *testing.T) {
	db := setupTestDB(t)
	service := newUserService(db)

	sponsor := createUser(t, db, "sponsor", models.PlanTier2, models.UserStatusActive, nil)
	createUser(t, db, "child1", models.PlanNone, models.UserStatusPending, &sponsor.ID)
	createUser(t, db, "child2", models.PlanNone, models.UserStatusPending, &sponsor.ID)

	profile, referrals, err := service.GetProfile(sponsor.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if profile.ID != sponsor.ID {
		t.Errorf("expected user %d, got %d", sponsor.ID, profile.ID)
	}
	if referrals != 2 {
		t.Errorf("expected 2 referrals, got %d", referrals)
	}

	if _, _, err := service.GetProfile(99999); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing account, got %v", err)
	}
}

func TestReconcileRepairsCachedFields(t *testing.T) {
	db := setupTestDB(t)
	service := newUserService(db)
	ctx := context.Background()

	user := createUser(t, db, "earner", models.PlanTier1, models.UserStatusActive, nil)

	// Earn through the real ledger helpers so entries and caches agree
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := creditDirect(tx, user.ID, decimal.NewFromInt(16), "seed-direct"); err != nil {
			return err
		}
		if err := creditPassive(tx, user.ID, decimal.NewFromInt(4), "seed-passive"); err != nil {
			return err
		}
		ok, err := debitWithdrawal(tx, user.ID, decimal.NewFromInt(2), "seed-payout")
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("seed withdrawal unexpectedly refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to seed ledger: %v", err)
	}

	// Corrupt every cached field
	err = db.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"balance":        decimal.NewFromInt(999),
			"direct_income":  decimal.NewFromInt(999),
			"passive_income": decimal.NewFromInt(999),
		}).Error
	if err != nil {
		t.Fatalf("failed to corrupt caches: %v", err)
	}

	repaired, err := service.Reconcile(ctx, user.ID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !repaired.DirectIncome.Equal(decimal.NewFromInt(16)) {
		t.Errorf("expected direct income 16, got %s", repaired.DirectIncome)
	}
	if !repaired.PassiveIncome.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected passive income 2, got %s", repaired.PassiveIncome)
	}
	if !repaired.Balance.Equal(decimal.NewFromInt(18)) {
		t.Errorf("expected balance 18, got %s", repaired.Balance)
	}

	// The stored row matches what was returned
	user = reloadUser(t, db, user.ID)
	if !user.Balance.Equal(decimal.NewFromInt(18)) {
		t.Errorf("expected stored balance 18, got %s", user.Balance)
	}
	if !user.Balance.Equal(signedLedgerTotal(t, db, user.ID)) {
		t.Error("reconciled balance does not match ledger")
	}

	if _, err := service.Reconcile(ctx, 99999); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing account, got %v", err)
	}
}

func TestDeleteUserDetachesDownline(t *testing.T) {
	db := setupTestDB(t)
	service := newUserService(db)

	sponsor := createUser(t, db, "sponsor", models.PlanTier2, models.UserStatusActive, nil)
	child := createUser(t, db, "child", models.PlanTier1, models.UserStatusActive, &sponsor.ID)

	// The sponsor owns a ledger entry, a stat row and a withdrawal; the
	// child's activation names the sponsor
	err := db.Transaction(func(tx *gorm.DB) error {
		return creditDirect(tx, sponsor.ID, decimal.NewFromInt(16), "seed")
	})
	if err != nil {
		t.Fatalf("failed to seed ledger: %v", err)
	}
	stat := models.LeaderboardStat{
		Period:     models.PeriodDaily,
		UserID:     sponsor.ID,
		AnchorDate: yesterdayNoon().Truncate(24 * time.Hour),
		Total:      decimal.NewFromInt(16),
	}
	if err := db.Create(&stat).Error; err != nil {
		t.Fatalf("failed to seed stat: %v", err)
	}
	withdrawal := models.WithdrawalRequest{
		UserID:        sponsor.ID,
		BankName:      "First Bank",
		AccountName:   "Sponsor",
		AccountNumber: "0011223344",
		Amount:        decimal.NewFromInt(30),
		Reference:     "WD-TEST",
		Status:        models.WithdrawalStatusPending,
	}
	if err := db.Create(&withdrawal).Error; err != nil {
		t.Fatalf("failed to seed withdrawal: %v", err)
	}
	activation := models.ActivationRequest{
		UserID:    child.ID,
		SponsorID: &sponsor.ID,
		Plan:      models.PlanTier1,
		ProofRef:  "proof-1",
		Status:    models.RequestStatusApproved,
	}
	if err := db.Create(&activation).Error; err != nil {
		t.Fatalf("failed to seed activation: %v", err)
	}

	if err := service.DeleteUser(sponsor.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	// 1. The account is gone
	if _, _, err := service.GetProfile(sponsor.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// 2. The child survives with no upline
	child = reloadUser(t, db, child.ID)
	if child.ReferrerID != nil {
		t.Errorf("expected child detached, still referred by %d", *child.ReferrerID)
	}

	// 3. Everything the sponsor owned went with them
	var ledgerCount, statCount, withdrawalCount int64
	db.Model(&models.LedgerEntry{}).Where("user_id = ?", sponsor.ID).Count(&ledgerCount)
	db.Model(&models.LeaderboardStat{}).Where("user_id = ?", sponsor.ID).Count(&statCount)
	db.Model(&models.WithdrawalRequest{}).Where("user_id = ?", sponsor.ID).Count(&withdrawalCount)
	if ledgerCount != 0 || statCount != 0 || withdrawalCount != 0 {
		t.Errorf("expected owned rows deleted, got ledger=%d stats=%d withdrawals=%d",
			ledgerCount, statCount, withdrawalCount)
	}

	// 4. Requests that named the sponsor keep their history, unsponsored
	var check models.ActivationRequest
	if err := db.Where("id = ?", activation.ID).First(&check).Error; err != nil {
		t.Fatalf("failed to reload activation: %v", err)
	}
	if check.SponsorID != nil {
		t.Errorf("expected sponsor reference cleared, got %v", *check.SponsorID)
	}

	if err := service.DeleteUser(99999); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing account, got %v", err)
	}
}

func TestGetLedgerPaginates(t *testing.T) {
	db := setupTestDB(t)
	service := newUserService(db)
	ctx := context.Background()

	user := createUser(t, db, "earner", models.PlanTier1, models.UserStatusActive, nil)
	for i := 0; i < 5; i++ {
		seedLedgerEntry(t, db, user.ID, models.EntryDirect, int64(i+1),
			yesterdayNoon().Add(time.Duration(i)*time.Minute))
	}

	entries, total, err := service.GetLedger(ctx, user.ID, 2, 0)
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	// Newest first: the amount 5 entry was seeded last
	if !entries[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected newest entry first (amount 5), got %s", entries[0].Amount)
	}

	// The last page holds the remainder
	entries, _, err = service.GetLedger(ctx, user.ID, 2, 4)
	if err != nil {
		t.Fatalf("GetLedger last page failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry on last page, got %d", len(entries))
	}
}
