package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"referral-program/internal/common"
	"referral-program/internal/models"
)

// seedPassive pays a passive commission straight through the ledger helpers,
// so the cached fields and the ledger agree like they would in production
func seedPassive(t *testing.T, db *gorm.DB, userID uint, amount decimal.Decimal) {
	err := db.Transaction(func(tx *gorm.DB) error {
		return creditPassive(tx, userID, amount, "seed")
	})
	if err != nil {
		t.Fatalf("failed to seed passive income: %v", err)
	}
}

func TestCreateWithdrawalChecks(t *testing.T) {
	db := setupTestDB(t)
	service := NewWithdrawalService(db, testConfig())

	user := createUser(t, db, "earner", models.PlanTier1, models.UserStatusActive, nil)
	seedPassive(t, db, user.ID, decimal.NewFromInt(50))

	// 1. Bank details are mandatory
	_, err := service.CreateWithdrawal(user.ID, "", "Jane Doe", "0011223344", decimal.NewFromInt(40))
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("missing bank name: expected ErrInvalidInput, got %v", err)
	}

	// 2. Below the minimum
	_, err = service.CreateWithdrawal(user.ID, "First Bank", "Jane Doe", "0011223344", decimal.NewFromInt(20))
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("below minimum: expected ErrInvalidInput, got %v", err)
	}

	// 3. More than the passive income covers
	_, err = service.CreateWithdrawal(user.ID, "First Bank", "Jane Doe", "0011223344", decimal.NewFromInt(60))
	if !errors.Is(err, common.ErrInsufficientFunds) {
		t.Errorf("over passive income: expected ErrInsufficientFunds, got %v", err)
	}

	// 4. Valid request gets a payout reference
	request, err := service.CreateWithdrawal(user.ID, "First Bank", "Jane Doe", "0011223344", decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}
	if request.Status != models.WithdrawalStatusPending {
		t.Errorf("expected status PENDING, got %s", request.Status)
	}
	if request.Reference == "" {
		t.Error("expected a payout reference")
	}

	// 5. One pending withdrawal at a time
	_, err = service.CreateWithdrawal(user.ID, "First Bank", "Jane Doe", "0011223344", decimal.NewFromInt(30))
	if !errors.Is(err, common.ErrConflict) {
		t.Errorf("second pending: expected ErrConflict, got %v", err)
	}

	// Nothing was debited at creation time
	user = reloadUser(t, db, user.ID)
	if !user.PassiveIncome.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected passive income still 50, got %s", user.PassiveIncome)
	}
}

func TestApproveWithdrawalDebitsAccount(t *testing.T) {
	db := setupTestDB(t)
	service := NewWithdrawalService(db, testConfig())

	user := createUser(t, db, "earner", models.PlanTier1, models.UserStatusActive, nil)
	seedPassive(t, db, user.ID, decimal.NewFromInt(50))

	request, err := service.CreateWithdrawal(user.ID, "First Bank", "Jane Doe", "0011223344", decimal.NewFromInt(30))
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	approved, err := service.ApproveWithdrawal(request.ID)
	if err != nil {
		t.Fatalf("ApproveWithdrawal failed: %v", err)
	}
	if approved.Status != models.WithdrawalStatusApproved {
		t.Errorf("expected status APPROVED, got %s", approved.Status)
	}
	if approved.ProcessedAt == nil {
		t.Error("expected processed_at to be set")
	}

	user = reloadUser(t, db, user.ID)
	if !user.PassiveIncome.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected passive income 20, got %s", user.PassiveIncome)
	}
	if !user.Balance.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected balance 20, got %s", user.Balance)
	}
	if !user.Balance.Equal(signedLedgerTotal(t, db, user.ID)) {
		t.Error("balance does not match ledger")
	}

	// The ledger entry carries the request's payout reference
	var entry models.LedgerEntry
	err = db.Where("user_id = ? AND kind = ?", user.ID, models.EntryWithdrawal).First(&entry).Error
	if err != nil {
		t.Fatalf("failed to load withdrawal entry: %v", err)
	}
	if entry.Reference != request.Reference {
		t.Errorf("expected reference %q, got %q", request.Reference, entry.Reference)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected entry amount 30, got %s", entry.Amount)
	}

	// A second approval finds the request already processed
	_, err = service.ApproveWithdrawal(request.ID)
	if !errors.Is(err, common.ErrInvalidState) {
		t.Errorf("second approval: expected ErrInvalidState, got %v", err)
	}
}

func TestApproveWithdrawalAfterFundsDrained(t *testing.T) {
	db := setupTestDB(t)
	service := NewWithdrawalService(db, testConfig())

	user := createUser(t, db, "earner", models.PlanTier1, models.UserStatusActive, nil)
	seedPassive(t, db, user.ID, decimal.NewFromInt(50))

	request, err := service.CreateWithdrawal(user.ID, "First Bank", "Jane Doe", "0011223344", decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	// The passive income shrinks between creation and approval
	err = db.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"passive_income": decimal.NewFromInt(10),
			"balance":        decimal.NewFromInt(10),
		}).Error
	if err != nil {
		t.Fatalf("failed to drain account: %v", err)
	}

	_, err = service.ApproveWithdrawal(request.ID)
	if !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The rollback leaves the request pending for a later retry
	var check models.WithdrawalRequest
	if err := db.Where("id = ?", request.ID).First(&check).Error; err != nil {
		t.Fatalf("failed to reload request: %v", err)
	}
	if check.Status != models.WithdrawalStatusPending {
		t.Errorf("expected request still PENDING, got %s", check.Status)
	}

	// No debit happened
	user = reloadUser(t, db, user.ID)
	if !user.PassiveIncome.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected passive income 10, got %s", user.PassiveIncome)
	}
	if got := countEntries(t, db, user.ID, models.EntryWithdrawal); got != 0 {
		t.Errorf("expected no withdrawal entries, got %d", got)
	}
}

func TestConcurrentApprovalDebitsOnce(t *testing.T) {
	db := setupTestDB(t)
	service := NewWithdrawalService(db, testConfig())

	user := createUser(t, db, "earner", models.PlanTier1, models.UserStatusActive, nil)
	seedPassive(t, db, user.ID, decimal.NewFromInt(100))

	request, err := service.CreateWithdrawal(user.ID, "First Bank", "Jane Doe", "0011223344", decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.ApproveWithdrawal(request.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, common.ErrInvalidState) {
			t.Errorf("unexpected error from racing approval: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly 1 approval to succeed, got %d", succeeded)
	}

	user = reloadUser(t, db, user.ID)
	if !user.PassiveIncome.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected passive income 40 after single debit, got %s", user.PassiveIncome)
	}
	if got := countEntries(t, db, user.ID, models.EntryWithdrawal); got != 1 {
		t.Errorf("expected exactly 1 withdrawal entry, got %d", got)
	}
}

func TestRejectWithdrawalKeepsRow(t *testing.T) {
	db := setupTestDB(t)
	service := NewWithdrawalService(db, testConfig())

	user := createUser(t, db, "earner", models.PlanTier1, models.UserStatusActive, nil)
	seedPassive(t, db, user.ID, decimal.NewFromInt(50))

	request, err := service.CreateWithdrawal(user.ID, "First Bank", "Jane Doe", "0011223344", decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	rejected, err := service.RejectWithdrawal(request.ID)
	if err != nil {
		t.Fatalf("RejectWithdrawal failed: %v", err)
	}
	if rejected.Status != models.WithdrawalStatusRejected {
		t.Errorf("expected status REJECTED, got %s", rejected.Status)
	}
	if rejected.ProcessedAt == nil {
		t.Error("expected processed_at to be set")
	}

	// Unlike request rejections, the row stays for the audit trail
	var check models.WithdrawalRequest
	if err := db.Where("id = ?", request.ID).First(&check).Error; err != nil {
		t.Fatalf("expected rejected request kept, got %v", err)
	}

	// No balance effect, no ledger entry
	user = reloadUser(t, db, user.ID)
	if !user.PassiveIncome.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected passive income still 50, got %s", user.PassiveIncome)
	}
	if got := countEntries(t, db, user.ID, models.EntryWithdrawal); got != 0 {
		t.Errorf("expected no withdrawal entries, got %d", got)
	}

	// A rejected request no longer blocks a new one
	if _, err := service.CreateWithdrawal(user.ID, "First Bank", "Jane Doe", "0011223344", decimal.NewFromInt(30)); err != nil {
		t.Errorf("new request after reject failed: %v", err)
	}

	// Rejecting twice reports the terminal status
	if _, err := service.RejectWithdrawal(request.ID); !errors.Is(err, common.ErrInvalidState) {
		t.Errorf("second reject: expected ErrInvalidState, got %v", err)
	}
}
