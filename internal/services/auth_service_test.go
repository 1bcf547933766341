package services

import (
	"errors"
	"testing"

	"referral-program/internal/common"
	"referral-program/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(db)

	// 1. First account signs up without a code
	referrer, err := service.Register("Referrer", "referrer@test.local", "secret123", "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if referrer.Status != models.UserStatusPending {
		t.Errorf("expected status PENDING, got %s", referrer.Status)
	}
	if referrer.Plan != models.PlanNone {
		t.Errorf("expected no plan, got %s", referrer.Plan)
	}
	if referrer.Role != models.RoleUser {
		t.Errorf("expected role USER, got %s", referrer.Role)
	}
	if len(referrer.ReferralCode) != 10 {
		t.Errorf("expected 10-char referral code, got %q", referrer.ReferralCode)
	}
	if referrer.ReferrerID != nil {
		t.Error("expected no referrer on first account")
	}

	// 2. A valid code attaches the new account under its owner
	joined, err := service.Register("Joined", "joined@test.local", "secret123", referrer.ReferralCode)
	if err != nil {
		t.Fatalf("Register with code failed: %v", err)
	}
	if joined.ReferrerID == nil || *joined.ReferrerID != referrer.ID {
		t.Errorf("expected referrer %d, got %v", referrer.ID, joined.ReferrerID)
	}

	// 3. Unknown codes are rejected outright, not silently ignored
	_, err = service.Register("Lost", "lost@test.local", "secret123", "nosuchcode")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("unknown code: expected ErrNotFound, got %v", err)
	}

	// 4. Emails are unique
	_, err = service.Register("Copy", "referrer@test.local", "secret123", "")
	if !errors.Is(err, common.ErrConflict) {
		t.Errorf("duplicate email: expected ErrConflict, got %v", err)
	}

	// 5. Required fields
	_, err = service.Register("", "empty@test.local", "secret123", "")
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("missing name: expected ErrInvalidInput, got %v", err)
	}

	// 6. Login round-trips the stored hash
	logged, err := service.Login("referrer@test.local", "secret123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if logged.ID != referrer.ID {
		t.Errorf("expected user %d, got %d", referrer.ID, logged.ID)
	}

	// 7. Wrong password and unknown email fail the same way
	if _, err := service.Login("referrer@test.local", "wrong"); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("wrong password: expected ErrForbidden, got %v", err)
	}
	if _, err := service.Login("ghost@test.local", "secret123"); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("unknown email: expected ErrForbidden, got %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(db)

	if err := service.EnsureAdmin("admin@test.local", "adminpass"); err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}

	var admin models.User
	if err := db.Where("email = ?", "admin@test.local").First(&admin).Error; err != nil {
		t.Fatalf("failed to load admin: %v", err)
	}
	if admin.Role != models.RoleAdmin {
		t.Errorf("expected role ADMIN, got %s", admin.Role)
	}
	if admin.Status != models.UserStatusActive {
		t.Errorf("expected status ACTIVE, got %s", admin.Status)
	}
	if admin.Plan != models.PlanNone {
		t.Errorf("expected no plan, got %s", admin.Plan)
	}

	// Booting twice never duplicates the account
	if err := service.EnsureAdmin("admin@test.local", "adminpass"); err != nil {
		t.Fatalf("second EnsureAdmin failed: %v", err)
	}
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", "admin@test.local").Count(&count).Error; err != nil {
		t.Fatalf("failed to count admins: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 admin account, got %d", count)
	}

	// Without credentials configured the bootstrap is a no-op
	if err := service.EnsureAdmin("", ""); err != nil {
		t.Errorf("expected nil for unset credentials, got %v", err)
	}
}
