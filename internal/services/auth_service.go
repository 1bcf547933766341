package services

import (
	"fmt"

	"referral-program/internal/common"
	"referral-program/internal/models"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService handles signup, login and the admin bootstrap
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// Register creates a PENDING account with no plan, optionally attached under
// the referrer whose code was supplied
func (s *AuthService) Register(name, email, password, referralCode string) (*models.User, error) {
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("name, email and password are required: %w", common.ErrInvalidInput)
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("email %s is already registered: %w", email, common.ErrConflict)
	}

	var referrerID *uint
	if referralCode != "" {
		var referrer models.User
		if err := s.db.Where("referral_code = ?", referralCode).First(&referrer).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, fmt.Errorf("referral code %q: %w", referralCode, common.ErrNotFound)
			}
			return nil, err
		}
		referrerID = &referrer.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	code, err := s.uniqueReferralCode()
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		ReferralCode: code,
		ReferrerID:   referrerID,
		Status:       models.UserStatusPending,
		Plan:         models.PlanNone,
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if referrerID != nil {
		log.Printf("New user registered: %s (ID: %d) under referrer %d", email, user.ID, *referrerID)
	} else {
		log.Printf("New user registered: %s (ID: %d)", email, user.ID)
	}

	return &user, nil
}

// Login verifies credentials and returns the account
func (s *AuthService) Login(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("invalid credentials: %w", common.ErrForbidden)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", common.ErrForbidden)
	}

	log.Printf("User logged in: %s (ID: %d)", email, user.ID)
	return &user, nil
}

// GetUserByID retrieves a user by their ID
func (s *AuthService) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("account %d: %w", userID, common.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// EnsureAdmin bootstraps the admin account from the environment on startup.
// An existing account with the configured email is left untouched.
func (s *AuthService) EnsureAdmin(email, password string) error {
	if email == "" || password == "" {
		log.Println("Admin bootstrap skipped: ADMIN_EMAIL/ADMIN_PASSWORD not set")
		return nil
	}

	var existing models.User
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		log.Printf("Admin account already present: %s (ID: %d)", email, existing.ID)
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	code, err := s.uniqueReferralCode()
	if err != nil {
		return err
	}

	admin := models.User{
		Name:         "Admin",
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		ReferralCode: code,
		Status:       models.UserStatusActive,
		Plan:         models.PlanNone,
	}

	if err := s.db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Printf("Admin account created: %s (ID: %d)", email, admin.ID)
	return nil
}

// uniqueReferralCode allocates a fresh referral code, retrying on the rare
// collision
func (s *AuthService) uniqueReferralCode() (string, error) {
	for i := 0; i < 5; i++ {
		code := generateReferralCode()

		var count int64
		if err := s.db.Model(&models.User{}).Where("referral_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to allocate a referral code: %w", common.ErrInternal)
}

// generateReferralCode derives a short shareable code from a random UUID.
// Base58 keeps ambiguous characters (0, O, I, l) out of codes people type.
func generateReferralCode() string {
	id := uuid.New()
	return base58.Encode(id[:])[:10]
}
