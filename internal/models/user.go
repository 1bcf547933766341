package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

type UserStatus string

const (
	UserStatusPending UserStatus = "PENDING"
	UserStatusActive  UserStatus = "ACTIVE"
)

// User represents an account in the referral program. Balance, DirectIncome
// and PassiveIncome are cached projections of the account's ledger entries;
// only the commission and withdrawal engines mutate them, always in the same
// transaction as the ledger append.
type User struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Email         string          `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash  string          `gorm:"size:255;not null" json:"-"`
	Role          UserRole        `gorm:"size:20;not null;default:USER" json:"role"`
	ReferralCode  string          `gorm:"uniqueIndex;size:20;not null" json:"referral_code"`
	ReferrerID    *uint           `gorm:"index" json:"referrer_id,omitempty"`
	Referrer      *User           `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	Status        UserStatus      `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	Plan          Plan            `gorm:"size:20;not null;default:NONE" json:"plan"`
	Balance       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"balance"`
	DirectIncome  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"direct_income"`
	PassiveIncome decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"passive_income"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the account carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
