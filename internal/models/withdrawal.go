package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected WithdrawalStatus = "REJECTED"
)

// WithdrawalRequest asks to pay out part of the account's passive income to
// a bank account. At most one PENDING withdrawal exists per user; funds are
// only debited at approval time, after re-checking they are still there.
// Reference is the payout tracking number quoted to the bank and stamped on
// the ledger entry.
type WithdrawalRequest struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UserID        uint             `gorm:"index;not null" json:"user_id"`
	User          *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BankName      string           `gorm:"size:100;not null" json:"bank_name"`
	AccountName   string           `gorm:"size:255;not null" json:"account_name"`
	AccountNumber string           `gorm:"size:64;not null" json:"account_number"`
	Amount        decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"amount"`
	Reference     string           `gorm:"size:64;not null" json:"reference"`
	Status        WithdrawalStatus `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
}

// TableName specifies the table name for WithdrawalRequest model
func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}
