package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	EntryDirect     EntryKind = "DIRECT"
	EntryPassive    EntryKind = "PASSIVE"
	EntryWithdrawal EntryKind = "WITHDRAWAL"
)

// LedgerEntry is one immutable money movement on an account. Entries are
// append-only: nothing updates or deletes them, and every cached balance on
// users must equal the signed sum of that user's entries.
type LedgerEntry struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"index;not null" json:"user_id"`
	User      *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Kind      EntryKind       `gorm:"size:20;not null;index" json:"kind"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Reference string          `gorm:"size:64;not null" json:"reference"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for LedgerEntry model
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// SignedAmount returns the entry's contribution to the account balance:
// withdrawals subtract, everything else adds. Amount itself is stored
// positive for all kinds.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Kind == EntryWithdrawal {
		return e.Amount.Neg()
	}
	return e.Amount
}
