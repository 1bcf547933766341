package models

import "time"

type RequestStatus string

const (
	RequestStatusPending         RequestStatus = "PENDING"
	RequestStatusSponsorApproved RequestStatus = "SPONSOR_APPROVED"
	RequestStatusApproved        RequestStatus = "APPROVED"
	RequestStatusRejected        RequestStatus = "REJECTED"
)

// ActivationRequest is a member's claim to have paid for a plan, waiting for
// an admin decision. At most one PENDING request exists per user; approval
// flips the user ACTIVE and pays commissions in the same transaction.
type ActivationRequest struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	UserID      uint          `gorm:"index;not null" json:"user_id"`
	User        *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SponsorID   *uint         `gorm:"index" json:"sponsor_id,omitempty"`
	Sponsor     *User         `gorm:"foreignKey:SponsorID" json:"sponsor,omitempty"`
	Plan        Plan          `gorm:"size:20;not null" json:"plan"`
	ProofRef    string        `gorm:"size:255" json:"proof_ref"`
	Status      RequestStatus `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

// TableName specifies the table name for ActivationRequest model
func (ActivationRequest) TableName() string {
	return "activation_requests"
}

// UpgradeRequest moves an ACTIVE member to a higher tier. It needs the
// sponsor's approval before the admin's; the sponsor may grant a discount,
// which keeps the upgrade's direct commission but suppresses the passive
// payout on final approval.
type UpgradeRequest struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	UserID            uint          `gorm:"index;not null" json:"user_id"`
	User              *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SponsorID         *uint         `gorm:"index" json:"sponsor_id,omitempty"`
	Sponsor           *User         `gorm:"foreignKey:SponsorID" json:"sponsor,omitempty"`
	Plan              Plan          `gorm:"size:20;not null" json:"plan"`
	ProofRef          string        `gorm:"size:255" json:"proof_ref"`
	Discounted        bool          `gorm:"not null;default:false" json:"discounted"`
	Status            RequestStatus `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	SponsorApprovedAt *time.Time    `json:"sponsor_approved_at,omitempty"`
	ProcessedAt       *time.Time    `json:"processed_at,omitempty"`
}

// TableName specifies the table name for UpgradeRequest model
func (UpgradeRequest) TableName() string {
	return "upgrade_requests"
}
