package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Period string

const (
	PeriodDaily   Period = "DAILY"
	PeriodWeekly  Period = "WEEKLY"
	PeriodMonthly Period = "MONTHLY"
)

// Valid reports whether the period is one of the supported window sizes.
func (p Period) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}

// LeaderboardStat is one user's signed earnings total for one window of one
// period. AnchorDate identifies the window (its UTC start); the aggregator
// owns these rows entirely and may rewrite them on every run.
type LeaderboardStat struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Period     Period          `gorm:"size:10;not null;uniqueIndex:idx_stats_period_user_anchor" json:"period"`
	UserID     uint            `gorm:"not null;uniqueIndex:idx_stats_period_user_anchor" json:"user_id"`
	User       *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AnchorDate time.Time       `gorm:"not null;uniqueIndex:idx_stats_period_user_anchor;index" json:"anchor_date"`
	Total      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName specifies the table name for LeaderboardStat model
func (LeaderboardStat) TableName() string {
	return "leaderboard_stats"
}

// JobWatermark records how far a background job has read the ledger. The
// incremental aggregator only advances it in the same transaction as the
// folded stats, so a failed run reprocesses the same entries.
type JobWatermark struct {
	JobName         string    `gorm:"primaryKey;size:64" json:"job_name"`
	LastProcessedAt time.Time `gorm:"not null" json:"last_processed_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for JobWatermark model
func (JobWatermark) TableName() string {
	return "job_watermarks"
}
