package repository

import (
	"context"
	"time"

	"referral-program/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserTotal is one user's signed earnings total over a ledger window
type UserTotal struct {
	UserID uint
	Total  decimal.Decimal
}

// WindowTotals sums signed ledger amounts per user over [from, to).
// Withdrawals count negative, commissions positive.
func (r *Repository) WindowTotals(ctx context.Context, from, to time.Time) ([]UserTotal, error) {
	var totals []UserTotal
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("user_id, COALESCE(SUM(CASE WHEN kind = ? THEN -amount ELSE amount END), 0) AS total",
			models.EntryWithdrawal).
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("user_id").
		Scan(&totals).Error

	if err != nil {
		return nil, err
	}

	return totals, nil
}

// SignedSum returns the signed ledger total for one user across all time
func (r *Repository) SignedSum(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(CASE WHEN kind = ? THEN -amount ELSE amount END), 0)",
			models.EntryWithdrawal).
		Where("user_id = ?", userID).
		Scan(&total).Error

	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}

	return total.Decimal, nil
}

// KindSum returns the plain (unsigned) total of one entry kind for one user
func (r *Repository) KindSum(ctx context.Context, userID uint, kind models.EntryKind) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND kind = ?", userID, kind).
		Scan(&total).Error

	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}

	return total.Decimal, nil
}

// EntriesAfter returns ledger entries created strictly after the watermark,
// oldest first, capped at limit
func (r *Repository) EntriesAfter(ctx context.Context, after time.Time, limit int) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("created_at > ?", after).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&entries).Error

	if err != nil {
		return nil, err
	}

	return entries, nil
}

// GetUserEntries retrieves a user's ledger history with total count
func (r *Repository) GetUserEntries(ctx context.Context, userID uint, limit, offset int) ([]*models.LedgerEntry, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var entries []*models.LedgerEntry
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// ============================================================================
// Leaderboard Stats
// ============================================================================

// ReplacePeriodStats swaps out all stats rows for one window inside the
// caller's transaction: delete then insert, so a re-run lands on the same
// totals instead of doubling them.
func (r *Repository) ReplacePeriodStats(tx *gorm.DB, period models.Period, anchor time.Time, totals []UserTotal) error {
	err := tx.Where("period = ? AND anchor_date = ?", period, anchor).
		Delete(&models.LeaderboardStat{}).Error
	if err != nil {
		return err
	}

	if len(totals) == 0 {
		return nil
	}

	stats := make([]models.LeaderboardStat, 0, len(totals))
	for _, t := range totals {
		stats = append(stats, models.LeaderboardStat{
			Period:     period,
			UserID:     t.UserID,
			AnchorDate: anchor,
			Total:      t.Total,
		})
	}

	return tx.Create(&stats).Error
}

// IncrementStat folds a signed delta into one stat row inside the caller's
// transaction, creating the row on first touch
func (r *Repository) IncrementStat(tx *gorm.DB, period models.Period, userID uint, anchor time.Time, delta decimal.Decimal) error {
	var stat models.LeaderboardStat
	err := tx.Where("period = ? AND user_id = ? AND anchor_date = ?", period, userID, anchor).
		First(&stat).Error

	if err == gorm.ErrRecordNotFound {
		stat = models.LeaderboardStat{
			Period:     period,
			UserID:     userID,
			AnchorDate: anchor,
			Total:      delta,
		}
		return tx.Create(&stat).Error
	}

	if err != nil {
		return err
	}

	return tx.Model(&models.LeaderboardStat{}).
		Where("id = ?", stat.ID).
		Update("total", gorm.Expr("total + ?", delta)).Error
}

// Anchors returns the distinct window anchors stored for a period, newest first
func (r *Repository) Anchors(ctx context.Context, period models.Period) ([]time.Time, error) {
	var anchors []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.LeaderboardStat{}).
		Where("period = ?", period).
		Distinct().
		Order("anchor_date DESC").
		Pluck("anchor_date", &anchors).Error

	if err != nil {
		return nil, err
	}

	return anchors, nil
}

// LatestAnchor returns the newest window anchor stored for a period.
// The second return is false when the period has no stats yet.
func (r *Repository) LatestAnchor(ctx context.Context, period models.Period) (time.Time, bool, error) {
	var stat models.LeaderboardStat
	err := r.db.WithContext(ctx).
		Where("period = ?", period).
		Order("anchor_date DESC").
		First(&stat).Error

	if err == gorm.ErrRecordNotFound {
		return time.Time{}, false, nil
	}

	if err != nil {
		return time.Time{}, false, err
	}

	return stat.AnchorDate, true, nil
}

// TopStats returns the highest totals for one window, user preloaded
func (r *Repository) TopStats(ctx context.Context, period models.Period, anchor time.Time, limit int) ([]*models.LeaderboardStat, error) {
	var stats []*models.LeaderboardStat
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("period = ? AND anchor_date = ?", period, anchor).
		Order("total DESC, user_id ASC").
		Limit(limit).
		Find(&stats).Error

	if err != nil {
		return nil, err
	}

	return stats, nil
}

// PruneStats deletes whole windows beyond the newest keep anchors for a
// period and reports how many rows went
func (r *Repository) PruneStats(ctx context.Context, period models.Period, keep int) (int64, error) {
	anchors, err := r.Anchors(ctx, period)
	if err != nil {
		return 0, err
	}

	if keep < 1 || len(anchors) <= keep {
		return 0, nil
	}

	// anchors is newest first; everything older than the last kept anchor goes
	cutoff := anchors[keep-1]
	res := r.db.WithContext(ctx).
		Where("period = ? AND anchor_date < ?", period, cutoff).
		Delete(&models.LeaderboardStat{})

	return res.RowsAffected, res.Error
}

// ============================================================================
// Watermarks
// ============================================================================

// GetWatermark returns the stored watermark for a job, creating an epoch
// entry on first use so the first incremental run scans the whole ledger
func (r *Repository) GetWatermark(ctx context.Context, jobName string) (*models.JobWatermark, error) {
	var wm models.JobWatermark
	err := r.db.WithContext(ctx).Where("job_name = ?", jobName).First(&wm).Error

	if err == gorm.ErrRecordNotFound {
		wm = models.JobWatermark{
			JobName:         jobName,
			LastProcessedAt: time.Unix(0, 0).UTC(),
		}

		if err := r.db.WithContext(ctx).Create(&wm).Error; err != nil {
			return nil, err
		}

		return &wm, nil
	}

	if err != nil {
		return nil, err
	}

	return &wm, nil
}

// AdvanceWatermark moves a job's watermark forward inside the caller's
// transaction so a failed batch never advances it
func (r *Repository) AdvanceWatermark(tx *gorm.DB, jobName string, to time.Time) error {
	return tx.Model(&models.JobWatermark{}).
		Where("job_name = ?", jobName).
		Update("last_processed_at", to).Error
}

// ============================================================================
// Users
// ============================================================================

// CountReferralsIn counts direct referrals for each of the given users
func (r *Repository) CountReferralsIn(ctx context.Context, userIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ReferrerID uint
		N          int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("referrer_id, COUNT(*) AS n").
		Where("referrer_id IN ?", userIDs).
		Group("referrer_id").
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.ReferrerID] = row.N
	}

	return counts, nil
}

// TopBalances returns users ranked by cached balance for the all-time board
func (r *Repository) TopBalances(ctx context.Context, limit int) ([]*models.User, error) {
	var users []*models.User
	err := r.db.WithContext(ctx).
		Order("balance DESC, id ASC").
		Limit(limit).
		Find(&users).Error

	if err != nil {
		return nil, err
	}

	return users, nil
}
