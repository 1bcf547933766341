package services

import (
	"context"
	"fmt"
	"time"

	"referral-program/internal/common"
	"referral-program/internal/config"
	"referral-program/internal/models"
	"referral-program/internal/repository"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	incrementalJobName   = "leaderboard_incremental"
	incrementalBatchSize = 1000
)

var allPeriods = []models.Period{
	models.PeriodDaily,
	models.PeriodWeekly,
	models.PeriodMonthly,
}

// LeaderboardService aggregates the ledger into per-period snapshots and
// serves the ranked read path. Two strategies exist: a daily full recompute
// over trailing completed windows, and a watermark-guarded incremental fold.
// Exactly one runs per deployment; the scheduler picks by configuration.
type LeaderboardService struct {
	db   *gorm.DB
	repo *repository.Repository
	cfg  *config.Config
}

func NewLeaderboardService(db *gorm.DB, repo *repository.Repository, cfg *config.Config) *LeaderboardService {
	return &LeaderboardService{
		db:   db,
		repo: repo,
		cfg:  cfg,
	}
}

// LeaderboardEntry is one ranked row served to clients, enriched with the
// account's live referral count
type LeaderboardEntry struct {
	Rank          int             `json:"rank"`
	UserID        uint            `json:"user_id"`
	Name          string          `json:"name"`
	ReferralCode  string          `json:"referral_code"`
	Total         decimal.Decimal `json:"total"`
	ReferralCount int64           `json:"referral_count"`
}

// ============================================================================
// AGGREGATION
// ============================================================================

// fullWindow returns the completed trailing window for a period, ending at
// the current UTC midnight. The window start doubles as the snapshot anchor.
func (s *LeaderboardService) fullWindow(period models.Period, now time.Time) (time.Time, time.Time) {
	end := now.UTC().Truncate(24 * time.Hour)

	switch period {
	case models.PeriodWeekly:
		return end.AddDate(0, 0, -s.cfg.Aggregator.WeeklyWindowDays), end
	case models.PeriodMonthly:
		return end.AddDate(0, 0, -s.cfg.Aggregator.MonthlyWindowDays), end
	default:
		return end.AddDate(0, 0, -1), end
	}
}

// bucketAnchor maps an entry timestamp to the calendar window it belongs to:
// its UTC day, its ISO week (Monday start), or its month
func bucketAnchor(period models.Period, t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case models.PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// RunFullRecompute aggregates each period's trailing window from the ledger
// and swaps the snapshot set in one transaction per period. Re-running over
// the same completed window lands on identical totals.
func (s *LeaderboardService) RunFullRecompute(ctx context.Context) error {
	now := time.Now()

	for _, period := range allPeriods {
		from, to := s.fullWindow(period, now)

		totals, err := s.repo.WindowTotals(ctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to aggregate %s window: %w", period, err)
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.repo.ReplacePeriodStats(tx, period, from, totals)
		})
		if err != nil {
			return fmt.Errorf("failed to store %s snapshot: %w", period, err)
		}

		log.Printf("[LeaderboardJob] %s window %s..%s recomputed: %d accounts",
			period, from.Format("2006-01-02"), to.Format("2006-01-02"), len(totals))
	}

	return s.Prune(ctx)
}

// RunIncremental folds ledger entries created after the watermark into the
// calendar buckets of their own timestamps. Each batch and its watermark
// advance commit together, so a failed run reprocesses the same entries and
// never skips any.
func (s *LeaderboardService) RunIncremental(ctx context.Context) error {
	wm, err := s.repo.GetWatermark(ctx, incrementalJobName)
	if err != nil {
		return fmt.Errorf("failed to load watermark: %w", err)
	}

	processed := 0
	cursor := wm.LastProcessedAt

	for {
		entries, err := s.repo.EntriesAfter(ctx, cursor, incrementalBatchSize)
		if err != nil {
			return fmt.Errorf("failed to read ledger after %s: %w", cursor, err)
		}
		if len(entries) == 0 {
			break
		}

		last := entries[len(entries)-1].CreatedAt

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, entry := range entries {
				delta := entry.SignedAmount()
				for _, period := range allPeriods {
					anchor := bucketAnchor(period, entry.CreatedAt)
					if err := s.repo.IncrementStat(tx, period, entry.UserID, anchor, delta); err != nil {
						return fmt.Errorf("failed to fold entry %d: %w", entry.ID, err)
					}
				}
			}
			return s.repo.AdvanceWatermark(tx, incrementalJobName, last)
		})
		if err != nil {
			return err
		}

		processed += len(entries)
		cursor = last

		if len(entries) < incrementalBatchSize {
			break
		}
	}

	if processed > 0 {
		log.Printf("[LeaderboardJob] folded %d ledger entries, watermark now %s",
			processed, cursor.Format(time.RFC3339))
	}

	return s.Prune(ctx)
}

// Prune drops snapshot windows beyond each period's retention horizon
func (s *LeaderboardService) Prune(ctx context.Context) error {
	retention := map[models.Period]int{
		models.PeriodDaily:   s.cfg.Aggregator.RetentionDaily,
		models.PeriodWeekly:  s.cfg.Aggregator.RetentionWeekly,
		models.PeriodMonthly: s.cfg.Aggregator.RetentionMonthly,
	}

	for _, period := range allPeriods {
		removed, err := s.repo.PruneStats(ctx, period, retention[period])
		if err != nil {
			return fmt.Errorf("failed to prune %s snapshots: %w", period, err)
		}
		if removed > 0 {
			log.Printf("[LeaderboardJob] pruned %d %s snapshot rows", removed, period)
		}
	}

	return nil
}

// ============================================================================
// READ PATH
// ============================================================================

// TopN serves the latest snapshot of a period: top n accounts by total,
// enriched with live referral counts
func (s *LeaderboardService) TopN(ctx context.Context, period models.Period, n int) ([]LeaderboardEntry, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("period %q: %w", period, common.ErrInvalidInput)
	}

	anchor, ok, err := s.repo.LatestAnchor(ctx, period)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []LeaderboardEntry{}, nil
	}

	stats, err := s.repo.TopStats(ctx, period, anchor, n)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(stats))
	for _, stat := range stats {
		ids = append(ids, stat.UserID)
	}

	counts, err := s.repo.CountReferralsIn(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(stats))
	for i, stat := range stats {
		entry := LeaderboardEntry{
			Rank:          i + 1,
			UserID:        stat.UserID,
			Total:         stat.Total,
			ReferralCount: counts[stat.UserID],
		}
		if stat.User != nil {
			entry.Name = stat.User.Name
			entry.ReferralCode = stat.User.ReferralCode
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// AllTime bypasses snapshots and ranks accounts by current balance
func (s *LeaderboardService) AllTime(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	users, err := s.repo.TopBalances(ctx, n)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}

	counts, err := s.repo.CountReferralsIn(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, user := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:          i + 1,
			UserID:        user.ID,
			Name:          user.Name,
			ReferralCode:  user.ReferralCode,
			Total:         user.Balance,
			ReferralCount: counts[user.ID],
		})
	}

	return entries, nil
}
