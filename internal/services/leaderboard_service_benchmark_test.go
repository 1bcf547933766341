package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"referral-program/internal/models"
	"referral-program/internal/repository"
)

func setupBenchmarkDB(b *testing.B) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		b.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ActivationRequest{},
		&models.UpgradeRequest{},
		&models.WithdrawalRequest{},
		&models.LedgerEntry{},
		&models.LeaderboardStat{},
		&models.JobWatermark{},
	)
	if err != nil {
		b.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// seedBenchmarkLedger fills yesterday's window with commission entries spread
// over the given number of accounts
func seedBenchmarkLedger(db *gorm.DB, userCount, entryCount int) {
	users := make([]models.User, userCount)
	for i := 0; i < userCount; i++ {
		users[i] = models.User{
			Name:         fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@bench.local", i),
			PasswordHash: "hash",
			Role:         models.RoleUser,
			ReferralCode: fmt.Sprintf("bench-%d", i),
			Status:       models.UserStatusActive,
			Plan:         models.PlanTier1,
		}
	}
	db.CreateInBatches(users, 100)

	base := time.Now().UTC().Truncate(24 * time.Hour).Add(-12 * time.Hour)
	entries := make([]models.LedgerEntry, entryCount)
	for i := 0; i < entryCount; i++ {
		entries[i] = models.LedgerEntry{
			UserID:    users[i%userCount].ID,
			Kind:      models.EntryDirect,
			Amount:    decimal.NewFromInt(16),
			Reference: "bench",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	db.CreateInBatches(entries, 100)
}

// BenchmarkRunFullRecompute measures a whole snapshot rebuild across all
// three periods
func BenchmarkRunFullRecompute(b *testing.B) {
	counts := []int{10, 100, 1000}

	for _, count := range counts {
		b.Run(fmt.Sprintf("Count-%d", count), func(b *testing.B) {
			db := setupBenchmarkDB(b)
			service := NewLeaderboardService(db, repository.NewRepository(db), testConfig())
			ctx := context.Background()

			seedBenchmarkLedger(db, 20, count)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				err := service.RunFullRecompute(ctx)
				if err != nil {
					b.Fatalf("RunFullRecompute failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkWindowTotals measures the aggregation query on its own
func BenchmarkWindowTotals(b *testing.B) {
	counts := []int{10, 100, 1000}

	for _, count := range counts {
		b.Run(fmt.Sprintf("Count-%d", count), func(b *testing.B) {
			db := setupBenchmarkDB(b)
			repo := repository.NewRepository(db)
			ctx := context.Background()

			seedBenchmarkLedger(db, 20, count)

			to := time.Now().UTC().Truncate(24 * time.Hour)
			from := to.AddDate(0, 0, -1)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := repo.WindowTotals(ctx, from, to)
				if err != nil {
					b.Fatalf("WindowTotals failed: %v", err)
				}
			}
		})
	}
}
