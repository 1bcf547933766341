package services

import (
	"referral-program/internal/config"
	"referral-program/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdminService serves the read-side reporting behind the admin dashboard
type AdminService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAdminService(db *gorm.DB, cfg *config.Config) *AdminService {
	return &AdminService{
		db:  db,
		cfg: cfg,
	}
}

// DashboardStats carries the admin dashboard counters
type DashboardStats struct {
	TotalUsers         int64           `json:"total_users"`
	ActiveUsers        int64           `json:"active_users"`
	PendingActivations int64           `json:"pending_activations"`
	PendingUpgrades    int64           `json:"pending_upgrades"`
	PendingWithdrawals int64           `json:"pending_withdrawals"`
	LedgerEntries      int64           `json:"ledger_entries"`
	TotalPaidOut       decimal.Decimal `json:"total_paid_out"`
}

// PlanRevenue is one tier's line in the revenue report. Revenue uses the
// gross plan price, never the commission amounts.
type PlanRevenue struct {
	Plan        models.Plan     `json:"plan"`
	Activations int64           `json:"activations"`
	Upgrades    int64           `json:"upgrades"`
	GrossPrice  decimal.Decimal `json:"gross_price"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// GetDashboardStats counts the things an admin acts on
func (s *AdminService) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{TotalPaidOut: decimal.Zero}

	if err := s.db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.User{}).
		Where("status = ?", models.UserStatusActive).
		Count(&stats.ActiveUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.ActivationRequest{}).
		Where("status = ?", models.RequestStatusPending).
		Count(&stats.PendingActivations).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.UpgradeRequest{}).
		Where("status IN ?", []models.RequestStatus{
			models.RequestStatusPending,
			models.RequestStatusSponsorApproved,
		}).
		Count(&stats.PendingUpgrades).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.WithdrawalRequest{}).
		Where("status = ?", models.WithdrawalStatusPending).
		Count(&stats.PendingWithdrawals).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.LedgerEntry{}).Count(&stats.LedgerEntries).Error; err != nil {
		return nil, err
	}

	var paidOut decimal.NullDecimal
	err := s.db.Model(&models.WithdrawalRequest{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ?", models.WithdrawalStatusApproved).
		Scan(&paidOut).Error
	if err != nil {
		return nil, err
	}
	if paidOut.Valid {
		stats.TotalPaidOut = paidOut.Decimal
	}

	return stats, nil
}

// GetRevenueReport tallies approved activations and upgrades per tier at the
// gross plan price
func (s *AdminService) GetRevenueReport() ([]PlanRevenue, decimal.Decimal, error) {
	plans := []models.Plan{models.PlanTier1, models.PlanTier2, models.PlanTier3}

	report := make([]PlanRevenue, 0, len(plans))
	total := decimal.Zero

	for _, plan := range plans {
		pricing, ok := s.cfg.PricingFor(string(plan))
		if !ok {
			continue
		}

		var activations int64
		err := s.db.Model(&models.ActivationRequest{}).
			Where("plan = ? AND status = ?", plan, models.RequestStatusApproved).
			Count(&activations).Error
		if err != nil {
			return nil, decimal.Zero, err
		}

		var upgrades int64
		err = s.db.Model(&models.UpgradeRequest{}).
			Where("plan = ? AND status = ?", plan, models.RequestStatusApproved).
			Count(&upgrades).Error
		if err != nil {
			return nil, decimal.Zero, err
		}

		revenue := pricing.Price.Mul(decimal.NewFromInt(activations + upgrades))
		total = total.Add(revenue)

		report = append(report, PlanRevenue{
			Plan:        plan,
			Activations: activations,
			Upgrades:    upgrades,
			GrossPrice:  pricing.Price,
			Revenue:     revenue,
		})
	}

	return report, total, nil
}

// GetAllUsers returns users for the admin list, optionally filtered by a
// name or email search
func (s *AdminService) GetAllUsers(limit, offset int, search string) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{})

	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}
