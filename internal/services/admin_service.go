// internal/services/admin_service.go
package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type AdminService struct {
	db *gorm.DB
}

type AdminDashboardStats struct {
	UsersByRole          map[string]int64 `json:"users_by_role"`
	Institutes           int64            `json:"institutes"`
	Internships          int64            `json:"internships"`
	OpenInternships      int64            `json:"open_internships"`
	ApplicationsByStatus map[string]int64 `json:"applications_by_status"`
	CreditsByStatus      map[string]int64 `json:"credits_by_status"`
	CreditsIssued        float64          `json:"credits_issued"`
	FlaggedCredits       int64            `json:"flagged_credits"`
	PushedCredits        int64            `json:"pushed_credits"`
	NewApplicationsMonth int64            `json:"new_applications_this_month"`
}

type groupCount struct {
	Key   string
	Count int64
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats() (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{
		UsersByRole:          map[string]int64{},
		ApplicationsByStatus: map[string]int64{},
		CreditsByStatus:      map[string]int64{},
	}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	for _, role := range workflow.Roles() {
		stats.UsersByRole[string(role)] = 0
	}
	for _, st := range workflow.Statuses() {
		stats.ApplicationsByStatus[string(st)] = 0
	}

	var groups []groupCount
	if err := s.db.Model(&models.User{}).Select("role AS key, COUNT(*) AS count").Group("role").Scan(&groups).Error; err != nil {
		return nil, internalError("failed to count users", err)
	}
	for _, g := range groups {
		stats.UsersByRole[g.Key] = g.Count
	}

	groups = nil
	if err := s.db.Model(&models.Application{}).Select("status AS key, COUNT(*) AS count").Group("status").Scan(&groups).Error; err != nil {
		return nil, internalError("failed to count applications", err)
	}
	for _, g := range groups {
		stats.ApplicationsByStatus[g.Key] = g.Count
	}

	groups = nil
	if err := s.db.Model(&models.CreditRecord{}).Select("status AS key, COUNT(*) AS count").Group("status").Scan(&groups).Error; err != nil {
		return nil, internalError("failed to count credit records", err)
	}
	for _, g := range groups {
		stats.CreditsByStatus[g.Key] = g.Count
	}

	s.db.Model(&models.Institute{}).Count(&stats.Institutes)
	s.db.Model(&models.Internship{}).Count(&stats.Internships)
	s.db.Model(&models.Internship{}).Where("is_open = ?", true).Count(&stats.OpenInternships)
	s.db.Model(&models.CreditRecord{}).Where("is_flagged = ?", true).Count(&stats.FlaggedCredits)
	s.db.Model(&models.CreditRecord{}).Where("is_pushed_to_external_registry = ?", true).Count(&stats.PushedCredits)
	s.db.Model(&models.Application{}).Where("created_at >= ?", monthStart).Count(&stats.NewApplicationsMonth)

	if err := s.db.Model(&models.CreditRecord{}).
		Where("status = ?", models.CreditStatusApproved).
		Select("COALESCE(SUM(credits_calculated), 0)").
		Scan(&stats.CreditsIssued).Error; err != nil {
		return nil, internalError("failed to sum credits", err)
	}

	return stats, nil
}
