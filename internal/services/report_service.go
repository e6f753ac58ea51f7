// internal/services/report_service.go
package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

// UnknownBucket groups rows whose policy or institute is missing.
const UnknownBucket = "unknown"

type ReportService struct {
	db *gorm.DB
}

type ReportFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Policy    *credits.Policy
}

// ReportRow is the projection of a credit record the aggregation needs.
type ReportRow struct {
	Status        models.CreditStatus
	Policy        string
	Credits       float64
	InstituteName string
	CreatedAt     time.Time
}

type PolicyTotal struct {
	Policy          string  `json:"policy"`
	Records         int     `json:"records"`
	ApprovedCredits float64 `json:"approved_credits"`
}

type MonthBucket struct {
	Month           string  `json:"month"` // YYYY-MM
	Records         int     `json:"records"`
	ApprovedCredits float64 `json:"approved_credits"`
}

type InstituteTotal struct {
	Institute       string  `json:"institute"`
	Records         int     `json:"records"`
	ApprovedCredits float64 `json:"approved_credits"`
}

type Report struct {
	TotalRecords         int              `json:"total_records"`
	ApprovedCount        int              `json:"approved_count"`
	PendingCount         int              `json:"pending_count"`
	RejectedCount        int              `json:"rejected_count"`
	TotalApprovedCredits float64          `json:"total_approved_credits"`
	ByPolicy             []PolicyTotal    `json:"by_policy"`
	ByMonth              []MonthBucket    `json:"by_month"`
	ByInstitute          []InstituteTotal `json:"by_institute"`
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// CreditReport aggregates credit records visible to p. Institutes see their
// own students; admin sees everything.
func (s *ReportService) CreditReport(p workflow.Principal, filter ReportFilter) (*Report, error) {
	query := s.db.Model(&models.CreditRecord{}).
		Select("credit_records.status, COALESCE(credit_records.policy_type, '') AS policy, credit_records.credits_calculated AS credits, COALESCE(institutes.name, '') AS institute_name, credit_records.created_at").
		Joins("LEFT JOIN institutes ON institutes.id = credit_records.institute_id")

	switch p.Role {
	case workflow.RoleAdmin:
	case workflow.RoleInstitute:
		if p.InstituteID == nil {
			return nil, forbidden("institute user has no institute")
		}
		query = query.Where("credit_records.institute_id = ?", *p.InstituteID)
	default:
		return nil, forbidden("reports are available to institutes and admins")
	}

	if filter.StartDate != nil {
		query = query.Where("credit_records.created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("credit_records.created_at < ?", *filter.EndDate)
	}
	if filter.Policy != nil {
		query = query.Where("credit_records.policy_type = ?", *filter.Policy)
	}

	var rows []ReportRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, internalError("failed to load report rows", err)
	}

	report := Aggregate(rows)
	return &report, nil
}

// Aggregate derives counts and groupings from rows. Missing policy or
// institute values land in UnknownBucket; no row is dropped. Only approved
// records contribute credits, so the per-policy sums add up to
// TotalApprovedCredits.
func Aggregate(rows []ReportRow) Report {
	var report Report
	total := decimal.Zero

	type acc struct {
		records int
		credits decimal.Decimal
	}
	policies := map[string]*acc{}
	months := map[string]*acc{}
	institutes := map[string]*acc{}

	bump := func(m map[string]*acc, key string, approved bool, credits decimal.Decimal) {
		a, ok := m[key]
		if !ok {
			a = &acc{credits: decimal.Zero}
			m[key] = a
		}
		a.records++
		if approved {
			a.credits = a.credits.Add(credits)
		}
	}

	for _, row := range rows {
		report.TotalRecords++
		approved := row.Status == models.CreditStatusApproved
		switch row.Status {
		case models.CreditStatusApproved:
			report.ApprovedCount++
		case models.CreditStatusPending:
			report.PendingCount++
		case models.CreditStatusRejected:
			report.RejectedCount++
		}

		amount := decimal.NewFromFloat(row.Credits)
		if approved {
			total = total.Add(amount)
		}

		policy := row.Policy
		if policy == "" {
			policy = UnknownBucket
		}
		institute := row.InstituteName
		if institute == "" {
			institute = UnknownBucket
		}
		month := UnknownBucket
		if !row.CreatedAt.IsZero() {
			month = row.CreatedAt.UTC().Format("2006-01")
		}

		bump(policies, policy, approved, amount)
		bump(months, month, approved, amount)
		bump(institutes, institute, approved, amount)
	}

	report.TotalApprovedCredits = total.Round(2).InexactFloat64()

	report.ByPolicy = make([]PolicyTotal, 0, len(policies))
	for key, a := range policies {
		report.ByPolicy = append(report.ByPolicy, PolicyTotal{Policy: key, Records: a.records, ApprovedCredits: a.credits.Round(2).InexactFloat64()})
	}
	sort.Slice(report.ByPolicy, func(i, j int) bool { return report.ByPolicy[i].Policy < report.ByPolicy[j].Policy })

	report.ByMonth = make([]MonthBucket, 0, len(months))
	for key, a := range months {
		report.ByMonth = append(report.ByMonth, MonthBucket{Month: key, Records: a.records, ApprovedCredits: a.credits.Round(2).InexactFloat64()})
	}
	sort.Slice(report.ByMonth, func(i, j int) bool { return report.ByMonth[i].Month < report.ByMonth[j].Month })

	report.ByInstitute = make([]InstituteTotal, 0, len(institutes))
	for key, a := range institutes {
		report.ByInstitute = append(report.ByInstitute, InstituteTotal{Institute: key, Records: a.records, ApprovedCredits: a.credits.Round(2).InexactFloat64()})
	}
	sort.Slice(report.ByInstitute, func(i, j int) bool {
		a, b := report.ByInstitute[i], report.ByInstitute[j]
		if a.ApprovedCredits != b.ApprovedCredits {
			return a.ApprovedCredits > b.ApprovedCredits
		}
		return a.Institute < b.Institute
	})

	return report
}
