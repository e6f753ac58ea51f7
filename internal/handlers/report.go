// internal/handlers/report.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/i18n"
	"github.com/abc-portal/internship-credits/internal/services"
	"github.com/abc-portal/internship-credits/internal/utils"
)

const dateLayout = "2006-01-02"

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// GET /reports/credits?start_date=&end_date=&policy=
//
// Both dates are inclusive calendar days in UTC.
func (h *ReportHandler) Credits(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	p, ok := principal(c)
	if !ok {
		return
	}

	var filter services.ReportFilter
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "start_date"), nil)
			return
		}
		filter.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "end_date"), nil)
			return
		}
		end := t.AddDate(0, 0, 1)
		filter.EndDate = &end
	}
	if filter.StartDate != nil && filter.EndDate != nil && !filter.EndDate.After(*filter.StartDate) {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "date range"), nil)
		return
	}
	if raw := c.Query("policy"); raw != "" {
		policy, err := credits.ParsePolicy(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyErrInvalidPolicy), nil)
			return
		}
		filter.Policy = &policy
	}

	report, err := h.reportService.CreditReport(p, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}
