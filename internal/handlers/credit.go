// internal/handlers/credit.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/i18n"
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/services"
	"github.com/abc-portal/internship-credits/internal/utils"
)

type CreditHandler struct {
	creditService *services.CreditService
}

func NewCreditHandler(creditService *services.CreditService) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
	}
}

// GET /credits
func (h *CreditHandler) List(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	p, ok := principal(c)
	if !ok {
		return
	}

	params := &services.CreditSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.CreditStatus(raw)
		if !status.Valid() {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "status"), nil)
			return
		}
		params.Status = &status
	}
	if raw := c.Query("policy"); raw != "" {
		policy, err := credits.ParsePolicy(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyErrInvalidPolicy), nil)
			return
		}
		params.Policy = &policy
	}
	if raw := c.Query("flagged"); raw != "" {
		flagged, err := strconv.ParseBool(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "flagged"), nil)
			return
		}
		params.Flagged = &flagged
	}

	records, total, err := h.creditService.List(p, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(records, total, params.PaginationParams))
}

// GET /credits/summary
func (h *CreditHandler) Summary(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	summary, err := h.creditService.Summary(p)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, summary)
}

// POST /application/:id/push-to-registry
func (h *CreditHandler) PushToRegistry(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	record, err := h.creditService.PushToRegistry(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, record)
}
