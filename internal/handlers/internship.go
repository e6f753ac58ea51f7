// internal/handlers/internship.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/i18n"
	"github.com/abc-portal/internship-credits/internal/services"
	"github.com/abc-portal/internship-credits/internal/utils"
)

type InternshipHandler struct {
	internshipService *services.InternshipService
}

func NewInternshipHandler(internshipService *services.InternshipService) *InternshipHandler {
	return &InternshipHandler{
		internshipService: internshipService,
	}
}

// POST /internships
func (h *InternshipHandler) Create(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	p, ok := principal(c)
	if !ok {
		return
	}

	var req services.CreateInternshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	internship, err := h.internshipService.Create(p, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, internship)
}

// PUT /internships/:id
func (h *InternshipHandler) Update(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateInternshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	internship, err := h.internshipService.Update(p, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, internship)
}

// POST /internships/:id/toggle
func (h *InternshipHandler) Toggle(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	internship, err := h.internshipService.Toggle(p, id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, internship)
}

// GET /internships/:id
func (h *InternshipHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	internship, err := h.internshipService.Get(p, id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, internship)
}

// GET /internships
func (h *InternshipHandler) List(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	p, ok := principal(c)
	if !ok {
		return
	}

	params := &services.InternshipSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		Mine:             c.Query("mine") == "true",
		Search:           c.Query("q"),
	}
	if raw := c.Query("policy"); raw != "" {
		policy, err := credits.ParsePolicy(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyErrInvalidPolicy), nil)
			return
		}
		params.Policy = &policy
	}

	internships, total, err := h.internshipService.List(p, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(internships, total, params.PaginationParams))
}
