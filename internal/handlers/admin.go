// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abc-portal/internship-credits/internal/i18n"
	"github.com/abc-portal/internship-credits/internal/services"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

// AdminHandler serves the read-only admin surface.
type AdminHandler struct {
	adminService *services.AdminService
	userService  *services.UserService
	auditService *services.AuditService
}

func NewAdminHandler(adminService *services.AdminService, userService *services.UserService, auditService *services.AuditService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		userService:  userService,
		auditService: auditService,
	}
}

// GET /admin/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	filter := services.AdminUserFilter{
		PaginationParams: utils.GetPaginationParams(c),
		Search:           c.Query("q"),
	}
	if raw := c.Query("role"); raw != "" {
		role, err := workflow.ParseRole(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "role"), nil)
			return
		}
		filter.Role = &role
	}
	if raw := c.Query("institute_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidID, "institute"), nil)
			return
		}
		filter.InstituteID = &id
	}

	users, total, err := h.userService.List(&filter)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(users, total, filter.PaginationParams))
}

// GET /admin/audit-logs and GET /audit-logs/mine
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	p, ok := principal(c)
	if !ok {
		return
	}

	params := &services.AuditSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		Action:           c.Query("action"),
		ResourceType:     c.Query("resource_type"),
	}
	if raw := c.Query("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidID, "actor"), nil)
			return
		}
		params.ActorID = &id
	}
	if raw := c.Query("resource_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidID, "resource"), nil)
			return
		}
		params.ResourceID = &id
	}

	logs, total, err := h.auditService.List(p, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(logs, total, params.PaginationParams))
}
