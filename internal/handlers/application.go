// internal/handlers/application.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abc-portal/internship-credits/internal/i18n"
	"github.com/abc-portal/internship-credits/internal/services"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type ApplicationHandler struct {
	applicationService *services.ApplicationService
}

// transitionBody is the optional JSON body of a transition. Reason and hours
// may also be passed as query parameters.
type transitionBody struct {
	Reason string   `json:"reason"`
	Hours  *float64 `json:"hours"`
}

func NewApplicationHandler(applicationService *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: applicationService,
	}
}

// POST /apply/:internshipId
func (h *ApplicationHandler) Apply(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	internshipID, ok := uuidParam(c, "internshipId")
	if !ok {
		return
	}

	application, err := h.applicationService.Apply(p, internshipID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, application)
}

// Transition returns a handler applying event to the application in the path.
func (h *ApplicationHandler) Transition(event workflow.Event) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		var body transitionBody
		if !bindJSON(c, &body) {
			return
		}
		if body.Reason == "" {
			body.Reason = c.Query("reason")
		}
		if body.Hours == nil {
			if raw := c.Query("hours"); raw != "" {
				hours, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyErrInvalidHours), nil)
					return
				}
				body.Hours = &hours
			}
		}

		req := services.TransitionRequest{
			Event:  event,
			Reason: body.Reason,
			Hours:  body.Hours,
		}
		clientMeta(c, &req)

		application, err := h.applicationService.Transition(p, id, req)
		if err != nil {
			respondError(c, err)
			return
		}

		utils.SuccessResponse(c, application)
	}
}

// GET /application/:id
func (h *ApplicationHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	application, err := h.applicationService.Get(p, id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, application)
}

// GET /applications
func (h *ApplicationHandler) List(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	p, ok := principal(c)
	if !ok {
		return
	}

	params := &services.ApplicationSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := workflow.ParseStatus(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "status"), nil)
			return
		}
		params.Status = &status
	}
	if raw := c.Query("internship_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidID, "internship"), nil)
			return
		}
		params.InternshipID = &id
	}

	applications, total, err := h.applicationService.List(p, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(applications, total, params.PaginationParams))
}

// POST /application/:id/proof
func (h *ApplicationHandler) UploadProof(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "file"), nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "file"), nil)
		return
	}
	defer file.Close()

	application, err := h.applicationService.UploadProof(p, id, services.FileUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, application)
}

// GET /application/:id/proof
func (h *ApplicationHandler) ProofURL(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	url, err := h.applicationService.ProofURL(p, id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"url": url})
}

// GET /application/:id/proof/file
func (h *ApplicationHandler) ProofFile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	download, err := h.applicationService.Proof(p, id)
	if err != nil {
		respondError(c, err)
		return
	}

	if download.URL != "" {
		c.Redirect(http.StatusFound, download.URL)
		return
	}
	c.FileAttachment(download.LocalPath, download.Filename)
}
