// internal/handlers/errors.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abc-portal/internship-credits/internal/i18n"
	"github.com/abc-portal/internship-credits/internal/services"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindInvalidTransition: http.StatusConflict,
	services.KindForbidden:         http.StatusForbidden,
	services.KindInvalidHours:      http.StatusBadRequest,
	services.KindInvalidPolicy:     http.StatusBadRequest,
	services.KindValidation:        http.StatusBadRequest,
	services.KindUnauthorized:      http.StatusUnauthorized,
	services.KindNotFound:          http.StatusNotFound,
	services.KindConflict:          http.StatusConflict,
	services.KindUpstream:          http.StatusBadGateway,
	services.KindInternal:          http.StatusInternalServerError,
}

// respondError writes err as a JSON error envelope with the status code of its kind.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if kind == services.KindValidation {
		if details := utils.GetValidationErrors(err); len(details) > 0 {
			utils.ValidationErrorResponse(c, details)
			return
		}
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		message = i18n.T(utils.GetLangFromContext(c), i18n.KeyErrInternal)
	}

	utils.ErrorResponse(c, status, string(kind), message, nil)
}

// principal returns the authenticated caller, writing a 401 when absent.
func principal(c *gin.Context) (workflow.Principal, bool) {
	p, ok := utils.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
	}
	return p, ok
}

// uuidParam parses a path parameter, writing a 400 when it is not a uuid.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyInvalidID, name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes an optional JSON body. An empty body leaves req untouched.
func bindJSON(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	return true
}

func clientMeta(c *gin.Context, req *services.TransitionRequest) {
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()
}
