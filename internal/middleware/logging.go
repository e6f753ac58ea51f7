// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abc-portal/internship-credits/internal/services"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

// maxAuditBody caps how much of a JSON request body is copied into the audit log.
const maxAuditBody = 64 << 10

var redactedFields = map[string]bool{
	"password": true,
	"token":    true,
}

// AuditLogMiddleware records every write request, and every read made by an
// admin, through auditService. Multipart bodies are not captured.
func AuditLogMiddleware(auditService *services.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		var requestBody []byte
		if c.Request.Method != "GET" && c.Request.Body != nil &&
			strings.HasPrefix(c.ContentType(), "application/json") {
			requestBody, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(requestBody), c.Request.Body))
		}

		c.Next()

		p, authenticated := utils.GetPrincipal(c)
		if c.Request.Method == "GET" && !(authenticated && p.Role == workflow.RoleAdmin) {
			return
		}

		details := map[string]interface{}{
			"status": c.Writer.Status(),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			details["query"] = query
		}
		var requestData map[string]interface{}
		if len(requestBody) > 0 && json.Unmarshal(requestBody, &requestData) == nil {
			for k := range requestData {
				if redactedFields[strings.ToLower(k)] {
					requestData[k] = "[REDACTED]"
				}
			}
			details["body"] = requestData
		}

		entry := services.AuditEntry{
			Action:       c.Request.Method + " " + routePath(c),
			ResourceType: extractResourceType(c.Request.URL.Path),
			Details:      details,
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
		}
		if authenticated {
			entry.Actor = &p
		}
		if resourceID := extractResourceID(c.Request.URL.Path); resourceID != nil {
			entry.ResourceID = resourceID
		}

		auditService.RecordAsync(entry)
	}
}

func routePath(c *gin.Context) string {
	if full := c.FullPath(); full != "" {
		return full
	}
	return c.Request.URL.Path
}

func extractResourceType(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "admin" {
		return parts[1]
	}
	if len(parts) >= 1 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}

func extractResourceID(path string) *uuid.UUID {
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if parsed, err := uuid.Parse(part); err == nil {
			return &parsed
		}
	}
	return nil
}

// RequestLogger logs one line per request with logrus.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}
		if userID, ok := c.Get(utils.ContextUserID); ok {
			fields["user_id"] = userID
		}

		entry := logrus.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request processed")
		case status >= 400:
			entry.Warn("Request processed")
		default:
			entry.Info("Request processed")
		}
	}
}
