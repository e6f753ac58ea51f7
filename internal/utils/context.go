// internal/utils/context.go
package utils

import (
	"github.com/gin-gonic/gin"

	"github.com/abc-portal/internship-credits/internal/workflow"
)

const (
	ContextPrincipal = "principal"
	ContextUserID    = "user_id"
	ContextRole      = "role"
	ContextLang      = "lang"
)

func SetPrincipal(c *gin.Context, p workflow.Principal) {
	c.Set(ContextPrincipal, p)
	c.Set(ContextUserID, p.UserID.String())
	c.Set(ContextRole, string(p.Role))
}

func GetPrincipal(c *gin.Context) (workflow.Principal, bool) {
	if v, exists := c.Get(ContextPrincipal); exists {
		if p, ok := v.(workflow.Principal); ok {
			return p, true
		}
	}
	return workflow.Principal{}, false
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get(ContextLang); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return "en"
}
