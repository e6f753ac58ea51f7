// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abc-portal/internship-credits/internal/i18n"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			return
		}

		p, err := claims.Principal()
		if err != nil {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			return
		}

		utils.SetPrincipal(c, p)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// RoleRequired admits only principals holding one of roles. It must run
// after AuthRequired.
func RoleRequired(roles ...workflow.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := utils.GetPrincipal(c)
		if !ok {
			utils.UnauthorizedResponse(c, "")
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		utils.ForbiddenResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAuthRoleDenied))
	}
}

func AdminRequired() gin.HandlerFunc {
	return RoleRequired(workflow.RoleAdmin)
}
