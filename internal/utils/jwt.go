// internal/utils/jwt.go
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/abc-portal/internship-credits/internal/workflow"
)

const tokenIssuer = "internship-credits"

type JWTClaims struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	InstituteID string `json:"institute_id,omitempty"`
	jwt.RegisteredClaims
}

var jwtSecret = []byte("your-secret-key-change-in-production")

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

func GenerateJWT(p workflow.Principal, username string, ttlHours int) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:   p.UserID.String(),
		Username: username,
		Role:     string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   p.UserID.String(),
		},
	}
	if p.InstituteID != nil {
		claims.InstituteID = p.InstituteID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// Principal converts validated claims into the caller identity.
func (c *JWTClaims) Principal() (workflow.Principal, error) {
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return workflow.Principal{}, fmt.Errorf("invalid user_id claim: %w", err)
	}
	role, err := workflow.ParseRole(c.Role)
	if err != nil {
		return workflow.Principal{}, err
	}

	p := workflow.Principal{UserID: userID, Role: role}
	if c.InstituteID != "" {
		instID, err := uuid.Parse(c.InstituteID)
		if err != nil {
			return workflow.Principal{}, fmt.Errorf("invalid institute_id claim: %w", err)
		}
		p.InstituteID = &instID
	}
	return p, nil
}
