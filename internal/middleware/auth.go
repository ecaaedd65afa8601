package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/identito-api/internal/config"
	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

// Claims carried by access tokens.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token and exposes the actor on the context.
func Auth(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, fmt.Errorf("missing bearer token"))
			return
		}

		token, err := jwt.ParseWithClaims(
			strings.TrimPrefix(header, "Bearer "),
			&Claims{},
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(cfg.Secret), nil
			},
		)
		if err != nil || !token.Valid {
			abortUnauthorized(c, err)
			return
		}

		claims := token.Claims.(*Claims)
		c.Set("actor", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	app := apperrors.Unauthorized(err)
	c.AbortWithStatusJSON(app.StatusCode(), gin.H{
		"status": "error",
		"error":  gin.H{"code": app.Code, "message": app.Message},
	})
}
