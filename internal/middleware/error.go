package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
	"github.com/jwalitptl/identito-api/pkg/logger"
)

// ErrorHandler turns errors pushed onto the gin context into the uniform
// error envelope. AppError carries its own HTTP status; anything else is a
// 500 with the detail kept out of the response.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var app *apperrors.AppError
		if errors.As(err, &app) {
			c.JSON(app.StatusCode(), gin.H{
				"status": "error",
				"error": gin.H{
					"code":    app.Code,
					"message": app.Message,
				},
			})
			return
		}

		l.Error(err, "unhandled error",
			"path", c.Request.URL.Path,
			"request_id", c.GetString("request_id"),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  gin.H{"message": "internal server error"},
		})
	}
}
