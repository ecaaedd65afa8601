package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/identito-api/pkg/errors"
)

// Response is the uniform HTTP envelope.
type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// OK writes a success envelope.
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Status: "success", Data: data})
}

// Fail hands the error to the error middleware, which owns status mapping.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
