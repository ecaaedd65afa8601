package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/identito-api/internal/model"
)

// RegisterValidations installs custom binding rules on gin's validator
// engine. Safe to call more than once.
func RegisterValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("identitystatus", func(fl validator.FieldLevel) bool {
		return model.IdentityStatus(fl.Field().String()).Valid()
	})
}
