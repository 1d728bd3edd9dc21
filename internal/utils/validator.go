// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("login", validateLogin)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateLogin(fl validator.FieldLevel) bool {
	login := fl.Field().String()

	// Logins are alphanumeric with dots, dashes and underscores, 3-100 characters
	if len(login) < 3 || len(login) > 100 {
		return false
	}

	matched, _ := regexp.MatchString(`^[a-zA-Z0-9._-]+$`, login)
	return matched
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "login":
		return "Login must be 3-100 characters and contain only letters, numbers, dots, dashes and underscores"
	default:
		return e.Field() + " is invalid"
	}
}
