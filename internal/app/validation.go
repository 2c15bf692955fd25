package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"simscore/api/internal/rating"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("rating", func(fl validator.FieldLevel) bool {
		return rating.Validate(int(fl.Field().Int())) == nil
	})
	return v
}

// validateStruct runs the struct tags of s and joins the field messages.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, formatFieldError(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if e.Kind() == reflect.Slice {
			if e.Param() == "1" {
				return fmt.Sprintf("%s must not be empty", field)
			}
			return fmt.Sprintf("%s must contain at least %s entries", field, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "rating":
		return fmt.Sprintf("%s must be between %d and %d", field, rating.MinValue, rating.MaxValue)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
