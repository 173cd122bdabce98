package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report field names the way clients spell them
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks the validate tags of a struct payload
func Validate(v interface{}) error {
	return validationError(validate.Struct(v))
}

// ValidateVar checks a single value against tag, reporting it as field
func ValidateVar(field string, value interface{}, tag string) error {
	err := validationError(validate.Var(value, tag))
	var we *WorkflowError
	if errors.As(err, &we) {
		we.Message = field + we.Message
	}
	return err
}

// validationError turns the first failed rule into a ValidationError
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &WorkflowError{Kind: KindValidation, Message: "invalid payload", Err: err}
	}
	fe := fieldErrs[0]
	return &WorkflowError{Kind: KindValidation, Message: fe.Field() + ruleMessage(fe), Err: err}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf(" must be at least %s characters", fe.Param())
		}
		return " must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf(" must be at most %s characters", fe.Param())
		}
		return " must be at most " + fe.Param()
	case "len":
		return fmt.Sprintf(" must be %s characters", fe.Param())
	case "oneof":
		return " must be one of: " + fe.Param()
	case "email":
		return " is not a valid email address"
	case "numeric":
		return " must contain only digits"
	case "latitude":
		return " must be a latitude in [-90, 90]"
	case "longitude":
		return " must be a longitude in [-180, 180]"
	case "status":
		return " is not a known value"
	default:
		return " is invalid"
	}
}
