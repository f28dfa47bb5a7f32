package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	validate.RegisterValidation("direction", oneOf("CREDIT", "DEBIT"))
	validate.RegisterValidation("wallet_status", oneOf("active", "frozen"))
	// Decimal amounts arrive as strings so precision survives JSON.
	validate.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return false
		}
		dot := false
		for i, c := range s {
			switch {
			case c >= '0' && c <= '9':
			case c == '.' && !dot && i > 0 && i < len(s)-1:
				dot = true
			default:
				return false
			}
		}
		return true
	})
}

func oneOf(values ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, allowed := range values {
			if v == allowed {
				return true
			}
		}
		return false
	}
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "direction":
			errors[field] = "Invalid direction. Must be: CREDIT or DEBIT"
		case "wallet_status":
			errors[field] = "Invalid status. Must be: active or frozen"
		case "decimal":
			errors[field] = "Must be a positive decimal number"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}
