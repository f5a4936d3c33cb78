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

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Referral code validation: letters, digits, dash and underscore
	validate.RegisterValidation("referralcode", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if code == "" {
			return false
		}
		for _, c := range code {
			switch {
			case c >= 'a' && c <= 'z':
			case c >= 'A' && c <= 'Z':
			case c >= '0' && c <= '9':
			case c == '-' || c == '_':
			default:
				return false
			}
		}
		return true
	})

	// Commission type validation
	validate.RegisterValidation("commissiontype", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		return t == "FLAT" || t == "PERCENTAGE" || t == ""
	})

	// Transaction status validation
	validate.RegisterValidation("txstatus", func(fl validator.FieldLevel) bool {
		status := fl.Field().String()
		validStatuses := []string{"PENDING", "SUCCESS", "FAILED", "REFUNDED"}
		for _, s := range validStatuses {
			if status == s {
				return true
			}
		}
		return false
	})
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
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid4", "uuid":
			errors[field] = "Invalid identifier format"
		case "referralcode":
			errors[field] = "Referral code may only contain letters, digits, dash and underscore"
		case "commissiontype":
			errors[field] = "Invalid commission type. Must be: FLAT or PERCENTAGE"
		case "txstatus":
			errors[field] = "Invalid status. Must be: PENDING, SUCCESS, FAILED or REFUNDED"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}
