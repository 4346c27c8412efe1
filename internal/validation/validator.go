package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validatorengine "github.com/go-playground/validator/v10"

	"venuly/internal/apperr"
)

// StructValidator wraps the validator engine and reports field errors keyed by
// their JSON names.
type StructValidator struct {
	Validator *validatorengine.Validate
}

func NewStructValidator() *StructValidator {
	ve := validatorengine.New()
	ve.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &StructValidator{Validator: ve}
}

var std = NewStructValidator()

// Struct validates data with the package-level validator.
func Struct(data any) error {
	return std.ValidateStruct(data)
}

// ValidateStruct returns an apperr Validation error with one message per field.
func (v *StructValidator) ValidateStruct(data any) error {
	err := v.Validator.Struct(data)
	if err == nil {
		return nil
	}

	var errs validatorengine.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	details := make(map[string]string, len(errs))
	for _, e := range errs {
		field := fieldPath(e.Namespace())
		if _, seen := details[field]; !seen {
			details[field] = message(e)
		}
	}
	return apperr.Validation(details)
}

// fieldPath drops the root struct name: "CreateEventRequest.budget.min" -> "budget.min".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(e validatorengine.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min":
		if isLengthKind(e.Kind()) {
			return fmt.Sprintf("must have at least %s characters or items", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		if isLengthKind(e.Kind()) {
			return fmt.Sprintf("must have at most %s characters or items", e.Param())
		}
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "len":
		return "must have length " + e.Param()
	case "uuid4", "uuid":
		return "must be a valid id"
	case "dive":
		return "is invalid"
	default:
		return "failed on " + e.Tag()
	}
}

func isLengthKind(k reflect.Kind) bool {
	return k == reflect.String || k == reflect.Slice || k == reflect.Map
}
