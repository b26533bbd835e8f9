package bucket

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/syntrixbase/daybook/pkg/model"
)

// validate is the singleton validator instance shared by all stores.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError is one failed entity constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failed constraint of one entity.
// It matches model.ErrInvalidEntity.
type ValidationError struct {
	Entity string       `json:"entity"`
	Errors []FieldError `json:"errors"`
}

func (v *ValidationError) Error() string {
	msgs := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return fmt.Sprintf("invalid %s: %s", v.Entity, strings.Join(msgs, "; "))
}

func (v *ValidationError) Is(target error) bool {
	return target == model.ErrInvalidEntity
}

// Invalid builds a ValidationError for entity-level checks.
func Invalid(entity, field, message string) error {
	return &ValidationError{Entity: entity, Errors: []FieldError{{Field: field, Message: message}}}
}

func translate(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("Must be a date in the form %s", fe.Param())
	default:
		return fmt.Sprintf("Failed validation: %s", fe.Tag())
	}
}

// ValidateStruct runs the struct tags of v.
func ValidateStruct(entity string, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", model.ErrInvalidEntity, err)
	}
	out := &ValidationError{Entity: entity}
	for _, fe := range ve {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Message: translate(fe),
		})
	}
	return out
}
