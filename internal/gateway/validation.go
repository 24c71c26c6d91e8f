package gateway

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"batepapo/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names so reasons match what the client sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct returns a *model.ValidationError holding one reason per
// violated field, or nil.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &model.ValidationError{Reasons: []string{err.Error()}}
	}
	return &model.ValidationError{
		Reasons: lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string {
			return reason(fe)
		}),
	}
}

func reason(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "max":
		return fmt.Sprintf("%q must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s], got %q", field, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	default:
		return fmt.Sprintf("%q failed %q validation", field, fe.Tag())
	}
}
