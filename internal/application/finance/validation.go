package finance

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks struct tags and converts failures to a Validation domain error
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.NewValidationError("INVALID_INPUT", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Namespace(), validationMessage(e)))
	}
	return shared.NewValidationError("INVALID_INPUT", strings.Join(msgs, "; "))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "gtefield":
		return "must not precede " + e.Param()
	default:
		return "is invalid"
	}
}

// classify keeps domain errors as they are and treats anything else as a storage failure
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if shared.KindOf(err) == shared.KindInternal {
		return shared.NewExternalError("failed to "+op, err)
	}
	return err
}
