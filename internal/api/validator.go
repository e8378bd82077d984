package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	validator *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validator: validator.New()}
}

// Validate checks struct fields against their validate tags.
func (v *requestValidator) Validate(i any) error {
	return v.validator.Struct(i)
}

// describeValidation renders validator errors as one readable line, e.g.
// "panelType is required; end must be greater than start".
func describeValidation(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "gtfield":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", field, lowerFirst(fe.Param())))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
