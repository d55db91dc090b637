package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

var validate = newValidator()

// newValidator reports fields by their query or json name so messages match
// what the client sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json", "param"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// ReadAndValidateRequest binds path, query and body into req, fills
// `default` tags and validates it. It returns nil when req is valid.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
		}
		return []ValidationError{{Code: "ERR_BIND", Message: msg}}
	}
	if err := defaults.Set(req); err != nil {
		return []ValidationError{{Code: "ERR_DEFAULTS", Message: err.Error()}}
	}

	err := validate.StructCtx(c.Request().Context(), req)
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return []ValidationError{{Code: "ERR_INVALID", Message: err.Error()}}
	}
	out := make([]ValidationError, len(fes))
	for i, fe := range fes {
		out[i] = ValidationError{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Param:   fe.Param(),
		}
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	f, p := fe.Field(), fe.Param()
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f, strings.ReplaceAll(p, " ", ", "))
	case "min", "gte":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", f, p)
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", f, p)
		}
		return fmt.Sprintf("%s must be at least %s", f, p)
	case "max", "lte":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", f, p)
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s items", f, p)
		}
		return fmt.Sprintf("%s must be at most %s", f, p)
	case "datetime":
		return fmt.Sprintf("%s must be a date in the form %s", f, p)
	default:
		return fmt.Sprintf("%s failed %s validation", f, fe.Tag())
	}
}
