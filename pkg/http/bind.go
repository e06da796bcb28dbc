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
}

var validate = newValidator()

// Field names in errors are the query parameter names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

var tagMessages = map[string]string{
	"required": "%s is required",
	"oneof":    "%s must be one of [%s]",
	"gte":      "%s must be at least %s",
	"lte":      "%s must be at most %s",
	"min":      "%s must be at least %s",
	"max":      "%s must be at most %s",
}

// ReadAndValidateRequest applies default tags, binds query and body onto req
// and validates it. Defaults go first so absent parameters keep them.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := defaults.Set(req); err != nil {
		return []ValidationError{{Code: "ERR_DEFAULTS", Message: err.Error()}}
	}
	if err := c.Bind(req); err != nil {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
		}
		return []ValidationError{{Code: "ERR_BIND", Message: msg}}
	}

	err := validate.StructCtx(c.Request().Context(), req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{Code: "ERR_VALIDATION", Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   fe.Field(),
			Message: describe(fe),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	format, ok := tagMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
	if strings.Count(format, "%s") == 2 {
		return fmt.Sprintf(format, fe.Field(), fe.Param())
	}
	return fmt.Sprintf(format, fe.Field())
}
