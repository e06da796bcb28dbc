package http

import (
	"net/http"
	"reflect"

	"github.com/labstack/echo/v4"
)

// Envelope wraps every JSON body served by the API.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Page is one window of a listing. Count is the number of rows in this window.
type Page struct {
	Rows   interface{} `json:"rows"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Status: status, Message: http.StatusText(status), Data: data})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return respond(c, http.StatusOK, data)
}

// ListResponse serves rows, which must be a slice, as a Page.
func ListResponse(c echo.Context, rows interface{}, limit, offset int) error {
	n := 0
	if v := reflect.ValueOf(rows); v.Kind() == reflect.Slice {
		n = v.Len()
	}
	return respond(c, http.StatusOK, Page{Rows: rows, Count: n, Limit: limit, Offset: offset})
}

func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return respond(c, http.StatusBadRequest, errs)
}

// AppErrorResponse serves err with its own status; anything that is not an
// AppError is hidden behind a generic 500.
func AppErrorResponse(c echo.Context, err error) error {
	if appErr, ok := asAppError(err); ok {
		return respond(c, appErr.Status, []*AppError{appErr})
	}
	return respond(c, http.StatusInternalServerError, "internal error")
}
