package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/repository"
)

// errorBody is the JSON shape of every error response:
// {"statusCode": 404, "message": "Concert not found", "error": "Not Found"}.
// message is a list of strings for validation failures.
func errorBody(status int, message any) echo.Map {
	return echo.Map{
		"statusCode": status,
		"message":    message,
		"error":      http.StatusText(status),
	}
}

// statusForKind maps ledger error kinds onto HTTP status codes.
func statusForKind(k repository.Kind) int {
	switch k {
	case repository.KindInvalidArgument:
		return http.StatusBadRequest
	case repository.KindNotFound:
		return http.StatusNotFound
	case repository.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ledgerError writes the response for an error returned by the ledger.
func ledgerError(c echo.Context, err error) error {
	status := statusForKind(repository.KindOf(err))
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("unexpected ledger error: %v", err)
		return c.JSON(status, errorBody(status, "Internal server error"))
	}
	return c.JSON(status, errorBody(status, err.Error()))
}

// ErrorHandler renders errors that escape handlers (unknown routes, wrong
// methods, panics recovered by middleware) in the same shape as handler
// errors.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	var message any = "Internal server error"

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
		switch {
		case status == http.StatusNotFound:
			message = fmt.Sprintf("Cannot %s %s", c.Request().Method, c.Request().URL.Path)
		case he.Message != nil:
			message = fmt.Sprint(he.Message)
		default:
			message = http.StatusText(status)
		}
	default:
		c.Logger().Errorf("unhandled error: %v", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorBody(status, message))
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
