package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/api-starter/internal/auth"
	"github.com/iliyamo/api-starter/internal/repository"
)

// errorBody is the uniform error envelope.
type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

var kindStatus = map[auth.Kind]int{
	auth.KindAuthentication: http.StatusUnauthorized,
	auth.KindInvalidToken:   http.StatusUnauthorized,
	auth.KindAuthorization:  http.StatusForbidden,
	auth.KindConflict:       http.StatusConflict,
	auth.KindValidation:     http.StatusBadRequest,
}

// ErrorHandler is installed as echo's HTTPErrorHandler. Handlers and
// middleware return errors; this is the only place they become responses.
// Anything unrecognised is logged and answered with a bare 500.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := describe(err)
		if status >= http.StatusInternalServerError {
			log.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method, "path", c.Path(), "err", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.ErrorContext(c.Request().Context(), "write error response", "err", werr)
		}
	}
}

func describe(err error) (int, errorBody) {
	var ae *auth.Error
	if errors.As(err, &ae) {
		if status, ok := kindStatus[ae.Kind]; ok {
			return status, errorBody{Error: ae.Kind.String(), Message: ae.Message, Fields: ae.Fields}
		}
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields, msg := describeFieldErrors(ve)
		return http.StatusBadRequest, errorBody{Error: auth.KindValidation.String(), Message: msg, Fields: fields}
	}

	if errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound, errorBody{Error: statusCode(http.StatusNotFound), Message: "resource not found"}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, errorBody{Error: statusCode(he.Code), Message: msg}
	}

	return http.StatusInternalServerError, errorBody{
		Error:   statusCode(http.StatusInternalServerError),
		Message: "internal server error",
	}
}

// statusCode turns a status into a snake_case code, e.g. 404 -> "not_found".
func statusCode(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}
