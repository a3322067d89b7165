package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/coursehub/lms-admin-session/internal/auth"
)

// Generic messages returned for server-side failures.  The underlying
// error is logged, never sent.
const (
	msgInternal     = "internal error"
	msgLogoutFailed = "logout failed"
	msgInvalidBody  = "invalid body"
)

// newValidator reports fields by their json names.  url_or_empty
// accepts "" so a URL field can be cleared.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterAlias("url_or_empty", "eq=|url")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param()))
		case "url", "url_or_empty":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

// fail writes the {success:false,error} shape used by login and logout.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": msg})
}

// statusFor maps service errors onto HTTP status codes and client-safe
// messages.  Anything unrecognised is an upstream failure.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, auth.ErrUnauthorized.Error()
	case errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, auth.ErrMissingToken.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, auth.ErrInvalidToken.Error()
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, auth.ErrNotFound.Error()
	case errors.Is(err, auth.ErrLogoutFailed):
		return http.StatusInternalServerError, msgLogoutFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// validationMessage strips the sentinel prefix so clients see only the
// field problem.
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), auth.ErrValidation.Error()+": ")
	if msg == "" {
		return auth.ErrValidation.Error()
	}
	return msg
}

func logIfServerError(logger *slog.Logger, c echo.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}
}
