package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coursehub/lms-admin-session/internal/auth"
)

// Context keys set by RequireSession.
const (
	ctxSession = "session"
	ctxUserID  = "user_id"
	ctxRole    = "role"
)

// Verifier checks a bearer token.  *auth.Service implements it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*auth.VerifiedSession, error)
}

// RequireSession returns an Echo middleware that validates the bearer
// token against the session store on every request.  It is the only gate
// in front of privileged routes; nothing the client caches locally is
// consulted.  On success the verified session, user id and role are
// stored in the context for downstream handlers.
func RequireSession(v Verifier, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := auth.ParseBearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": auth.ErrMissingToken.Error()})
			}

			vs, err := v.Verify(c.Request().Context(), raw)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": auth.ErrInvalidToken.Error()})
			default:
				logger.Error("session verification failed", "error", err, "path", c.Path())
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			c.Set(ctxSession, vs)
			c.Set(ctxUserID, vs.User.ID)
			c.Set(ctxRole, vs.User.Role)
			return next(c)
		}
	}
}

// CurrentSession returns the session stored by RequireSession.
func CurrentSession(c echo.Context) (*auth.VerifiedSession, bool) {
	vs, ok := c.Get(ctxSession).(*auth.VerifiedSession)
	return vs, ok && vs != nil
}
