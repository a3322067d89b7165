package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/coursehub/lms-admin-session/internal/auth"
	"github.com/coursehub/lms-admin-session/internal/model"
)

// requestTimeout bounds the storage work done for a single request.
const requestTimeout = 5 * time.Second

// AdminHandler serves the super-admin login, logout and verify endpoints.
type AdminHandler struct {
	Auth     *auth.Service
	Log      *slog.Logger
	validate *validator.Validate
}

func NewAdminHandler(svc *auth.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{Auth: svc, Log: logger, validate: newValidator()}
}

type loginReq struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

type loginResp struct {
	Success   bool              `json:"success"`
	Token     string            `json:"token"`
	User      model.UserSummary `json:"user"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Login checks the credentials against the registry and returns a new
// bearer token.  Unknown email and wrong password produce the same 401.
func (h *AdminHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidBody)
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, http.StatusBadRequest, formatValidationErrors(err))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		status, msg := statusFor(err)
		logIfServerError(h.Log, c, status, err)
		return fail(c, status, msg)
	}
	return c.JSON(http.StatusOK, loginResp{
		Success:   true,
		Token:     res.Token,
		User:      res.User,
		ExpiresAt: res.ExpiresAt,
	})
}

// Logout deletes the session behind the presented token.  The token is
// not verified first; an expired or unknown token is already logged out.
func (h *AdminHandler) Logout(c echo.Context) error {
	token, err := auth.ParseBearer(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return fail(c, http.StatusUnauthorized, auth.ErrMissingToken.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, token); err != nil {
		status, msg := statusFor(err)
		logIfServerError(h.Log, c, status, err)
		return fail(c, status, msg)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "logged out"})
}

// Verify reports whether the bearer token names a live session.
func (h *AdminHandler) Verify(c echo.Context) error {
	token, err := auth.ParseBearer(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"valid": false, "error": auth.ErrMissingToken.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	vs, err := h.Auth.Verify(ctx, token)
	if err != nil {
		status, msg := statusFor(err)
		logIfServerError(h.Log, c, status, err)
		return c.JSON(status, echo.Map{"valid": false, "error": msg})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":     true,
		"user":      vs.User,
		"expiresAt": vs.Session.ExpiresAt,
	})
}
