package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/coursehub/lms-admin-session/internal/auth"
	"github.com/coursehub/lms-admin-session/internal/middleware"
)

// ProfileHandler serves the verified admin's own profile.  Routes using
// it must sit behind middleware.RequireSession.
type ProfileHandler struct {
	Auth     *auth.Service
	Log      *slog.Logger
	validate *validator.Validate
}

func NewProfileHandler(svc *auth.Service, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{Auth: svc, Log: logger, validate: newValidator()}
}

type profileUpdateReq struct {
	FullName  *string `json:"full_name" validate:"omitempty,max=120"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,max=2048,url_or_empty"`
	Bio       *string `json:"bio" validate:"omitempty,max=2000"`
}

func (h *ProfileHandler) Get(c echo.Context) error {
	vs, ok := middleware.CurrentSession(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": auth.ErrInvalidToken.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Auth.Profile(ctx, vs.User.ID)
	if err != nil {
		status, msg := statusFor(err)
		logIfServerError(h.Log, c, status, err)
		return c.JSON(status, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusOK, p)
}

// Update applies {full_name, avatar_url, bio}.  Absent fields are left
// alone and an empty avatar_url or bio clears it; email and role cannot
// be changed here.
func (h *ProfileHandler) Update(c echo.Context) error {
	vs, ok := middleware.CurrentSession(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": auth.ErrInvalidToken.Error()})
	}

	var req profileUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidBody})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": formatValidationErrors(err)})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Auth.UpdateProfile(ctx, vs.User.ID, auth.ProfileUpdate{
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
		Bio:       req.Bio,
	})
	if err != nil {
		status, msg := statusFor(err)
		logIfServerError(h.Log, c, status, err)
		return c.JSON(status, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusOK, p)
}
