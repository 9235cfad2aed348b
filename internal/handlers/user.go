package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/yellowcard/backend/internal/middleware"
	"github.com/anonto42/yellowcard/backend/internal/models"
	"github.com/anonto42/yellowcard/backend/internal/repositories"
)

// recentSignIn bounds how old the sign-in behind a password change may be.
const recentSignIn = 5 * time.Minute

// UserHandler handles HTTP requests related to the signed-in member
type UserHandler struct {
	members  MemberStore
	identity IdentityProvider
	verifier middleware.TokenVerifier
	logger   *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(members MemberStore, identity IdentityProvider, verifier middleware.TokenVerifier, logger *slog.Logger) *UserHandler {
	return &UserHandler{members: members, identity: identity, verifier: verifier, logger: logger}
}

// RegisterProfileRoutes registers profile routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile/password", h.ChangePassword)
}

// GetProfile returns users/{uid} for the authenticated member
func (h *UserHandler) GetProfile(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}

	member, err := h.members.GetMember(c.Request().Context(), claims.UID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		h.logger.Error("load member profile", "uid", claims.UID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load profile")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": member})
}

// ChangePassword sets a new password on the member's Firebase account. The
// request must carry an ID token for the same account from a recent sign-in.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}

	var req models.ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token, err := h.verifier.VerifyIDToken(c.Request().Context(), req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
	}
	if token.UID != claims.UID {
		h.logger.Warn("password change with foreign id token", "uid", claims.UID, "token_uid", token.UID)
		return echo.NewHTTPError(http.StatusForbidden, "ID token belongs to another account")
	}
	if time.Since(time.Unix(token.AuthTime, 0)) > recentSignIn {
		return echo.NewHTTPError(http.StatusUnauthorized, "Please sign in again to change your password")
	}

	params := (&auth.UserToUpdate{}).Password(req.NewPassword)
	if _, err := h.identity.UpdateUser(c.Request().Context(), claims.UID, params); err != nil {
		if auth.IsUserNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Account not found")
		}
		h.logger.Error("update firebase password", "uid", claims.UID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to change password")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"message": "Password updated successfully"}})
}
