package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/yellowcard/backend/internal/middleware"
	"github.com/anonto42/yellowcard/backend/internal/models"
	"github.com/anonto42/yellowcard/backend/internal/repositories"
)

// ErrNotMember is returned at login for accounts without the member role.
var ErrNotMember = errors.New("account is not a member")

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	identity  IdentityProvider
	members   MemberStore
	verifier  middleware.TokenVerifier
	jwtSecret string
	jwtTTL    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(identity IdentityProvider, members MemberStore, verifier middleware.TokenVerifier, jwtSecret string, jwtTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		identity:  identity,
		members:   members,
		verifier:  verifier,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login, middleware.FirebaseAuthMiddleware(h.verifier))
}

// Register creates the Firebase account and its users/{uid} member profile
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	params := (&auth.UserToCreate{}).
		Email(strings.TrimSpace(req.Email)).
		Password(req.Password).
		DisplayName(strings.TrimSpace(req.FirstName + " " + req.LastName))
	record, err := h.identity.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return echo.NewHTTPError(http.StatusConflict, "User with this email already registered")
		}
		h.logger.Error("create firebase user", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create account")
	}

	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		memberID = fmt.Sprintf("M%d", h.now().UnixMilli())
	}
	member := &models.Member{
		UID:       record.UID,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		MemberID:  memberID,
		Role:      models.RoleMember,
		Email:     record.Email,
	}
	if err := h.members.CreateMember(ctx, member); err != nil {
		h.logger.Error("create member profile", "uid", record.UID, "error", err)
		if delErr := h.identity.DeleteUser(ctx, record.UID); delErr != nil {
			h.logger.Error("roll back firebase user", "uid", record.UID, "error", delErr)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create member profile")
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": member})
}

// Login exchanges a verified Firebase ID token for a local JWT. Only
// accounts whose profile carries the member role may sign in.
func (h *AuthHandler) Login(c echo.Context) error {
	uid, _ := c.Get(middleware.FirebaseUIDKey).(string)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
	}

	member, err := h.members.GetMember(c.Request().Context(), uid)
	switch {
	case errors.Is(err, repositories.ErrMemberNotFound):
		return echo.NewHTTPError(http.StatusForbidden, "Access denied. Members only.")
	case err != nil:
		h.logger.Error("load member profile", "uid", uid, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load member profile")
	}
	if err := checkMember(member); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "Access denied. Members only.")
	}

	if token, ok := c.Get(middleware.FirebaseTokenKey).(*auth.Token); ok && member.Email == "" {
		if email, ok := token.Claims["email"].(string); ok {
			member.Email = email
		}
	}

	localJWT, err := h.generateJWT(member)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate local JWT")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"token": localJWT, "member": member}})
}

func checkMember(member *models.Member) error {
	if member.Role != models.RoleMember && member.Role != models.RoleAdmin {
		return ErrNotMember
	}
	return nil
}

// generateJWT generates a JWT token for a given member
func (h *AuthHandler) generateJWT(member *models.Member) (string, error) {
	now := h.now()
	claims := &models.JwtCustomClaims{
		UID:   member.UID,
		Email: member.Email,
		Role:  member.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(h.jwtTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   member.UID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
