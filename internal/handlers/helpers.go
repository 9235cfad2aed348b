package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yellowcard/backend/internal/middleware"
	"github.com/anonto42/yellowcard/backend/internal/models"
)

// currentMember returns the claims JWTAuthMiddleware stored on the context.
func currentMember(c echo.Context) (*models.JwtCustomClaims, error) {
	claims, ok := c.Get(middleware.ClaimsKey).(*models.JwtCustomClaims)
	if !ok || claims.UID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return claims, nil
}

// bindAndValidate binds the request body into req and runs the Echo validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}
