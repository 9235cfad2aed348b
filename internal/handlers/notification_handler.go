package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yellowcard/backend/internal/middleware"
	"github.com/anonto42/yellowcard/backend/internal/models"
	"github.com/anonto42/yellowcard/backend/internal/push"
)

// NotificationHandler authors notifications and registers push tokens
type NotificationHandler struct {
	notifications NotificationStore
	pusher        Pusher
	logger        *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications NotificationStore, pusher Pusher, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, pusher: pusher, logger: logger}
}

// RegisterNotificationRoutes registers notification and device routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.POST("/notifications", h.CreateNotification, middleware.RequireRole(models.RoleAdmin))
	g.POST("/devices", h.RegisterDevice)
	g.GET("/devices", h.ListDevices)
}

// CreateNotification writes notifications/{id} and pushes it to every
// subscribed device. A failed push does not undo the write.
func (h *NotificationHandler) CreateNotification(c echo.Context) error {
	var req models.CreateNotificationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	title, body := strings.TrimSpace(req.Title), strings.TrimSpace(req.Body)
	if title == "" || body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Please fill in both the title and message.")
	}

	ctx := c.Request().Context()
	item, err := h.notifications.CreateNotification(ctx, title, body)
	if err != nil {
		h.logger.Error("create notification", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create notification")
	}

	pushed := true
	if err := h.pusher.Broadcast(ctx, item); err != nil {
		pushed = false
		h.logger.Warn("broadcast notification", "id", item.ID, "error", err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"notification": item, "pushed": pushed}})
}

// RegisterDevice stores the caller's push token and subscribes it to the broadcast topic
func (h *NotificationHandler) RegisterDevice(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}

	var req models.RegisterDeviceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	device, err := h.pusher.RegisterDevice(c.Request().Context(), claims.UID, req)
	if err != nil {
		if errors.Is(err, push.ErrTokenRejected) {
			return echo.NewHTTPError(http.StatusBadRequest, "Push token was rejected")
		}
		h.logger.Error("register device", "uid", claims.UID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to register device")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": device})
}

// ListDevices returns the caller's registered push tokens
func (h *NotificationHandler) ListDevices(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}

	devices, err := h.pusher.ListDevices(c.Request().Context(), claims.UID)
	if err != nil {
		h.logger.Error("list devices", "uid", claims.UID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load devices")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": devices})
}
