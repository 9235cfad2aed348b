package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yellowcard/backend/internal/readstate"
)

const defaultKeepAlive = 25 * time.Second

// FeedHandler serves the three content feeds with per-member read state
type FeedHandler struct {
	readState ReadState
	logger    *slog.Logger
	keepAlive time.Duration
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(readState ReadState, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{readState: readState, logger: logger, keepAlive: defaultKeepAlive}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feeds/:category", h.GetFeed)
	g.GET("/feeds/:category/stream", h.StreamFeed)
	g.POST("/feeds/:category/:id/read", h.MarkRead)
	g.GET("/badges", h.GetBadges)
}

func categoryParam(c echo.Context) (readstate.Category, error) {
	cat, err := readstate.ParseCategory(c.Param("category"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusNotFound, "Unknown feed category")
	}
	return cat, nil
}

// GetFeed returns the category's items, read flags, unread count and badge
func (h *FeedHandler) GetFeed(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}
	cat, err := categoryParam(c)
	if err != nil {
		return err
	}

	view, err := h.readState.Snapshot(c.Request().Context(), claims.UID, cat)
	if err != nil {
		h.logger.Error("load feed", "uid", claims.UID, "category", cat, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Feed unavailable")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": view})
}

// MarkRead records that the member opened an item
func (h *FeedHandler) MarkRead(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}
	cat, err := categoryParam(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	read, err := h.readState.MarkRead(c.Request().Context(), claims.UID, cat, id)
	if err != nil {
		if errors.Is(err, readstate.ErrEmptyID) {
			return echo.NewHTTPError(http.StatusBadRequest, "Item ID is required")
		}
		h.logger.Error("mark read", "uid", claims.UID, "category", cat, "id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save read state")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"id": id, "read": read.Has(id)}})
}

// GetBadges returns the badge for every category
func (h *FeedHandler) GetBadges(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}

	badges, err := h.readState.Badges(c.Request().Context(), claims.UID)
	if err != nil {
		h.logger.Error("load badges", "uid", claims.UID, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Badges unavailable")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": badges})
}

// StreamFeed mounts the member's live session for the category and writes
// every recomputed view as a server-sent event until the client goes away
// or the upstream feed fails.
func (h *FeedHandler) StreamFeed(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}
	cat, err := categoryParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	session, err := h.readState.Acquire(ctx, claims.UID, cat)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		h.logger.Error("mount feed session", "uid", claims.UID, "category", cat, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Feed unavailable")
	}
	defer h.readState.Release(session)

	views, stop := session.Watch()
	defer stop()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case view, ok := <-views:
			if !ok {
				msg := "feed closed"
				if err := session.Err(); err != nil {
					msg = "feed unavailable"
				}
				writeEvent(w, "end", echo.Map{"message": msg})
				return nil
			}
			if err := writeEvent(w, "view", view); err != nil {
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func writeEvent(w *echo.Response, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
