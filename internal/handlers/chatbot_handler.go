package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yellowcard/backend/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ChatbotHandler exposes the member assistant
type ChatbotHandler struct {
	bot    Chatbot
	logger *slog.Logger
}

func NewChatbotHandler(bot Chatbot, logger *slog.Logger) *ChatbotHandler {
	return &ChatbotHandler{bot: bot, logger: logger}
}

func (h *ChatbotHandler) RegisterChatbotRoutes(g *echo.Group) {
	g.GET("/chatbot/greeting", h.Greeting)
	g.GET("/chatbot/messages", h.History)
	g.POST("/chatbot/messages", h.SendMessage)
}

func (h *ChatbotHandler) Greeting(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": h.bot.Greeting()})
}

// SendMessage answers one prompt. Backend failures are answered in-band by
// the bot, so this only fails on bad input.
func (h *ChatbotHandler) SendMessage(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}

	var req models.ChatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp := h.bot.Respond(c.Request().Context(), claims.UID, req.Message)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": resp})
}

// History returns the member's stored transcript, oldest first
func (h *ChatbotHandler) History(c echo.Context) error {
	claims, err := currentMember(c)
	if err != nil {
		return err
	}

	limit := int64(defaultHistoryLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit")
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	messages, err := h.bot.History(c.Request().Context(), claims.UID, limit)
	if err != nil {
		h.logger.Error("load chat history", "uid", claims.UID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load conversation")
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": messages})
}
