package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/clearspend/clearspend/internal/dispatch"
	"github.com/clearspend/clearspend/internal/users"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramBot is the slice of the Telegram client the webhook handler consumes.
type TelegramBot interface {
	Configured() bool
	VerifySecretToken(got string) bool
	SendMessage(chatID int64, text string) error
	DownloadFile(ctx context.Context, fileID string) (string, error)
}

// TelegramWebhookHandler receives bot API updates. Unlike Twilio, the reply is
// delivered out-of-band through the bot API; the webhook response itself
// carries no message.
type TelegramWebhookHandler struct {
	bot        TelegramBot
	resolver   UserResolver
	dispatcher Replier
	logger     *slog.Logger
}

func NewTelegramWebhookHandler(log *slog.Logger, bot TelegramBot, resolver UserResolver, dispatcher Replier) *TelegramWebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TelegramWebhookHandler{
		bot:        bot,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     log.With(slog.String("handler", "telegram_webhook")),
	}
}

func (h *TelegramWebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/telegram", h.Incoming)
}

// Incoming godoc
// @Summary Telegram bot update webhook
// @Description Verify, classify and answer one inbound Telegram message
// @Tags webhooks
// @Accept json
// @Success 200 {string} string ""
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /webhooks/telegram [post]
func (h *TelegramWebhookHandler) Incoming(c echo.Context) error {
	if !h.bot.Configured() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "telegram channel disabled")
	}
	if !h.bot.VerifySecretToken(c.Request().Header.Get(telegramSecretHeader)) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid secret token")
	}

	var update tgbotapi.Update
	if err := c.Bind(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed update")
	}
	// Edits, callbacks and other non-message updates are acknowledged and
	// dropped; Telegram retries anything else.
	if update.Message == nil {
		return c.NoContent(http.StatusOK)
	}
	inbound := update.Message
	chatID := inbound.Chat.ID
	ctx := c.Request().Context()

	displayName := ""
	if inbound.From != nil {
		displayName = inbound.From.FirstName
	}
	user, err := h.resolver.Resolve(ctx, users.TelegramIdentifier(chatID), displayName)
	if err != nil {
		h.logger.Error("user resolution failed",
			slog.Int64("chat_id", chatID),
			slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not resolve sender")
	}

	msg := dispatch.Message{
		Transport:  users.TransportTelegram,
		Text:       inbound.Text,
		MessageSID: messageID(inbound),
	}
	if fileID, contentType, ok := mediaAttachment(inbound); ok {
		msg.ContentType = contentType
		msg.Fetch = func(ctx context.Context) (string, error) {
			return h.bot.DownloadFile(ctx, fileID)
		}
		if msg.Text == "" {
			msg.Text = inbound.Caption
		}
	}

	reply := h.dispatcher.Handle(ctx, user, msg)
	if err := h.bot.SendMessage(chatID, reply); err != nil {
		// Delivery failure does not re-raise; the message was handled.
		h.logger.Error("telegram reply failed",
			slog.Int64("chat_id", chatID),
			slog.Any("error", err))
	}
	return c.NoContent(http.StatusOK)
}

func messageID(m *tgbotapi.Message) string {
	return "tg-" + strconv.Itoa(m.MessageID)
}

// mediaAttachment picks the downloadable attachment of a message, preferring
// the highest-resolution photo rendition.
func mediaAttachment(m *tgbotapi.Message) (fileID, contentType string, ok bool) {
	switch {
	case len(m.Photo) > 0:
		best := m.Photo[len(m.Photo)-1]
		return best.FileID, "image/jpeg", true
	case m.Voice != nil:
		ct := m.Voice.MimeType
		if ct == "" {
			ct = "audio/ogg"
		}
		return m.Voice.FileID, ct, true
	case m.Audio != nil:
		ct := m.Audio.MimeType
		if ct == "" {
			ct = "audio/mpeg"
		}
		return m.Audio.FileID, ct, true
	case m.Document != nil:
		return m.Document.FileID, m.Document.MimeType, true
	default:
		return "", "", false
	}
}
