// Package telegram wraps the bot API for outbound replies and inbound media
// retrieval.
package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clearspend/clearspend/internal/config"
)

var ErrNotConfigured = errors.New("telegram bot not configured")

// Client sends messages and downloads files through the Telegram bot API.
type Client struct {
	bot           *tgbotapi.BotAPI
	webhookSecret string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a Telegram client. A missing bot token is not an error;
// the client stays inert and every operation reports ErrNotConfigured, so the
// service can run WhatsApp-only.
func NewClient(log *slog.Logger, cfg config.TelegramConfig) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        log.With(slog.String("service", "telegram")),
	}
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return c, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	c.bot = bot
	c.logger.Info("telegram bot ready", slog.String("username", bot.Self.UserName))
	return c, nil
}

// Configured reports whether a bot token was provided.
func (c *Client) Configured() bool {
	return c.bot != nil
}

// VerifySecretToken checks the X-Telegram-Bot-Api-Secret-Token header. The
// check fails closed: with no secret configured every update is rejected.
func (c *Client) VerifySecretToken(got string) bool {
	if c.webhookSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.webhookSecret), []byte(got)) == 1
}

// SendMessage delivers a text reply to a chat.
func (c *Client) SendMessage(chatID int64, text string) error {
	if c.bot == nil {
		return ErrNotConfigured
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// DownloadFile fetches a file by its Telegram file ID into a temp file and
// returns its path. The caller owns the file and must remove it.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (string, error) {
	if c.bot == nil {
		return "", ErrNotConfigured
	}
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve telegram file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("build file request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download telegram file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download telegram file: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "clearspend-media-*")
	if err != nil {
		return "", fmt.Errorf("create media spool: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write media spool: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close media spool: %w", err)
	}
	return tmp.Name(), nil
}
