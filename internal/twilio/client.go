package twilio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/clearspend/clearspend/internal/config"
)

const apiBase = "https://api.twilio.com/2010-04-01"

var ErrNotConfigured = errors.New("twilio credentials not configured")

// Client sends outbound WhatsApp messages and fetches inbound media over the
// Twilio REST API.
type Client struct {
	accountSID     string
	authToken      string
	whatsappNumber string
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewClient creates a Twilio REST client from configuration.
func NewClient(log *slog.Logger, cfg config.TwilioConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		accountSID:     strings.TrimSpace(cfg.AccountSID),
		authToken:      strings.TrimSpace(cfg.AuthToken),
		whatsappNumber: strings.TrimSpace(cfg.WhatsAppNumber),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         log.With(slog.String("service", "twilio")),
	}
}

// AuthToken exposes the signing secret for webhook validation.
func (c *Client) AuthToken() string {
	return c.authToken
}

// Configured reports whether outbound sending is possible.
func (c *Client) Configured() bool {
	return c.accountSID != "" && c.authToken != "" && c.whatsappNumber != ""
}

// SendWhatsApp delivers a proactive message to the given E.164 number.
func (c *Client) SendWhatsApp(ctx context.Context, to, body string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	form := url.Values{}
	form.Set("From", "whatsapp:"+c.whatsappNumber)
	form.Set("To", "whatsapp:"+strings.TrimPrefix(to, "whatsapp:"))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", apiBase, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send whatsapp message: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	c.logger.Info("whatsapp message sent", slog.String("to", to))
	return nil
}

// DownloadMedia fetches a media URL from an inbound message into a temp file
// and returns its path. The caller owns the file and must remove it.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	// Twilio media URLs require the same basic auth as the REST API.
	if c.accountSID != "" && c.authToken != "" {
		req.SetBasicAuth(c.accountSID, c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download media: status %d", resp.StatusCode)
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
