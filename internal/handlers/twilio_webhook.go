package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clearspend/clearspend/internal/dispatch"
	"github.com/clearspend/clearspend/internal/twilio"
	"github.com/clearspend/clearspend/internal/users"
)

const maxWebhookBody = 64 * 1024

const twilioSignatureHeader = "X-Twilio-Signature"

// UserResolver is the slice of the user service webhook handlers consume.
type UserResolver interface {
	Resolve(ctx context.Context, identifier, displayName string) (users.User, error)
}

// Replier produces the single reply for an inbound message.
type Replier interface {
	Handle(ctx context.Context, user users.User, msg dispatch.Message) string
}

// MediaDownloader fetches inbound media to a local temp file.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaURL string) (string, error)
}

// TwilioWebhookHandler receives Twilio messaging webhooks, verifies their
// signature, and routes them through the dispatcher. Verification happens
// before any side effect; an unsigned or mis-signed request never reaches
// user resolution or persistence.
type TwilioWebhookHandler struct {
	authToken  string
	resolver   UserResolver
	dispatcher Replier
	media      MediaDownloader
	logger     *slog.Logger
}

func NewTwilioWebhookHandler(log *slog.Logger, authToken string, resolver UserResolver, dispatcher Replier, media MediaDownloader) *TwilioWebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TwilioWebhookHandler{
		authToken:  strings.TrimSpace(authToken),
		resolver:   resolver,
		dispatcher: dispatcher,
		media:      media,
		logger:     log.With(slog.String("handler", "twilio_webhook")),
	}
}

func (h *TwilioWebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/twilio/incoming", h.Incoming)
	e.POST("/webhooks/twilio/status", h.Status)
}

// verify authenticates the request and returns its parsed form. The error,
// when non-nil, is the final HTTP response for the request.
func (h *TwilioWebhookHandler) verify(c echo.Context) (url.Values, error) {
	if h.authToken == "" {
		h.logger.Error("twilio auth token not configured, rejecting webhook")
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "webhook verification unavailable")
	}
	signature := c.Request().Header.Get(twilioSignatureHeader)
	if signature == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "missing signature")
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if len(body) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "missing body")
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	requestURL := twilio.RequestURL(c.Request())
	if !twilio.ValidateSignature(h.authToken, signature, requestURL, form) {
		h.logger.Warn("twilio signature rejected", slog.String("url", requestURL))
		return nil, echo.NewHTTPError(http.StatusForbidden, "invalid signature")
	}
	return form, nil
}

// Incoming godoc
// @Summary Twilio inbound message webhook
// @Description Verify, classify and answer one inbound WhatsApp/SMS message
// @Tags webhooks
// @Accept x-www-form-urlencoded
// @Produce xml
// @Success 200 {string} string "TwiML reply"
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /webhooks/twilio/incoming [post]
func (h *TwilioWebhookHandler) Incoming(c echo.Context) error {
	form, err := h.verify(c)
	if err != nil {
		return err
	}

	from := strings.TrimSpace(form.Get("From"))
	if from == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing sender")
	}
	messageSID := form.Get("MessageSid")
	ctx := c.Request().Context()

	user, err := h.resolver.Resolve(ctx, users.NormalizeIdentifier(from), form.Get("ProfileName"))
	if err != nil {
		h.logger.Error("user resolution failed",
			slog.String("message_sid", messageSID),
			slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not resolve sender")
	}

	msg := dispatch.Message{
		Transport:  users.TransportWhatsApp,
		Text:       form.Get("Body"),
		MessageSID: messageSID,
	}
	if numMedia, _ := strconv.Atoi(form.Get("NumMedia")); numMedia > 0 {
		mediaURL := form.Get("MediaUrl0")
		msg.ContentType = form.Get("MediaContentType0")
		msg.Fetch = func(ctx context.Context) (string, error) {
			return h.media.DownloadMedia(ctx, mediaURL)
		}
	}

	reply := h.dispatcher.Handle(ctx, user, msg)
	twiml, err := twilio.MessagingTwiML(reply)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not render reply")
	}
	return c.Blob(http.StatusOK, "text/xml; charset=utf-8", []byte(twiml))
}

// Status godoc
// @Summary Twilio delivery status callback
// @Description Acknowledge a delivery status update; currently log-only
// @Tags webhooks
// @Accept x-www-form-urlencoded
// @Success 204 {string} string ""
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /webhooks/twilio/status [post]
func (h *TwilioWebhookHandler) Status(c echo.Context) error {
	form, err := h.verify(c)
	if err != nil {
		return err
	}
	h.logger.Info("delivery status",
		slog.String("message_sid", form.Get("MessageSid")),
		slog.String("status", form.Get("MessageStatus")))
	return c.NoContent(http.StatusNoContent)
}
