package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearspend/clearspend/internal/users"
)

type fakeBot struct {
	configured bool
	secret     string
	sent       []string
	sentChat   int64
	sendErr    error
	filePath   string
	fileIDs    []string
}

func (b *fakeBot) Configured() bool { return b.configured }

func (b *fakeBot) VerifySecretToken(got string) bool {
	return b.secret != "" && got == b.secret
}

func (b *fakeBot) SendMessage(chatID int64, text string) error {
	b.sentChat = chatID
	b.sent = append(b.sent, text)
	return b.sendErr
}

func (b *fakeBot) DownloadFile(_ context.Context, fileID string) (string, error) {
	b.fileIDs = append(b.fileIDs, fileID)
	return b.filePath, nil
}

func serveTelegram(h *TelegramWebhookHandler, body, secret string) *httptest.ResponseRecorder {
	e := echo.New()
	h.Register(e)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if secret != "" {
		req.Header.Set(telegramSecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const telegramTextUpdate = `{
  "update_id": 10,
  "message": {
    "message_id": 44,
    "from": {"id": 99, "first_name": "Ana"},
    "chat": {"id": 99, "type": "private"},
    "text": "Paid $15.50 for lunch"
  }
}`

func TestTelegramIncoming(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{configured: true, secret: "s3cret"}
	resolver := &fakeResolver{user: users.User{ID: "u-1", DisplayName: "Ana"}}
	replier := &fakeReplier{reply: "✅ Logged: 15.50 for lunch (Category: Food/Dining Out)."}
	h := NewTelegramWebhookHandler(nil, bot, resolver, replier)

	rec := serveTelegram(h, telegramTextUpdate, "s3cret")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "telegram:99", resolver.identifier)
	require.Equal(t, 1, replier.calls)
	assert.Equal(t, users.TransportTelegram, replier.msg.Transport)
	assert.Equal(t, "Paid $15.50 for lunch", replier.msg.Text)
	assert.Equal(t, "tg-44", replier.msg.MessageSID)

	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(99), bot.sentChat)
	assert.Contains(t, bot.sent[0], "Logged: 15.50")
}

func TestTelegramIncomingPhoto(t *testing.T) {
	t.Parallel()

	update := `{
	  "update_id": 11,
	  "message": {
	    "message_id": 45,
	    "from": {"id": 99, "first_name": "Ana"},
	    "chat": {"id": 99, "type": "private"},
	    "caption": "dinner receipt",
	    "photo": [
	      {"file_id": "small", "width": 90, "height": 90},
	      {"file_id": "large", "width": 800, "height": 800}
	    ]
	  }
	}`

	bot := &fakeBot{configured: true, secret: "s3cret", filePath: "/tmp/tg-spool"}
	replier := &fakeReplier{reply: "ok"}
	h := NewTelegramWebhookHandler(nil, bot, &fakeResolver{user: users.User{ID: "u-1"}}, replier)

	rec := serveTelegram(h, update, "s3cret")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, replier.calls)
	assert.Equal(t, "image/jpeg", replier.msg.ContentType)
	assert.Equal(t, "dinner receipt", replier.msg.Text, "caption backs the raw text")
	require.NotNil(t, replier.msg.Fetch)

	path, err := replier.msg.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/tg-spool", path)
	assert.Equal(t, []string{"large"}, bot.fileIDs, "highest resolution rendition wins")
}

func TestTelegramIncomingRejections(t *testing.T) {
	t.Parallel()

	t.Run("bad secret", func(t *testing.T) {
		t.Parallel()
		bot := &fakeBot{configured: true, secret: "s3cret"}
		replier := &fakeReplier{}
		h := NewTelegramWebhookHandler(nil, bot, &fakeResolver{}, replier)

		rec := serveTelegram(h, telegramTextUpdate, "wrong")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, replier.calls)
	})

	t.Run("no secret configured fails closed", func(t *testing.T) {
		t.Parallel()
		bot := &fakeBot{configured: true}
		h := NewTelegramWebhookHandler(nil, bot, &fakeResolver{}, &fakeReplier{})

		rec := serveTelegram(h, telegramTextUpdate, "anything")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bot disabled", func(t *testing.T) {
		t.Parallel()
		h := NewTelegramWebhookHandler(nil, &fakeBot{}, &fakeResolver{}, &fakeReplier{})

		rec := serveTelegram(h, telegramTextUpdate, "s3cret")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("non-message update acknowledged", func(t *testing.T) {
		t.Parallel()
		bot := &fakeBot{configured: true, secret: "s3cret"}
		replier := &fakeReplier{}
		h := NewTelegramWebhookHandler(nil, bot, &fakeResolver{}, replier)

		rec := serveTelegram(h, `{"update_id": 12}`, "s3cret")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, replier.calls)
		assert.Empty(t, bot.sent)
	})
}

func TestTelegramDeliveryFailureStillAcks(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{configured: true, secret: "s3cret", sendErr: assert.AnError}
	replier := &fakeReplier{reply: "ok"}
	h := NewTelegramWebhookHandler(nil, bot, &fakeResolver{user: users.User{ID: "u-1"}}, replier)

	rec := serveTelegram(h, telegramTextUpdate, "s3cret")

	assert.Equal(t, http.StatusOK, rec.Code, "delivery failure never re-raises")
	assert.Equal(t, 1, replier.calls)
}
