package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(authToken, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	t.Parallel()

	const authToken = "12345"
	requestURL := "https://example.com/webhooks/twilio/incoming"
	form := url.Values{}
	form.Set("From", "whatsapp:+14155238886")
	form.Set("Body", "Paid $10 for coffee")
	form.Set("NumMedia", "0")

	sig := signPayload(authToken, requestURL, form)

	assert.True(t, ValidateSignature(authToken, sig, requestURL, form))
	assert.False(t, ValidateSignature(authToken, sig, requestURL+"x", form), "url change invalidates")
	assert.False(t, ValidateSignature("other", sig, requestURL, form), "wrong token invalidates")
	assert.False(t, ValidateSignature(authToken, "bogus", requestURL, form))
	assert.False(t, ValidateSignature(authToken, "", requestURL, form), "empty signature never valid")
	assert.False(t, ValidateSignature("", sig, requestURL, form), "missing token fails closed")

	tampered := url.Values{}
	for k := range form {
		tampered.Set(k, form.Get(k))
	}
	tampered.Set("Body", "Paid $9999 for coffee")
	assert.False(t, ValidateSignature(authToken, sig, requestURL, tampered), "param change invalidates")
}

func TestValidateSignatureNoParams(t *testing.T) {
	t.Parallel()

	const authToken = "secret"
	requestURL := "https://example.com/webhooks/twilio/status"
	sig := signPayload(authToken, requestURL, url.Values{})
	assert.True(t, ValidateSignature(authToken, sig, requestURL, url.Values{}))
}

func TestRequestURL(t *testing.T) {
	t.Parallel()

	t.Run("honors forwarded proto", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("POST", "http://example.com/webhooks/twilio/incoming?x=1", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		assert.Equal(t, "https://example.com/webhooks/twilio/incoming?x=1", RequestURL(req))
	})

	t.Run("defaults to request scheme", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest("POST", "http://example.com/webhooks/twilio/incoming", nil)
		assert.Equal(t, "http://example.com/webhooks/twilio/incoming", RequestURL(req))
	})
}

func TestMessagingTwiML(t *testing.T) {
	t.Parallel()

	out, err := MessagingTwiML(`Logged: 10.00 for coffee <3 & snacks`)
	require.NoError(t, err)
	assert.Contains(t, out, "<Response><Message>")
	assert.Contains(t, out, "&lt;3 &amp; snacks", "message body is xml-escaped")
	assert.True(t, strings.HasPrefix(out, "<?xml"))
}
