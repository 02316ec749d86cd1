// Package twilio implements the webhook signature check, TwiML reply
// rendering, and the small slice of the Twilio REST API this service needs:
// sending WhatsApp messages and downloading inbound media.
package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ValidateSignature checks the X-Twilio-Signature header against the request.
// Twilio signs the full request URL with every POST parameter appended in
// lexicographic key order, HMAC-SHA1 keyed by the account auth token, base64
// encoded. The comparison is constant time.
func ValidateSignature(authToken, signature, requestURL string, form url.Values) bool {
	if authToken == "" || signature == "" {
		return false
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		// Twilio concatenates key and first value with no separator.
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// RequestURL reconstructs the public URL Twilio signed. Behind a proxy the
// scheme comes from X-Forwarded-Proto, not the local listener.
func RequestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
