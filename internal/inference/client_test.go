package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearspend/clearspend/internal/config"
)

func newTestClient(t *testing.T, cfg config.InferenceConfig) *Client {
	t.Helper()
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 5
	}
	return NewClient(nil, cfg)
}

func decodeJSONBody(t *testing.T, r *http.Request, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(out))
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtractFromTextExpense(t *testing.T) {
	t.Parallel()

	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		decodeJSONBody(t, r, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"intent":"add_expense","entities":{"amount":12.5,"category":"Groceries","description":"milk"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, config.InferenceConfig{NLPURL: srv.URL})
	res := client.ExtractFromText(context.Background(), "Paid 12.50 for milk")

	assert.Equal(t, ResultExpense, res.Kind)
	assert.Equal(t, IntentAddExpense, res.Intent)
	require.NotNil(t, res.Amount)
	assert.InDelta(t, 12.5, *res.Amount, 0.001)
	assert.Equal(t, "Groceries", res.Category)
	assert.Equal(t, "milk", res.Description)
	assert.Equal(t, "Paid 12.50 for milk", gotBody["message"])
}

func TestExtractFromTextNoAmount(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"intent":"add_expense","entities":{"category":"Groceries"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, config.InferenceConfig{NLPURL: srv.URL})
	res := client.ExtractFromText(context.Background(), "I bought some milk")

	assert.Equal(t, ResultNoExpense, res.Kind)
	assert.Equal(t, IntentAddExpense, res.Intent)
	assert.Nil(t, res.Amount)
}

func TestExtractFromTextOtherIntents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		intent Intent
	}{
		{name: "greeting", body: `{"intent":"greeting","entities":{}}`, intent: IntentGreeting},
		{name: "report", body: `{"intent":"get_report","entities":{}}`, intent: IntentGetReport},
		{name: "limit", body: `{"intent":"set_limit","entities":{}}`, intent: IntentSetLimit},
		{name: "unrecognized tag maps to unknown", body: `{"intent":"order_pizza","entities":{}}`, intent: IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := newTestClient(t, config.InferenceConfig{NLPURL: srv.URL})
			res := client.ExtractFromText(context.Background(), "hi")

			assert.Equal(t, ResultNoExpense, res.Kind)
			assert.Equal(t, tt.intent, res.Intent)
		})
	}
}

func TestExtractFromTextFailures(t *testing.T) {
	t.Parallel()

	t.Run("unconfigured", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, config.InferenceConfig{})
		res := client.ExtractFromText(context.Background(), "hi")
		assert.Equal(t, ResultError, res.Kind)
		assert.ErrorIs(t, res.Err, ErrUnconfigured)
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := newTestClient(t, config.InferenceConfig{NLPURL: srv.URL})
		res := client.ExtractFromText(context.Background(), "hi")
		assert.Equal(t, ResultError, res.Kind)
		assert.ErrorIs(t, res.Err, ErrUnreachable)
	})

	t.Run("unreachable host", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, config.InferenceConfig{NLPURL: "http://127.0.0.1:1", TimeoutSeconds: 1})
		res := client.ExtractFromText(context.Background(), "hi")
		assert.Equal(t, ResultError, res.Kind)
		assert.ErrorIs(t, res.Err, ErrUnreachable)
	})

	t.Run("non-json payload", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		}))
		defer srv.Close()

		client := newTestClient(t, config.InferenceConfig{NLPURL: srv.URL})
		res := client.ExtractFromText(context.Background(), "hi")
		assert.Equal(t, ResultError, res.Kind)
		assert.ErrorIs(t, res.Err, ErrMalformedResponse)
	})

	t.Run("missing intent field", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"entities":{}}`))
		}))
		defer srv.Close()

		client := newTestClient(t, config.InferenceConfig{NLPURL: srv.URL})
		res := client.ExtractFromText(context.Background(), "hi")
		assert.Equal(t, ResultError, res.Kind)
		assert.ErrorIs(t, res.Err, ErrMalformedResponse)
	})
}

func TestExtractFromImage(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, header, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "receipt.jpg", header.Filename)
			_, _ = w.Write([]byte(`{"success":true,"amount":42.99,"category":"Shopping","description":"shoes"}`))
		}))
		defer srv.Close()

		client := newTestClient(t, config.InferenceConfig{ExtractExpenseURL: srv.URL})
		path := writeTempFile(t, "receipt.jpg", "jpegbytes")
		res := client.ExtractFromImage(context.Background(), path)

		assert.Equal(t, ResultExpense, res.Kind)
		require.NotNil(t, res.Amount)
		assert.InDelta(t, 42.99, *res.Amount, 0.001)
		assert.Equal(t, "Shopping", res.Category)
	})

	t.Run("no expense in image", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"no receipt detected"}`))
		}))
		defer srv.Close()

		client := newTestClient(t, config.InferenceConfig{ExtractExpenseURL: srv.URL})
		path := writeTempFile(t, "selfie.jpg", "jpegbytes")
		res := client.ExtractFromImage(context.Background(), path)

		assert.Equal(t, ResultNoExpense, res.Kind)
		assert.Equal(t, "no receipt detected", res.Message)
	})

	t.Run("source file missing", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, config.InferenceConfig{ExtractExpenseURL: "http://example.invalid"})
		res := client.ExtractFromImage(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))

		assert.Equal(t, ResultError, res.Kind)
		assert.ErrorIs(t, res.Err, ErrSourceMissing)
	})
}

func TestExtractFromAudio(t *testing.T) {
	t.Parallel()

	t.Run("expense heard", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"transcript":"paid ten dollars for coffee","intent":"add_expense","entities":{"amount":10,"category":"Coffee","description":"coffee"}}`))
		}))
		defer srv.Close()

		client := newTestClient(t, config.InferenceConfig{TranscribeURL: srv.URL})
		path := writeTempFile(t, "note.ogg", "oggbytes")
		res := client.ExtractFromAudio(context.Background(), path)

		assert.Equal(t, ResultExpense, res.Kind)
		assert.Equal(t, "paid ten dollars for coffee", res.Transcript)
		require.NotNil(t, res.Amount)
		assert.InDelta(t, 10, *res.Amount, 0.001)
	})

	t.Run("transcript only", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"transcript":"what a nice day"}`))
		}))
		defer srv.Close()

		client := newTestClient(t, config.InferenceConfig{TranscribeURL: srv.URL})
		path := writeTempFile(t, "note.ogg", "oggbytes")
		res := client.ExtractFromAudio(context.Background(), path)

		assert.Equal(t, ResultTranscript, res.Kind)
		assert.Equal(t, "what a nice day", res.Transcript)
	})

	t.Run("empty response", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		client := newTestClient(t, config.InferenceConfig{TranscribeURL: srv.URL})
		path := writeTempFile(t, "note.ogg", "oggbytes")
		res := client.ExtractFromAudio(context.Background(), path)

		assert.Equal(t, ResultError, res.Kind)
		assert.ErrorIs(t, res.Err, ErrMalformedResponse)
	})
}
