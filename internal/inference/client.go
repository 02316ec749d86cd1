// Package inference is a thin HTTP gateway over the external understanding
// endpoints: text intent extraction, receipt image extraction, and audio
// transcription. Every failure degrades to a Result of kind ResultError so
// callers never see a hard error from an external dependency.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clearspend/clearspend/internal/config"
)

var (
	ErrUnconfigured      = errors.New("inference endpoint not configured")
	ErrUnreachable       = errors.New("inference endpoint unreachable")
	ErrMalformedResponse = errors.New("malformed inference response")
	ErrSourceMissing     = errors.New("source file missing")
)

// Client calls the configured inference endpoints.
type Client struct {
	nlpURL        string
	extractURL    string
	transcribeURL string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates an inference gateway from configuration.
func NewClient(log *slog.Logger, cfg config.InferenceConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		nlpURL:        strings.TrimSpace(cfg.NLPURL),
		extractURL:    strings.TrimSpace(cfg.ExtractExpenseURL),
		transcribeURL: strings.TrimSpace(cfg.TranscribeURL),
		httpClient:    &http.Client{Timeout: timeout},
		logger:        log.With(slog.String("service", "inference")),
	}
}

type entities struct {
	Amount      *float64 `json:"amount"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
}

type extractResponse struct {
	Success     bool     `json:"success"`
	Amount      *float64 `json:"amount"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Message     string   `json:"message"`
}

// ExtractFromText posts a text message to the NLP endpoint and normalizes the
// intent/entity response.
func (c *Client) ExtractFromText(ctx context.Context, text string) Result {
	if c.nlpURL == "" {
		return c.failure(ErrUnconfigured, "nlp endpoint missing")
	}
	payload, _ := json.Marshal(map[string]string{"message": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nlpURL, bytes.NewReader(payload))
	if err != nil {
		return c.failure(fmt.Errorf("%w: %s", ErrUnreachable, err), "build nlp request")
	}
	req.Header.Set("Content-Type", "application/json")

	var parsed struct {
		Intent   string   `json:"intent"`
		Entities entities `json:"entities"`
	}
	if err := c.do(req, &parsed); err != nil {
		return c.failure(err, "call nlp endpoint")
	}
	if strings.TrimSpace(parsed.Intent) == "" {
		return c.failure(fmt.Errorf("%w: intent field missing", ErrMalformedResponse), "parse nlp response")
	}
	return resultFromIntent(parseIntent(parsed.Intent), parsed.Entities, "")
}

// ExtractFromImage uploads a local image file to the receipt extraction
// endpoint.
func (c *Client) ExtractFromImage(ctx context.Context, filePath string) Result {
	if c.extractURL == "" {
		return c.failure(ErrUnconfigured, "extract endpoint missing")
	}
	req, err := c.newUploadRequest(ctx, c.extractURL, filePath)
	if err != nil {
		return c.failure(err, "build image upload")
	}

	var parsed extractResponse
	if err := c.do(req, &parsed); err != nil {
		return c.failure(err, "call extract endpoint")
	}
	if !parsed.Success {
		return Result{Kind: ResultNoExpense, Intent: IntentAddExpense, Message: strings.TrimSpace(parsed.Message)}
	}
	if parsed.Amount == nil || *parsed.Amount < 0 {
		return Result{Kind: ResultNoExpense, Intent: IntentAddExpense}
	}
	return Result{
		Kind:        ResultExpense,
		Intent:      IntentAddExpense,
		Amount:      parsed.Amount,
		Category:    strings.TrimSpace(parsed.Category),
		Description: strings.TrimSpace(parsed.Description),
	}
}

// ExtractFromAudio uploads a local audio file to the transcription endpoint.
// The transcript is surfaced even when no monetary entity was found, so the
// user can verify what was heard.
func (c *Client) ExtractFromAudio(ctx context.Context, filePath string) Result {
	if c.transcribeURL == "" {
		return c.failure(ErrUnconfigured, "transcribe endpoint missing")
	}
	req, err := c.newUploadRequest(ctx, c.transcribeURL, filePath)
	if err != nil {
		return c.failure(err, "build audio upload")
	}

	var parsed struct {
		Transcript string   `json:"transcript"`
		Intent     string   `json:"intent"`
		Entities   entities `json:"entities"`
	}
	if err := c.do(req, &parsed); err != nil {
		return c.failure(err, "call transcribe endpoint")
	}
	transcript := strings.TrimSpace(parsed.Transcript)
	if strings.TrimSpace(parsed.Intent) == "" {
		if transcript == "" {
			return c.failure(fmt.Errorf("%w: intent and transcript missing", ErrMalformedResponse), "parse transcribe response")
		}
		return Result{Kind: ResultTranscript, Intent: IntentUnknown, Transcript: transcript}
	}
	return resultFromIntent(parseIntent(parsed.Intent), parsed.Entities, transcript)
}

func (c *Client) newUploadRequest(ctx context.Context, url, filePath string) (*http.Request, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, filePath)
		}
		return nil, fmt.Errorf("open upload source: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read upload source: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) failure(err error, op string) Result {
	c.logger.Warn("inference call failed", slog.String("op", op), slog.Any("error", err))
	return Result{Kind: ResultError, Intent: IntentUnknown, Err: err}
}

func parseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentAddExpense:
		return IntentAddExpense
	case IntentGetReport:
		return IntentGetReport
	case IntentSetLimit:
		return IntentSetLimit
	case IntentGreeting:
		return IntentGreeting
	default:
		return IntentUnknown
	}
}

func resultFromIntent(intent Intent, ent entities, transcript string) Result {
	if intent == IntentAddExpense {
		if ent.Amount == nil || *ent.Amount < 0 {
			return Result{Kind: ResultNoExpense, Intent: intent, Transcript: transcript}
		}
		return Result{
			Kind:        ResultExpense,
			Intent:      intent,
			Amount:      ent.Amount,
			Category:    strings.TrimSpace(ent.Category),
			Description: strings.TrimSpace(ent.Description),
			Transcript:  transcript,
		}
	}
	if transcript != "" && intent == IntentUnknown {
		return Result{Kind: ResultTranscript, Intent: intent, Transcript: transcript}
	}
	return Result{Kind: ResultNoExpense, Intent: intent, Transcript: transcript}
}
