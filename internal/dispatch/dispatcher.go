// Package dispatch turns a classified inbound message into at most one
// expense write and exactly one reply string. It is the only place reply
// wording lives; transports render the string, they never compose it.
package dispatch

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/clearspend/clearspend/internal/categories"
	"github.com/clearspend/clearspend/internal/expenses"
	"github.com/clearspend/clearspend/internal/inference"
	"github.com/clearspend/clearspend/internal/users"
)

// Gateway is the slice of the inference client the dispatcher consumes.
type Gateway interface {
	ExtractFromText(ctx context.Context, text string) inference.Result
	ExtractFromImage(ctx context.Context, filePath string) inference.Result
	ExtractFromAudio(ctx context.Context, filePath string) inference.Result
}

// ExpenseWriter is the slice of the expense service the dispatcher consumes.
type ExpenseWriter interface {
	Create(ctx context.Context, input expenses.CreateInput) (expenses.Expense, error)
}

// FetchFunc downloads the media of the in-flight message to a local temp file
// and returns its path. The dispatcher owns cleanup of the returned file.
type FetchFunc func(ctx context.Context) (string, error)

// Message is one inbound chat message after transport decoding.
type Message struct {
	Transport  users.Transport
	Text       string
	MessageSID string

	// Media fields; ContentType empty means a plain text message.
	ContentType string
	Fetch       FetchFunc
}

// Dispatcher routes inbound messages through classification to persistence
// and produces the reply text.
type Dispatcher struct {
	gateway  Gateway
	expenses ExpenseWriter
	logger   *slog.Logger
}

// New creates a dispatcher.
func New(log *slog.Logger, gateway Gateway, writer ExpenseWriter) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		gateway:  gateway,
		expenses: writer,
		logger:   log.With(slog.String("service", "dispatch")),
	}
}

// Handle processes one inbound message and returns the reply text. It never
// returns an error: every failure, including a panic below the dispatcher,
// becomes an apology reply, because the transport must answer every webhook.
func (d *Dispatcher) Handle(ctx context.Context, user users.User, msg Message) (reply string) {
	apology := replyTextError
	if msg.ContentType != "" {
		apology = replyMediaError
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch panic recovered",
				slog.Any("panic", r),
				slog.String("message_sid", msg.MessageSID))
			reply = apology
		}
	}()

	if msg.ContentType != "" {
		return d.handleMedia(ctx, user, msg)
	}
	return d.handleText(ctx, user, msg)
}

func (d *Dispatcher) handleText(ctx context.Context, user users.User, msg Message) string {
	result := d.gateway.ExtractFromText(ctx, msg.Text)
	if result.Kind == inference.ResultError {
		return replyTextError
	}
	return d.resolveResult(ctx, user, msg, result, msg.Text, replyTextError)
}

func (d *Dispatcher) handleMedia(ctx context.Context, user users.User, msg Message) string {
	// Reject unsupported types before spending a download.
	isImage := strings.HasPrefix(msg.ContentType, "image/")
	isAudio := strings.HasPrefix(msg.ContentType, "audio/")
	if !isImage && !isAudio {
		return replyUnsupportedMedia(msg.ContentType)
	}

	filePath, err := msg.Fetch(ctx)
	if err != nil {
		d.logger.Error("media download failed",
			slog.String("message_sid", msg.MessageSID),
			slog.Any("error", err))
		return replyMediaError
	}
	defer func() {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("media spool cleanup failed", slog.String("path", filePath), slog.Any("error", err))
		}
	}()

	var result inference.Result
	if isImage {
		result = d.gateway.ExtractFromImage(ctx, filePath)
	} else {
		result = d.gateway.ExtractFromAudio(ctx, filePath)
	}
	if result.Kind == inference.ResultError {
		return replyMediaError
	}

	fallbackDescription := "Receipt"
	if isAudio {
		fallbackDescription = "Voice note"
		if result.Transcript != "" {
			fallbackDescription = result.Transcript
		}
	}
	return d.resolveResult(ctx, user, msg, result, fallbackDescription, replyMediaError)
}

// resolveResult maps a non-error gateway result to the persisted-or-
// informational outcome and its reply.
func (d *Dispatcher) resolveResult(ctx context.Context, user users.User, msg Message, result inference.Result, fallbackDescription, apology string) string {
	switch {
	case result.HasAmount():
		description := result.Description
		if strings.TrimSpace(description) == "" {
			description = fallbackDescription
		}
		expense, err := d.expenses.Create(ctx, expenses.CreateInput{
			UserID:      user.ID,
			Amount:      *result.Amount,
			Category:    categories.Normalize(result.Category),
			Description: description,
			Source:      string(msg.Transport),
			MessageSID:  msg.MessageSID,
		})
		if err != nil {
			d.logger.Error("expense write failed",
				slog.String("user_id", user.ID),
				slog.String("message_sid", msg.MessageSID),
				slog.Any("error", err))
			return apology
		}
		d.logger.Info("expense logged",
			slog.String("user_id", user.ID),
			slog.Float64("amount", expense.Amount),
			slog.String("category", expense.Category))
		return replyLogged(expense.Amount, expense.Description, expense.Category)

	case result.Kind == inference.ResultTranscript:
		return replyTranscriptOnly(result.Transcript)

	case result.Intent == inference.IntentAddExpense:
		if strings.HasPrefix(msg.ContentType, "image/") {
			return replyNoExpenseInImage(result.Message)
		}
		if result.Transcript != "" {
			return replyClarifyAmountHeard(result.Transcript)
		}
		return replyClarifyAmount

	case result.Intent == inference.IntentGetReport:
		return replyReportStub

	case result.Intent == inference.IntentSetLimit:
		return replyLimitStub

	case result.Intent == inference.IntentGreeting:
		return replyGreeting(user.DisplayName)

	default:
		return replyUnknown
	}
}
