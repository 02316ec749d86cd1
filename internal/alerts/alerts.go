// Package alerts runs the scheduled monthly-limit sweep: each run compares
// every limited user's month-to-date spend against their limit and sends a
// proactive message on the channel they came from.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clearspend/clearspend/internal/config"
	"github.com/clearspend/clearspend/internal/users"
)

// UserLister is the slice of the user service the sweep consumes.
type UserLister interface {
	ListWithLimit(ctx context.Context) ([]users.User, error)
}

// SpendReader is the slice of the expense service the sweep consumes.
type SpendReader interface {
	MonthToDateTotal(ctx context.Context, userID string, now time.Time) (float64, error)
}

// WhatsAppSender delivers proactive WhatsApp messages.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, body string) error
}

// TelegramSender delivers proactive Telegram messages.
type TelegramSender interface {
	SendMessage(chatID int64, text string) error
}

// Service owns the cron schedule and the sweep itself.
type Service struct {
	cfg      config.AlertsConfig
	users    UserLister
	spend    SpendReader
	whatsapp WhatsAppSender
	telegram TelegramSender
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewService(log *slog.Logger, cfg config.AlertsConfig, userLister UserLister, spend SpendReader, whatsapp WhatsAppSender, telegram TelegramSender) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		users:    userLister,
		spend:    spend,
		whatsapp: whatsapp,
		telegram: telegram,
		cron:     cron.New(),
		logger:   log.With(slog.String("service", "alerts")),
	}
}

// Start registers the sweep on the configured cron expression and starts the
// scheduler. Disabled config is a no-op.
func (s *Service) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("limit alerts disabled")
		return nil
	}
	spec := strings.TrimSpace(s.cfg.Cron)
	if spec == "" {
		spec = config.DefaultAlertCron
	}
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.Sweep(ctx, time.Now().UTC())
	}); err != nil {
		return fmt.Errorf("schedule limit sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("limit alerts scheduled", slog.String("cron", spec))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep performs one pass over all limited users. Send failures are logged
// per user and never abort the rest of the pass.
func (s *Service) Sweep(ctx context.Context, now time.Time) {
	limited, err := s.users.ListWithLimit(ctx)
	if err != nil {
		s.logger.Error("limit sweep aborted", slog.Any("error", err))
		return
	}
	for _, user := range limited {
		if user.MonthlyLimit == nil {
			continue
		}
		total, err := s.spend.MonthToDateTotal(ctx, user.ID, now)
		if err != nil {
			s.logger.Error("month-to-date total failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
			continue
		}
		if total <= *user.MonthlyLimit {
			continue
		}
		body := limitAlertText(total, *user.MonthlyLimit)
		if err := s.deliver(ctx, user, body); err != nil {
			s.logger.Error("limit alert delivery failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err))
			continue
		}
		s.logger.Info("limit alert sent",
			slog.String("user_id", user.ID),
			slog.Float64("total", total),
			slog.Float64("limit", *user.MonthlyLimit))
	}
}

func (s *Service) deliver(ctx context.Context, user users.User, body string) error {
	if raw, ok := strings.CutPrefix(user.Identifier, "telegram:"); ok {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("bad telegram identifier %q: %w", user.Identifier, err)
		}
		return s.telegram.SendMessage(chatID, body)
	}
	return s.whatsapp.SendWhatsApp(ctx, user.Identifier, body)
}

func limitAlertText(total, limit float64) string {
	return fmt.Sprintf("⚠️ Heads up! You've spent %.2f this month, which is over your limit of %.2f.", total, limit)
}
