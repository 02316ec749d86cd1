package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/clearspend/clearspend/internal/alerts"
	"github.com/clearspend/clearspend/internal/config"
	"github.com/clearspend/clearspend/internal/db"
	"github.com/clearspend/clearspend/internal/dispatch"
	"github.com/clearspend/clearspend/internal/expenses"
	"github.com/clearspend/clearspend/internal/handlers"
	"github.com/clearspend/clearspend/internal/inference"
	"github.com/clearspend/clearspend/internal/logger"
	"github.com/clearspend/clearspend/internal/server"
	"github.com/clearspend/clearspend/internal/telegram"
	"github.com/clearspend/clearspend/internal/twilio"
	"github.com/clearspend/clearspend/internal/users"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			users.NewService,
			expenses.NewService,
			provideInferenceClient,
			provideTwilioClient,
			provideTelegramClient,
			provideDispatcher,
			handlers.NewPingHandler,
			provideAuthHandler,
			provideTwilioWebhookHandler,
			provideTelegramWebhookHandler,
			handlers.NewExpensesHandler,
			handlers.NewReportsHandler,
			handlers.NewUsersHandler,
			provideAlertsService,
			provideServer,
		),
		fx.Invoke(
			startAlerts,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	return loadConfig()
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := db.Connect(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideInferenceClient(log *slog.Logger, cfg config.Config) *inference.Client {
	return inference.NewClient(log, cfg.Inference)
}

func provideTwilioClient(log *slog.Logger, cfg config.Config) *twilio.Client {
	return twilio.NewClient(log, cfg.Twilio)
}

func provideTelegramClient(log *slog.Logger, cfg config.Config) (*telegram.Client, error) {
	return telegram.NewClient(log, cfg.Telegram)
}

func provideDispatcher(log *slog.Logger, gateway *inference.Client, expenseService *expenses.Service) *dispatch.Dispatcher {
	return dispatch.New(log, gateway, expenseService)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, cfg)
}

func provideTwilioWebhookHandler(log *slog.Logger, cfg config.Config, userService *users.Service, dispatcher *dispatch.Dispatcher, twilioClient *twilio.Client) *handlers.TwilioWebhookHandler {
	return handlers.NewTwilioWebhookHandler(log, cfg.Twilio.AuthToken, userService, dispatcher, twilioClient)
}

func provideTelegramWebhookHandler(log *slog.Logger, telegramClient *telegram.Client, userService *users.Service, dispatcher *dispatch.Dispatcher) *handlers.TelegramWebhookHandler {
	return handlers.NewTelegramWebhookHandler(log, telegramClient, userService, dispatcher)
}

func provideAlertsService(log *slog.Logger, cfg config.Config, userService *users.Service, expenseService *expenses.Service, twilioClient *twilio.Client, telegramClient *telegram.Client) *alerts.Service {
	return alerts.NewService(log, cfg.Alerts, userService, expenseService, twilioClient, telegramClient)
}

func provideServer(log *slog.Logger, cfg config.Config, pingHandler *handlers.PingHandler, authHandler *handlers.AuthHandler, twilioHandler *handlers.TwilioWebhookHandler, telegramHandler *handlers.TelegramWebhookHandler, expensesHandler *handlers.ExpensesHandler, reportsHandler *handlers.ReportsHandler, usersHandler *handlers.UsersHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, cfg.Auth.JWTSecret, pingHandler, authHandler, twilioHandler, telegramHandler, expensesHandler, reportsHandler, usersHandler)
}

func startAlerts(lc fx.Lifecycle, alertService *alerts.Service) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return alertService.Start() },
		OnStop:  func(context.Context) error { alertService.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
