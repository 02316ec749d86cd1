// Package server wires the echo instance: middleware, JWT guard, and route
// registration.
package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/clearspend/clearspend/internal/auth"
	"github.com/clearspend/clearspend/internal/handlers"
)

type Server struct {
	echo *echo.Echo
	addr string
}

// shouldSkipJWT exempts the health, login and webhook surfaces from the JWT
// guard. Webhooks carry their own authentication (provider signatures).
func shouldSkipJWT(path string) bool {
	if path == "/ping" || path == "/health" || path == "/auth/login" {
		return true
	}
	return strings.HasPrefix(path, "/webhooks/")
}

func NewServer(log *slog.Logger, addr string, jwtSecret string, pingHandler *handlers.PingHandler, authHandler *handlers.AuthHandler, twilioHandler *handlers.TwilioWebhookHandler, telegramHandler *handlers.TelegramWebhookHandler, expensesHandler *handlers.ExpensesHandler, reportsHandler *handlers.ReportsHandler, usersHandler *handlers.UsersHandler) *Server {
	if log == nil {
		log = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
				log.LogAttrs(c.Request().Context(), slog.LevelWarn, "request", attrs...)
				return nil
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		return shouldSkipJWT(c.Request().URL.Path)
	}))

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if authHandler != nil {
		authHandler.Register(e)
	}
	if twilioHandler != nil {
		twilioHandler.Register(e)
	}
	if telegramHandler != nil {
		telegramHandler.Register(e)
	}

	api := e.Group("/api")
	if expensesHandler != nil {
		expensesHandler.Register(api)
	}
	if reportsHandler != nil {
		reportsHandler.Register(api)
	}
	if usersHandler != nil {
		usersHandler.Register(api)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
