package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clearspend/clearspend/internal/expenses"
)

// ReportsHandler exposes spending aggregates under /api.
type ReportsHandler struct {
	service *expenses.Service
	logger  *slog.Logger
}

func NewReportsHandler(log *slog.Logger, service *expenses.Service) *ReportsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReportsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "reports")),
	}
}

func (h *ReportsHandler) Register(g *echo.Group) {
	g.GET("/reports/summary", h.Summary)
}

// Summary godoc
// @Summary Per-category spending summary
// @Tags reports
// @Produce json
// @Param user_id query string true "Owning user"
// @Param from query string false "Inclusive lower bound (RFC 3339)"
// @Param to query string false "Exclusive upper bound (RFC 3339)"
// @Success 200 {object} expenses.Summary
// @Failure 400 {object} ErrorResponse
// @Router /api/reports/summary [get]
func (h *ReportsHandler) Summary(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	filter, err := parseListFilter(c)
	if err != nil {
		return err
	}
	summary, err := h.service.AggregateByCategory(c.Request().Context(), userID, filter)
	if err != nil {
		if errors.Is(err, expenses.ErrExpenseNotFound) {
			return c.JSON(http.StatusOK, expenses.Summary{ByCategory: map[string]float64{}})
		}
		h.logger.Error("summary failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not build summary")
	}
	return c.JSON(http.StatusOK, summary)
}
