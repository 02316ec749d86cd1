package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clearspend/clearspend/internal/expenses"
)

// ExpensesHandler exposes owner-scoped expense CRUD under /api.
type ExpensesHandler struct {
	service *expenses.Service
	logger  *slog.Logger
}

func NewExpensesHandler(log *slog.Logger, service *expenses.Service) *ExpensesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ExpensesHandler{
		service: service,
		logger:  log.With(slog.String("handler", "expenses")),
	}
}

func (h *ExpensesHandler) Register(g *echo.Group) {
	g.POST("/expenses", h.Create)
	g.GET("/expenses", h.List)
	g.GET("/expenses/:id", h.Get)
	g.PUT("/expenses/:id", h.Update)
	g.DELETE("/expenses/:id", h.Delete)
}

type createExpenseRequest struct {
	UserID      string    `json:"user_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	SpentAt     time.Time `json:"spent_at"`
}

// Create godoc
// @Summary Record an expense
// @Tags expenses
// @Accept json
// @Produce json
// @Param request body createExpenseRequest true "Expense"
// @Success 201 {object} expenses.Expense
// @Failure 400 {object} ErrorResponse
// @Router /api/expenses [post]
func (h *ExpensesHandler) Create(c echo.Context) error {
	var req createExpenseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	expense, err := h.service.Create(c.Request().Context(), expenses.CreateInput{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		SpentAt:     req.SpentAt,
		Source:      "web",
	})
	if err != nil {
		if errors.Is(err, expenses.ErrInvalidExpense) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("create expense failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create expense")
	}
	return c.JSON(http.StatusCreated, expense)
}

// List godoc
// @Summary List a user's expenses
// @Tags expenses
// @Produce json
// @Param user_id query string true "Owning user"
// @Param category query string false "Category filter"
// @Param from query string false "Inclusive lower bound (RFC 3339)"
// @Param to query string false "Exclusive upper bound (RFC 3339)"
// @Success 200 {array} expenses.Expense
// @Failure 400 {object} ErrorResponse
// @Router /api/expenses [get]
func (h *ExpensesHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	filter, err := parseListFilter(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListByUser(c.Request().Context(), userID, filter)
	if err != nil {
		if errors.Is(err, expenses.ErrExpenseNotFound) {
			return c.JSON(http.StatusOK, []expenses.Expense{})
		}
		h.logger.Error("list expenses failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list expenses")
	}
	return c.JSON(http.StatusOK, items)
}

// Get godoc
// @Summary Get one expense
// @Tags expenses
// @Produce json
// @Param id path string true "Expense id"
// @Param user_id query string true "Owning user"
// @Success 200 {object} expenses.Expense
// @Failure 404 {object} ErrorResponse
// @Router /api/expenses/{id} [get]
func (h *ExpensesHandler) Get(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	expense, err := h.service.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return expenseError(h.logger, "get expense", err)
	}
	return c.JSON(http.StatusOK, expense)
}

// Update godoc
// @Summary Update an expense
// @Tags expenses
// @Accept json
// @Produce json
// @Param id path string true "Expense id"
// @Param user_id query string true "Owning user"
// @Param request body expenses.UpdateInput true "Fields to change"
// @Success 200 {object} expenses.Expense
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/expenses/{id} [put]
func (h *ExpensesHandler) Update(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var input expenses.UpdateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	expense, err := h.service.Update(c.Request().Context(), userID, c.Param("id"), input)
	if err != nil {
		if errors.Is(err, expenses.ErrInvalidExpense) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return expenseError(h.logger, "update expense", err)
	}
	return c.JSON(http.StatusOK, expense)
}

// Delete godoc
// @Summary Delete an expense
// @Tags expenses
// @Param id path string true "Expense id"
// @Param user_id query string true "Owning user"
// @Success 204 {string} string ""
// @Failure 404 {object} ErrorResponse
// @Router /api/expenses/{id} [delete]
func (h *ExpensesHandler) Delete(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return expenseError(h.logger, "delete expense", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func requireUserID(c echo.Context) (string, error) {
	userID := strings.TrimSpace(c.QueryParam("user_id"))
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	return userID, nil
}

func parseListFilter(c echo.Context) (expenses.ListFilter, error) {
	filter := expenses.ListFilter{Category: c.QueryParam("category")}
	if raw := c.QueryParam("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid from timestamp")
		}
		filter.From = ts
	}
	if raw := c.QueryParam("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid to timestamp")
		}
		filter.To = ts
	}
	return filter, nil
}

// expenseError keeps not-found and cross-user outcomes indistinguishable.
func expenseError(log *slog.Logger, op string, err error) error {
	if errors.Is(err, expenses.ErrExpenseNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "expense not found")
	}
	log.Error(op+" failed", slog.Any("error", err))
	return echo.NewHTTPError(http.StatusInternalServerError, "could not "+op)
}
