package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clearspend/clearspend/internal/users"
)

// UsersHandler exposes user accounts and their monthly limits under /api.
type UsersHandler struct {
	service *users.Service
	logger  *slog.Logger
}

func NewUsersHandler(log *slog.Logger, service *users.Service) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{
		service: service,
		logger:  log.With(slog.String("handler", "users")),
	}
}

func (h *UsersHandler) Register(g *echo.Group) {
	g.GET("/users", h.List)
	g.GET("/users/:id", h.Get)
	g.PUT("/users/:id/limit", h.SetLimit)
}

// List godoc
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {array} users.User
// @Router /api/users [get]
func (h *UsersHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list users")
	}
	return c.JSON(http.StatusOK, items)
}

// Get godoc
// @Summary Get one user
// @Tags users
// @Produce json
// @Param id path string true "User id"
// @Success 200 {object} users.User
// @Failure 404 {object} ErrorResponse
// @Router /api/users/{id} [get]
func (h *UsersHandler) Get(c echo.Context) error {
	user, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		h.logger.Error("get user failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not get user")
	}
	return c.JSON(http.StatusOK, user)
}

type setLimitRequest struct {
	MonthlyLimit *float64 `json:"monthly_limit"`
}

// SetLimit godoc
// @Summary Set a user's monthly spending limit
// @Description A null limit clears the alert threshold
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User id"
// @Param request body setLimitRequest true "Limit"
// @Success 200 {object} users.User
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/users/{id}/limit [put]
func (h *UsersHandler) SetLimit(c echo.Context) error {
	var req setLimitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.MonthlyLimit != nil && *req.MonthlyLimit < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "monthly limit must not be negative")
	}
	user, err := h.service.SetMonthlyLimit(c.Request().Context(), c.Param("id"), req.MonthlyLimit)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		h.logger.Error("set limit failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not set limit")
	}
	return c.JSON(http.StatusOK, user)
}
