// Package expenses persists and aggregates expense records.
package expenses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearspend/clearspend/internal/categories"
	"github.com/clearspend/clearspend/internal/db"
)

var (
	// ErrExpenseNotFound is returned for missing records and for records
	// owned by another user; callers cannot tell the two apart.
	ErrExpenseNotFound = errors.New("expense not found")
	ErrInvalidExpense  = errors.New("invalid expense")
)

// Service provides owner-scoped expense persistence.
type Service struct {
	pool     *pgxpool.Pool
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates an expense service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:     pool,
		validate: validator.New(),
		logger:   log.With(slog.String("service", "expenses")),
	}
}

// Create validates and inserts a new expense. The write is a single insert;
// nothing is persisted when validation fails.
func (s *Service) Create(ctx context.Context, input CreateInput) (Expense, error) {
	input.Category = categories.Normalize(input.Category)
	input.Description = strings.TrimSpace(input.Description)
	if input.SpentAt.IsZero() {
		input.SpentAt = time.Now().UTC()
	}
	if err := s.validate.Struct(input); err != nil {
		return Expense{}, fmt.Errorf("%w: %s", ErrInvalidExpense, err)
	}
	userID, err := db.ParseUUID(input.UserID)
	if err != nil {
		return Expense{}, fmt.Errorf("%w: %s", ErrInvalidExpense, err)
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO expenses (user_id, amount, category, description, spent_at, source, message_sid)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, amount, category, description, spent_at, source, message_sid, created_at, updated_at`,
		userID, input.Amount, input.Category, input.Description, input.SpentAt,
		input.Source, db.TextOrNull(input.MessageSID))
	expense, err := scanExpense(row)
	if err != nil {
		return Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return expense, nil
}

// Get returns an expense by ID, scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, expenseID string) (Expense, error) {
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return Expense{}, ErrExpenseNotFound
	}
	eid, err := db.ParseUUID(expenseID)
	if err != nil {
		return Expense{}, ErrExpenseNotFound
	}
	row := s.pool.QueryRow(ctx, `
SELECT id, user_id, amount, category, description, spent_at, source, message_sid, created_at, updated_at
FROM expenses WHERE id = $1 AND user_id = $2`, eid, uid)
	expense, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, ErrExpenseNotFound
		}
		return Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return expense, nil
}

// ListByUser returns a user's expenses, newest occurrence first.
func (s *Service) ListByUser(ctx context.Context, userID string, filter ListFilter) ([]Expense, error) {
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return nil, ErrExpenseNotFound
	}
	query := `
SELECT id, user_id, amount, category, description, spent_at, source, message_sid, created_at, updated_at
FROM expenses WHERE user_id = $1`
	args := []any{uid}
	if strings.TrimSpace(filter.Category) != "" {
		args = append(args, categories.Normalize(filter.Category))
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND spent_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND spent_at < $%d", len(args))
	}
	query += " ORDER BY spent_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	items := make([]Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		items = append(items, expense)
	}
	return items, rows.Err()
}

// Update modifies an expense in place, scoped to its owner.
func (s *Service) Update(ctx context.Context, userID, expenseID string, input UpdateInput) (Expense, error) {
	if err := s.validate.Struct(input); err != nil {
		return Expense{}, fmt.Errorf("%w: %s", ErrInvalidExpense, err)
	}
	existing, err := s.Get(ctx, userID, expenseID)
	if err != nil {
		return Expense{}, err
	}
	if input.Amount != nil {
		existing.Amount = *input.Amount
	}
	if input.Category != nil {
		existing.Category = categories.Normalize(*input.Category)
	}
	if input.Description != nil {
		desc := strings.TrimSpace(*input.Description)
		if desc == "" {
			return Expense{}, fmt.Errorf("%w: description must not be empty", ErrInvalidExpense)
		}
		existing.Description = desc
	}
	if input.SpentAt != nil {
		existing.SpentAt = *input.SpentAt
	}

	uid, _ := db.ParseUUID(userID)
	eid, _ := db.ParseUUID(expenseID)
	row := s.pool.QueryRow(ctx, `
UPDATE expenses
SET amount = $3, category = $4, description = $5, spent_at = $6, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, amount, category, description, spent_at, source, message_sid, created_at, updated_at`,
		eid, uid, existing.Amount, existing.Category, existing.Description, existing.SpentAt)
	expense, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, ErrExpenseNotFound
		}
		return Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return expense, nil
}

// Delete removes an expense, scoped to its owner.
func (s *Service) Delete(ctx context.Context, userID, expenseID string) error {
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return ErrExpenseNotFound
	}
	eid, err := db.ParseUUID(expenseID)
	if err != nil {
		return ErrExpenseNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, eid, uid)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// AggregateByCategory sums a user's spending per category over an optional
// date range.
func (s *Service) AggregateByCategory(ctx context.Context, userID string, filter ListFilter) (Summary, error) {
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return Summary{}, ErrExpenseNotFound
	}
	query := `SELECT category, sum(amount), count(*) FROM expenses WHERE user_id = $1`
	args := []any{uid}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND spent_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND spent_at < $%d", len(args))
	}
	query += " GROUP BY category"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate expenses: %w", err)
	}
	defer rows.Close()

	summary := Summary{ByCategory: make(map[string]float64)}
	for rows.Next() {
		var (
			category string
			sum      float64
			count    int
		)
		if err := rows.Scan(&category, &sum, &count); err != nil {
			return Summary{}, fmt.Errorf("scan aggregate: %w", err)
		}
		summary.ByCategory[category] = sum
		summary.Total += sum
		summary.Count += count
	}
	return summary, rows.Err()
}

// MonthToDateTotal sums a user's spending for the current calendar month.
func (s *Service) MonthToDateTotal(ctx context.Context, userID string, now time.Time) (float64, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	summary, err := s.AggregateByCategory(ctx, userID, ListFilter{From: monthStart})
	if err != nil {
		return 0, err
	}
	return summary.Total, nil
}

func scanExpense(row pgx.Row) (Expense, error) {
	var (
		id         pgtype.UUID
		userID     pgtype.UUID
		messageSID pgtype.Text
		spentAt    pgtype.Timestamptz
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
		expense    Expense
	)
	err := row.Scan(&id, &userID, &expense.Amount, &expense.Category, &expense.Description,
		&spentAt, &expense.Source, &messageSID, &createdAt, &updatedAt)
	if err != nil {
		return Expense{}, err
	}
	expense.ID = id.String()
	expense.UserID = userID.String()
	expense.MessageSID = db.TextToString(messageSID)
	expense.SpentAt = spentAt.Time
	expense.CreatedAt = createdAt.Time
	expense.UpdatedAt = updatedAt.Time
	return expense, nil
}
