// Package users resolves channel senders to persistent user records.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearspend/clearspend/internal/db"
)

const defaultDisplayName = "New User"

var ErrUserNotFound = errors.New("user not found")

// Service provides user resolution and account CRUD.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a user service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "users")),
	}
}

// NormalizeIdentifier strips the transport prefix from a raw sender address.
// Twilio delivers WhatsApp senders as "whatsapp:+14155238886".
func NormalizeIdentifier(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.TrimPrefix(id, "whatsapp:")
	id = strings.TrimPrefix(id, "sms:")
	return id
}

// TelegramIdentifier builds the stable lookup key for a Telegram chat.
func TelegramIdentifier(chatID int64) string {
	return fmt.Sprintf("telegram:%d", chatID)
}

const resolveQuery = `
INSERT INTO users (identifier, display_name)
VALUES ($1, $2)
ON CONFLICT (identifier) DO UPDATE
SET last_seen_at = now(), updated_at = now()
RETURNING id, identifier, display_name, monthly_limit, created_at, updated_at, last_seen_at`

// Resolve finds or creates the user for a normalized identifier and touches
// its last-seen timestamp. The upsert targets the unique identifier index, so
// concurrent first contact from the same sender yields exactly one row.
func (s *Service) Resolve(ctx context.Context, identifier, displayName string) (User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return User{}, fmt.Errorf("identifier is required")
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = defaultDisplayName
	}
	row := s.pool.QueryRow(ctx, resolveQuery, identifier, displayName)
	user, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("resolve user %s: %w", identifier, err)
	}
	return user, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	id, err := db.ParseUUID(userID)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row := s.pool.QueryRow(ctx, `
SELECT id, identifier, display_name, monthly_limit, created_at, updated_at, last_seen_at
FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// List returns all users ordered by most recent contact.
func (s *Service) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, identifier, display_name, monthly_limit, created_at, updated_at, last_seen_at
FROM users ORDER BY last_seen_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

// ListWithLimit returns users that have a monthly spending limit configured.
func (s *Service) ListWithLimit(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, identifier, display_name, monthly_limit, created_at, updated_at, last_seen_at
FROM users WHERE monthly_limit IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list users with limit: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

// SetMonthlyLimit updates a user's monthly spending limit. A nil limit clears it.
func (s *Service) SetMonthlyLimit(ctx context.Context, userID string, limit *float64) (User, error) {
	if limit != nil && *limit < 0 {
		return User{}, fmt.Errorf("monthly limit must not be negative")
	}
	id, err := db.ParseUUID(userID)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row := s.pool.QueryRow(ctx, `
UPDATE users SET monthly_limit = $2, updated_at = now()
WHERE id = $1
RETURNING id, identifier, display_name, monthly_limit, created_at, updated_at, last_seen_at`,
		id, db.Float8OrNull(limit))
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("set monthly limit: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        pgtype.UUID
		limit     pgtype.Float8
		user      User
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
		lastSeen  pgtype.Timestamptz
	)
	if err := row.Scan(&id, &user.Identifier, &user.DisplayName, &limit, &createdAt, &updatedAt, &lastSeen); err != nil {
		return User{}, err
	}
	user.ID = id.String()
	if limit.Valid {
		v := limit.Float64
		user.MonthlyLimit = &v
	}
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updatedAt.Time
	user.LastSeenAt = lastSeen.Time
	return user, nil
}
