package expenses

import "time"

// Expense is a single spending record owned by exactly one user.
type Expense struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	SpentAt     time.Time `json:"spent_at"`
	Source      string    `json:"source"`
	MessageSID  string    `json:"message_sid,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateInput is the payload for recording a new expense.
type CreateInput struct {
	UserID      string    `json:"-" validate:"required"`
	Amount      float64   `json:"amount" validate:"gte=0"`
	Category    string    `json:"category"`
	Description string    `json:"description" validate:"required"`
	SpentAt     time.Time `json:"spent_at"`
	Source      string    `json:"source" validate:"required"`
	MessageSID  string    `json:"message_sid"`
}

// UpdateInput carries the mutable fields of an expense; nil means unchanged.
type UpdateInput struct {
	Amount      *float64   `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Category    *string    `json:"category,omitempty"`
	Description *string    `json:"description,omitempty"`
	SpentAt     *time.Time `json:"spent_at,omitempty"`
}

// ListFilter narrows a listing to a category and/or date range.
type ListFilter struct {
	Category string
	From     time.Time
	To       time.Time
}

// Summary aggregates a user's spending by category.
type Summary struct {
	Total      float64            `json:"total"`
	Count      int                `json:"count"`
	ByCategory map[string]float64 `json:"by_category"`
}
