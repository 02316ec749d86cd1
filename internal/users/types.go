package users

import "time"

// Transport identifies the messaging channel a user reached us through.
type Transport string

const (
	TransportWhatsApp Transport = "whatsapp"
	TransportTelegram Transport = "telegram"
	TransportWeb      Transport = "web"
)

// User is a persistent account keyed by its normalized channel identifier
// (an E.164 phone number for WhatsApp/SMS, "telegram:<chat_id>" for Telegram).
type User struct {
	ID           string    `json:"id"`
	Identifier   string    `json:"identifier"`
	DisplayName  string    `json:"display_name"`
	MonthlyLimit *float64  `json:"monthly_limit,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}
