// Package handlers contains the HTTP layer: webhook intake, auth, and the
// management API over users, expenses, and reports.
package handlers

// ErrorResponse is the JSON error body returned by API handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}
