// Package categories defines the fixed expense category set.
package categories

import "strings"

// Fallback is assigned when extraction yields no usable category.
const Fallback = "Uncategorized"

// All lists every category an expense may carry, excluding the fallback.
var All = []string{
	"Groceries",
	"Utilities",
	"Rent/Mortgage",
	"Transportation",
	"Food/Dining Out",
	"Entertainment",
	"Healthcare",
	"Personal Care",
	"Clothing",
	"Education",
	"Gifts/Donations",
	"Insurance",
	"Taxes",
	"Travel",
	"Subscriptions",
	"Other",
}

var byLower = func() map[string]string {
	m := make(map[string]string, len(All)+1)
	for _, c := range All {
		m[strings.ToLower(c)] = c
	}
	m[strings.ToLower(Fallback)] = Fallback
	return m
}()

// IsValid reports whether name is a known category or the fallback.
func IsValid(name string) bool {
	_, ok := byLower[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Normalize maps a free-form category name onto the canonical set. Unknown or
// blank names collapse to the fallback.
func Normalize(name string) string {
	if canonical, ok := byLower[strings.ToLower(strings.TrimSpace(name))]; ok {
		return canonical
	}
	return Fallback
}
