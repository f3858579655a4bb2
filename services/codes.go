package services

import (
	"strings"

	"github.com/google/uuid"
)

// maxCodeAttempts bounds regeneration when a freshly drawn code is already taken.
const maxCodeAttempts = 3

func randomToken(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(s[:n])
}

// NewProductCode returns an 8-character uppercase product code.
func NewProductCode() string {
	return randomToken(8)
}

// NewOrderID returns an id of the form ORD-XXXXXX.
func NewOrderID() string {
	return "ORD-" + randomToken(6)
}
