package errors

import (
	"strings"
	"unicode"
)

// ValidateNodeID validates a node identifier from an arrival event.
// Node ids are opaque, but they travel in URLs, cache keys, and websocket
// frames, so the validation rules are intentionally conservative:
//   - No empty ids
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 128 characters
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidNode, "node id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidNode, "node id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidNode, "node id contains control characters")
		}
	}

	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return New(ErrCodeInvalidNode, "node id contains path characters")
	}

	return nil
}

// ValidateSymbol validates an investigation subject symbol (e.g., a ticker).
// Symbols are uppercased by the caller; this only checks shape.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return New(ErrCodeInvalidSymbol, "symbol cannot be empty")
	}

	if len(symbol) > 12 {
		return New(ErrCodeInvalidSymbol, "symbol too long (max 12 characters)")
	}

	for _, r := range symbol {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-' {
			return New(ErrCodeInvalidSymbol, "symbol contains invalid character %q", r)
		}
	}

	return nil
}

// ValidateSessionID validates a session identifier from an API request.
// Session ids are generated as UUIDs, so anything much longer or containing
// path characters is rejected before it reaches the registry.
func ValidateSessionID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidSession, "session id cannot be empty")
	}

	if len(id) > 64 {
		return New(ErrCodeInvalidSession, "session id too long (max 64 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidSession, "session id contains control characters")
		}
	}

	if strings.ContainsAny(id, "/\\") {
		return New(ErrCodeInvalidSession, "session id contains path separators")
	}

	return nil
}
