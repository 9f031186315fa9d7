package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateMessageContent validates user turn content.
func ValidateMessageContent(content string) error {
	if len(strings.TrimSpace(content)) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateID validates an entity ID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid ID format")
	}
	return nil
}

// ValidateName validates an object or workflow name.
func ValidateName(name string) error {
	if len(name) == 0 {
		return errors.New("name cannot be empty")
	}
	if len(name) > 256 {
		return errors.New("name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("name must be valid UTF-8")
	}
	return nil
}
