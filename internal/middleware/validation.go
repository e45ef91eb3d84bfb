package middleware

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/techsolutions/agency-chat/internal/model"
)

// MaxMessageLength bounds a single chat message in bytes.
const MaxMessageLength = 10000

// ValidateMessageContent validates message content. Blank content is left to the
// chat service.
func ValidateMessageContent(content string) error {
	if len(content) > MaxMessageLength {
		return model.Validation("Message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return model.Validation("Message must be valid UTF-8")
	}
	return nil
}

// ParseID parses a positive numeric resource id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Validation("Invalid conversation id")
	}
	return id, nil
}

// ParseOptionalID parses an id that may be absent. Empty input yields nil.
func ParseOptionalID(raw string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := ParseID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
