package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageLength is the maximum allowed message length
	MaxMessageLength = 4096
	// MaxPhoneNumberLength is the maximum length for phone numbers
	MaxPhoneNumberLength = 20
)

var (
	// phoneNumberRegex validates international phone numbers
	// Accepts formats like: +1234567890, 1234567890, +1-234-567-8900
	phoneNumberRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

	// sanitizeRegex removes potentially dangerous characters
	sanitizeRegex = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidatePhoneNumber validates a phone number format
func ValidatePhoneNumber(phoneNumber string) error {
	if phoneNumber == "" {
		return &ValidationError{
			Field:   "phone_number",
			Message: "phone number cannot be empty",
		}
	}

	if len(phoneNumber) > MaxPhoneNumberLength {
		return &ValidationError{
			Field:   "phone_number",
			Message: fmt.Sprintf("phone number exceeds maximum length of %d", MaxPhoneNumberLength),
		}
	}

	// Remove common formatting characters for validation
	cleaned := strings.ReplaceAll(phoneNumber, "-", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "(", "")
	cleaned = strings.ReplaceAll(cleaned, ")", "")

	if !phoneNumberRegex.MatchString(cleaned) {
		return &ValidationError{
			Field:   "phone_number",
			Message: "invalid phone number format",
		}
	}

	return nil
}

// SanitizeMessage sanitizes message content by removing control characters
// and enforcing length limits
func SanitizeMessage(message string) (string, error) {
	if message == "" {
		return "", &ValidationError{
			Field:   "message",
			Message: "message cannot be empty",
		}
	}

	// Remove control characters
	sanitized := sanitizeRegex.ReplaceAllString(message, "")

	// Trim whitespace
	sanitized = strings.TrimSpace(sanitized)

	if sanitized == "" {
		return "", &ValidationError{
			Field:   "message",
			Message: "message contains only invalid characters",
		}
	}

	// Check length
	if utf8.RuneCountInString(sanitized) > MaxMessageLength {
		return "", &ValidationError{
			Field:   "message",
			Message: fmt.Sprintf("message exceeds maximum length of %d characters", MaxMessageLength),
		}
	}

	return sanitized, nil
}
