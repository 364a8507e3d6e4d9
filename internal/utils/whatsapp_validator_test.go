package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePhoneNumber_AcceptsE164(t *testing.T) {
	assert.NoError(t, ValidatePhoneNumber("15551234567"))
	assert.NoError(t, ValidatePhoneNumber("+15551234567"))
}

func TestValidatePhoneNumber_RejectsEmpty(t *testing.T) {
	assert.Error(t, ValidatePhoneNumber(""))
}

func TestValidatePhoneNumber_RejectsNonNumeric(t *testing.T) {
	assert.Error(t, ValidatePhoneNumber("not-a-number"))
}

func TestSanitizeMessage_TrimsAndStripsControlChars(t *testing.T) {
	out, err := SanitizeMessage("  hello\x00world  ")
	assert.NoError(t, err)
	assert.Equal(t, "helloworld", out)
}

func TestSanitizeMessage_RejectsEmpty(t *testing.T) {
	_, err := SanitizeMessage("")
	assert.Error(t, err)
}

func TestSanitizeMessage_RejectsOverLength(t *testing.T) {
	_, err := SanitizeMessage(strings.Repeat("a", MaxMessageLength+1))
	assert.Error(t, err)
}
