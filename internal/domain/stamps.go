package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NowUTCISO returns the current instant as an ISO-8601 UTC timestamp with
// second precision and a trailing "Z", matching the format every stored
// timestamp in this system uses.
func NowUTCISO() string {
	return time.Now().UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// FormatUTCISO truncates t to whole seconds and formats it the same way
// NowUTCISO does.
func FormatUTCISO(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// ParseUTCISO parses a stored ISO-8601 UTC timestamp. It tolerates both
// second and sub-second precision since older documents may carry either.
func ParseUTCISO(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05Z", s)
}

// UnixToUTCISO converts a WhatsApp webhook unix-seconds timestamp string
// into the stored ISO-8601 form.
func UnixToUTCISO(unixSeconds string) string {
	secs, err := strconv.ParseInt(unixSeconds, 10, 64)
	if err != nil {
		return NowUTCISO()
	}
	return FormatUTCISO(time.Unix(secs, 0))
}

// NewIdempotencyKey mints a fresh idempotency key for messages that did not
// originate from an external, already-keyed source.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// DeriveMessageID derives the message id from a time_received stamp and a
// basemodel discriminator: replace "T"->"_", ":"->"-", "."->"-", strip the
// trailing "Z", then append "_<basemodel>".
func DeriveMessageID(timeReceived, basemodel string) string {
	id := strings.TrimSuffix(timeReceived, "Z")
	id = strings.Replace(id, "T", "_", 1)
	id = strings.ReplaceAll(id, ":", "-")
	id = strings.ReplaceAll(id, ".", "-")
	return id + "_" + basemodel
}

// SHA256Hex returns the hex-encoded SHA-256 digest of content.
func SHA256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
