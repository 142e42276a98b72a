package analytics

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxExternalIDLength = 128

// IsPlausibleExternalID reports whether value looks like an id issued by the
// analytics provider. Internal influencer ids are UUIDs, so anything parsing
// as one was written into the link by mistake and is rejected.
func IsPlausibleExternalID(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxExternalIDLength {
		return false
	}
	if _, err := uuid.Parse(value); err == nil {
		return false
	}
	for _, r := range value {
		if unicode.IsSpace(r) || r == '@' || r == '/' {
			return false
		}
	}
	return true
}

// NormalizeUsername trims the raw username and strips any leading "@".
func NormalizeUsername(raw string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "@"))
}
