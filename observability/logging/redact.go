package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// sensitiveFragments mark attribute keys whose values never reach the log
// sink, matched case-insensitively with separators ignored.
var sensitiveFragments = []string{
	"secret",
	"passphrase",
	"password",
	"privatekey",
	"authorization",
	"bearer",
	"dsn",
}

// IsSensitive reports whether values logged under key are redacted.
func IsSensitive(key string) bool {
	normalized := strings.NewReplacer("_", "", "-", "", ".", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// MaskValue returns the placeholder for non-empty values. Empty values stay
// empty so an unset secret is distinguishable from a configured one.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField always masks value, whatever the key.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}

func redactAttr(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, MaskValue(attr.Value.String()))
	}
	return slog.String(attr.Key, RedactedValue)
}
