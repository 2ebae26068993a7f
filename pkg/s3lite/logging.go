package s3lite

import "strings"

// Logger is the minimal structured-logging capability the client
// consumes. Implementations receive a message plus a flat detail map;
// the client sanitizes details before handing them over, but sinks that
// log caller-supplied structures should run Sanitize themselves.
type Logger interface {
	Info(msg string, details map[string]any)
	Warn(msg string, details map[string]any)
	Error(msg string, details map[string]any)
}

// NopLogger discards all entries. It is the default when no logger is
// injected.
type NopLogger struct{}

func (NopLogger) Info(string, map[string]any)  {}
func (NopLogger) Warn(string, map[string]any)  {}
func (NopLogger) Error(string, map[string]any) {}

// Redacted replaces sensitive values in log details.
const Redacted = "[REDACTED]"

// sensitiveNames are matched case-insensitively as substrings of detail
// keys. "secret" also covers "secretKey"/"secret_access_key" and so on.
var sensitiveNames = []string{
	"secret",
	"password",
	"token",
	"signature",
	"authorization",
	"credential",
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, name := range sensitiveNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of v with the value of every sensitive key
// replaced by the Redacted placeholder, recursively through nested maps
// and slices. Non-container values pass through unchanged.
func Sanitize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		clean := make(map[string]any, len(val))
		for k, nested := range val {
			if sensitiveKey(k) {
				clean[k] = Redacted
				continue
			}
			clean[k] = Sanitize(nested)
		}
		return clean
	case map[string]string:
		clean := make(map[string]any, len(val))
		for k, nested := range val {
			if sensitiveKey(k) {
				clean[k] = Redacted
				continue
			}
			clean[k] = nested
		}
		return clean
	case []any:
		clean := make([]any, len(val))
		for i, item := range val {
			clean[i] = Sanitize(item)
		}
		return clean
	default:
		return v
	}
}

// AccessKeyHint returns a loggable form of an access key: the first four
// characters followed by an ellipsis. Short keys redact entirely.
func AccessKeyHint(accessKey string) string {
	if len(accessKey) <= 4 {
		return Redacted
	}
	return accessKey[:4] + "..."
}
