package s3lite

import (
	"strconv"
	"strings"
	"time"
)

// Navigation helpers over the decoder's map/sequence/string shape.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSeq(v any) []any {
	s, _ := v.([]any)
	return s
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

// parseTimestamp accepts the ISO-8601 form providers return for
// LastModified/Initiated, with or without fractional seconds.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// cleanETag removes the surrounding quotes providers put on ETag values.
// The XML decoder already strips one quote layer from body fields; this
// covers ETags arriving in response headers.
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// xmlEscape escapes the five standard entities for values embedded in
// request bodies (multipart manifests, location constraints).
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}
