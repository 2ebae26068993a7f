// Package sigv4 implements AWS Signature Version 4 request signing for
// S3-compatible endpoints.
//
// The signer is deliberately self-contained: it builds the canonical
// request, the string-to-sign, and the HMAC signing-key chain from first
// principles rather than delegating to an SDK. Hashing primitives are
// consumed through the Crypto interface so callers can substitute their
// own implementation.
package sigv4

import (
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Signing constants shared with the wire format.
const (
	// Algorithm is the SigV4 algorithm identifier.
	Algorithm = "AWS4-HMAC-SHA256"

	// TimeFormat is the compact UTC timestamp format used in x-amz-date.
	TimeFormat = "20060102T150405Z"

	// UnsignedPayload is the payload-hash sentinel used when the request
	// body is empty. S3-compatible providers accept this in place of the
	// hash of the empty string; the sentinel must be preserved exactly.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	dateFormat = "20060102"
	service    = "s3"
	terminator = "aws4_request"
)

// Signer computes SigV4 authentication headers for S3 requests.
//
// A Signer is immutable after creation and safe for concurrent use.
// Callers that mutate credentials or region construct a fresh Signer
// from their current configuration snapshot.
type Signer struct {
	accessKey string
	secretKey string
	region    string
	crypto    Crypto
	now       func() time.Time
}

// Option customizes a Signer.
type Option func(*Signer)

// WithCrypto substitutes the hashing implementation.
func WithCrypto(c Crypto) Option {
	return func(s *Signer) { s.crypto = c }
}

// WithClock substitutes the wall-clock source. Intended for tests that
// need deterministic signatures.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// New creates a Signer for the given credentials and region.
func New(accessKey, secretKey, region string, opts ...Option) *Signer {
	s := &Signer{
		accessKey: accessKey,
		secretKey: secretKey,
		region:    region,
		crypto:    StdCrypto(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request describes the parts of an HTTP exchange that participate in
// signing. Path must already be percent-escaped with '/' preserved.
type Request struct {
	Method  string
	Host    string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    []byte
}

// Sign computes the SigV4 headers for req.
//
// The returned map contains every header that participated in signing:
// the caller-supplied extras plus host, x-amz-date, x-amz-content-sha256,
// and Authorization. Headers must not be mutated after signing; the
// signature is only valid for the exact header set, payload hash, and
// timestamp used here.
func (s *Signer) Sign(req Request) map[string]string {
	ts := s.now().UTC().Format(TimeFormat)
	date := ts[:8]

	payloadHash := UnsignedPayload
	if len(req.Body) > 0 {
		payloadHash = hex.EncodeToString(s.crypto.Sum256(req.Body))
	}

	headers := make(map[string]string, len(req.Headers)+4)
	for k, v := range req.Headers {
		headers[k] = v
	}
	headers["host"] = req.Host
	headers["x-amz-date"] = ts
	headers["x-amz-content-sha256"] = payloadHash

	canonHeaders, signedList := canonicalHeaders(headers)
	canonQuery := CanonicalQuery(req.Query)

	path := req.Path
	if path == "" {
		path = "/"
	}

	canonical := strings.Join([]string{
		req.Method,
		path,
		canonQuery,
		canonHeaders,
		"",
		signedList,
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{date, s.region, service, terminator}, "/")

	stringToSign := strings.Join([]string{
		Algorithm,
		ts,
		scope,
		hex.EncodeToString(s.crypto.Sum256([]byte(canonical))),
	}, "\n")

	key := s.signingKey(date)
	signature := hex.EncodeToString(s.crypto.HMACSHA256(key, []byte(stringToSign)))

	headers["Authorization"] = Algorithm +
		" Credential=" + s.accessKey + "/" + scope +
		", SignedHeaders=" + signedList +
		", Signature=" + signature
	return headers
}

// signingKey derives the per-date HMAC chain:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), "s3"), "aws4_request").
func (s *Signer) signingKey(date string) []byte {
	k := s.crypto.HMACSHA256([]byte("AWS4"+s.secretKey), []byte(date))
	k = s.crypto.HMACSHA256(k, []byte(s.region))
	k = s.crypto.HMACSHA256(k, []byte(service))
	return s.crypto.HMACSHA256(k, []byte(terminator))
}

// canonicalHeaders lower-cases names, trims values, sorts the full
// name:value lines lexicographically, and returns the joined block along
// with the semicolon-joined signed-header name list.
func canonicalHeaders(headers map[string]string) (string, string) {
	lines := make([]string, 0, len(headers))
	names := make([]string, 0, len(headers))
	for name, value := range headers {
		lower := strings.ToLower(name)
		lines = append(lines, lower+":"+strings.TrimSpace(value))
		names = append(names, lower)
	}
	sort.Strings(lines)
	sort.Strings(names)
	return strings.Join(lines, "\n"), strings.Join(names, ";")
}

// CanonicalQuery percent-encodes each key and value, sorts entries by the
// encoded key, and joins them with '&'. Returns the empty string when no
// parameters are present. The client sends this exact form on the wire so
// the provider recomputes an identical canonical request.
func CanonicalQuery(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}
	pairs := make([][2]string, 0, len(query))
	for k, v := range query {
		pairs = append(pairs, [2]string{URIEncode(k, true), URIEncode(v, true)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p[0] + "=" + p[1]
	}
	return strings.Join(parts, "&")
}

// URIEncode percent-encodes a string per the SigV4 rules: unreserved
// characters (A-Z, a-z, 0-9, '-', '_', '.', '~') pass through, everything
// else becomes %XX with uppercase hex. When encodeSlash is false, '/' is
// preserved, which is the form used for object-key paths.
func URIEncode(value string, encodeSlash bool) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'),
			c == '-' || c == '_' || c == '.' || c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0F])
		}
	}
	return b.String()
}
