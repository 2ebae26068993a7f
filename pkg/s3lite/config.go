// Package s3lite is a minimal client for S3-compatible object-storage
// REST APIs.
//
// The client signs every request with AWS Signature Version 4 computed
// from first principles (pkg/sigv4), decodes provider XML bodies with a
// restricted decoder (pkg/xmlite), and classifies every response into an
// ordinary return value, a ServiceError, or a NetworkError. It performs
// no retries; retry policy belongs to the caller.
package s3lite

import (
	"net/url"
	"time"
)

// Config holds the connection settings for one endpoint.
//
// The Endpoint is the full origin for the target bucket, e.g.
// "https://my-bucket.s3.us-east-1.amazonaws.com" or a path-style origin
// for S3-compatible stores. Bucket-level operations address its root
// path; object operations append the escaped key.
type Config struct {
	// AccessKey is the SigV4 access key ID.
	AccessKey string

	// SecretKey is the SigV4 secret key.
	SecretKey string

	// Region participates in the SigV4 credential scope.
	Region string

	// Endpoint is the HTTPS origin of the bucket.
	Endpoint string

	// MaxBodyBytes caps the size of request bodies. Zero disables the
	// ceiling.
	MaxBodyBytes int64

	// AbortTimeout bounds each network exchange. Zero means no timeout.
	// Expiry cancels the underlying call only and surfaces as a
	// NetworkError; a response body already being read is not cut off.
	AbortTimeout time.Duration
}

// Validate checks that the configuration can produce signable requests.
func (c *Config) Validate() error {
	if c.AccessKey == "" || c.SecretKey == "" {
		return &ValidationError{Field: "AccessKey/SecretKey", Message: "access key and secret key are required"}
	}
	if c.Region == "" {
		return &ValidationError{Field: "Region", Message: "region is required"}
	}
	if _, err := parseEndpoint(c.Endpoint); err != nil {
		return err
	}
	return nil
}

// parseEndpoint parses the endpoint origin, rejecting anything without a
// scheme and host before a request is ever signed.
func parseEndpoint(endpoint string) (*url.URL, error) {
	if endpoint == "" {
		return nil, &ValidationError{Field: "Endpoint", Message: "endpoint is required"}
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ValidationError{Field: "Endpoint", Message: "malformed endpoint origin: " + endpoint}
	}
	return u, nil
}
