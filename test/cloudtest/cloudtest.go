// Package cloudtest provides helpers for integration tests against a
// local moto server (an S3-compatible fake).
//
// Tests using this package should be tagged with
// //go:build cloudintegration and call SkipIfUnavailable first, so the
// default test run never needs a running moto.
//
// Usage:
//
//	func TestRoundtrip(t *testing.T) {
//	    cloudtest.SkipIfUnavailable(t)
//	    client := cloudtest.NewBucketClient(t, ctx)
//	    cloudtest.Seed(t, ctx, client, []string{"data/a.log"})
//	    // ... test code ...
//	}
package cloudtest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/skylatch/s3lite/pkg/s3lite"
)

const (
	// DefaultEndpoint is the default moto server endpoint.
	// Port 5555 avoids conflict with macOS AirTunes on 5000.
	DefaultEndpoint = "http://localhost:5555"

	// DefaultRegion is the signing region for tests.
	DefaultRegion = "us-east-1"

	// TestAccessKey is the access key used for moto (accepts any).
	TestAccessKey = "testing"

	// TestSecretKey is the secret key used for moto (accepts any).
	TestSecretKey = "testing"
)

var (
	// Endpoint is the moto server endpoint, configurable via
	// MOTO_ENDPOINT.
	Endpoint = getEnvOrDefault("MOTO_ENDPOINT", DefaultEndpoint)

	// Region is the signing region, configurable via MOTO_REGION.
	Region = getEnvOrDefault("MOTO_REGION", DefaultRegion)
)

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Available reports whether the moto server is reachable.
func Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Endpoint+"/moto-api/", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// SkipIfUnavailable skips the test if the moto server is not running.
func SkipIfUnavailable(t *testing.T) {
	t.Helper()
	if !Available() {
		t.Skipf("moto server not available at %s (start with: make moto-start)", Endpoint)
	}
}

// Reset clears all moto state. Call between tests for isolation.
func Reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, Endpoint+"/moto-api/reset", nil)
	if err != nil {
		return fmt.Errorf("create reset request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reset request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset returned status %d", resp.StatusCode)
	}
	return nil
}

// BucketName derives a unique, S3-legal bucket name from the test name.
func BucketName(t *testing.T) string {
	t.Helper()

	name := strings.ToLower(t.Name())
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "_", "-")
	if len(name) > 50 {
		name = name[:50]
	}
	return fmt.Sprintf("%s-%d", name, time.Now().UnixNano()%100000)
}

// NewBucketClient creates a fresh bucket on moto and returns a client
// scoped to it. Cleanup empties and removes the bucket.
func NewBucketClient(t *testing.T, ctx context.Context) *s3lite.Client {
	t.Helper()

	bucket := BucketName(t)
	client, err := s3lite.New(s3lite.Config{
		AccessKey: TestAccessKey,
		SecretKey: TestSecretKey,
		Region:    Region,
		Endpoint:  Endpoint + "/" + bucket,
	})
	if err != nil {
		t.Fatalf("failed to create client for bucket %s: %v", bucket, err)
	}
	if err := client.CreateBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket %s: %v", bucket, err)
	}

	t.Cleanup(func() {
		drainBucket(t, context.Background(), client)
	})
	return client
}

// drainBucket deletes every object so moto can drop the bucket on its
// next reset. Failures are logged, not fatal; cleanup is best-effort.
func drainBucket(t *testing.T, ctx context.Context, client *s3lite.Client) {
	t.Helper()

	objects, err := client.ListObjects(ctx, s3lite.ListOptions{})
	if err != nil {
		t.Logf("warning: failed to list objects during cleanup: %v", err)
		return
	}
	for _, obj := range objects {
		if err := client.DeleteObject(ctx, obj.Key); err != nil {
			t.Logf("warning: failed to delete object %s: %v", obj.Key, err)
		}
	}
}

// Seed uploads placeholder objects for each key.
func Seed(t *testing.T, ctx context.Context, client *s3lite.Client, keys []string) {
	t.Helper()
	for _, key := range keys {
		SeedObject(t, ctx, client, key, []byte("test content for "+key))
	}
}

// SeedObject uploads one object with the given content.
func SeedObject(t *testing.T, ctx context.Context, client *s3lite.Client, key string, content []byte) {
	t.Helper()
	if _, err := client.PutObject(ctx, key, content, "application/octet-stream"); err != nil {
		t.Fatalf("failed to put object %s: %v", key, err)
	}
}
