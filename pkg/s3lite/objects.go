package s3lite

import (
	"context"
	"io"
	"net/http"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	// Key is the full object key.
	Key string

	// Size is the object size in bytes.
	Size int64

	// LastModified is the provider's modification timestamp.
	LastModified time.Time

	// ETag is the opaque content-identity tag, quote-stripped.
	ETag string
}

// Object is a retrieved object: metadata plus the response body stream.
type Object struct {
	ObjectInfo

	// ContentType is the object's MIME type as reported by the provider.
	ContentType string

	// Body streams the object payload. The caller must close it.
	Body io.ReadCloser
}

// BucketExists probes the bucket root with a HEAD request. A 404 is an
// ordinary outcome meaning the bucket does not exist; 403 means it
// exists but is not accessible, which still reports true.
func (c *Client) BucketExists(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, call{
		op:       "BucketExists",
		method:   http.MethodHead,
		tolerate: []int{http.StatusNotFound, http.StatusForbidden},
	})
	if err != nil {
		return false, err
	}
	return resp.StatusCode != http.StatusNotFound, nil
}

// CreateBucket creates the bucket at the endpoint root with a location
// constraint for the configured region. A 409 (bucket already exists) is
// tolerated and treated as success.
func (c *Client) CreateBucket(ctx context.Context) error {
	region := c.cfg.Region
	body := "<CreateBucketConfiguration>" +
		"<LocationConstraint>" + xmlEscape(region) + "</LocationConstraint>" +
		"</CreateBucketConfiguration>"

	_, err := c.do(ctx, call{
		op:       "CreateBucket",
		method:   http.MethodPut,
		body:     []byte(body),
		headers:  map[string]string{"content-type": "application/xml"},
		tolerate: []int{http.StatusConflict},
	})
	return err
}

// HeadObject fetches object metadata. A missing object returns
// (nil, nil), not an error.
func (c *Client) HeadObject(ctx context.Context, key string) (*ObjectInfo, error) {
	if key == "" {
		return nil, &ValidationError{Field: "Key", Message: "object key is required"}
	}
	resp, err := c.do(ctx, call{
		op:       "HeadObject",
		method:   http.MethodHead,
		key:      key,
		tolerate: []int{http.StatusNotFound},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	lastModified, _ := http.ParseTime(resp.Header.Get("Last-Modified"))
	return &ObjectInfo{
		Key:          key,
		Size:         parseInt64(resp.Header.Get("Content-Length")),
		LastModified: lastModified,
		ETag:         cleanETag(resp.Header.Get("ETag")),
	}, nil
}

// GetObject retrieves an object as a stream.
//
// options is a free-form map: query parameters plus any of the
// recognized header options ("range", "if-match", "if-none-match",
// "if-modified-since", "if-unmodified-since"), matched case-insensitively.
// A conditional miss (304 or 412) returns (nil, nil) rather than an
// error. The caller must close the returned Body.
func (c *Client) GetObject(ctx context.Context, key string, options map[string]string) (*Object, error) {
	if key == "" {
		return nil, &ValidationError{Field: "Key", Message: "object key is required"}
	}
	resp, err := c.do(ctx, call{
		op:       "GetObject",
		method:   http.MethodGet,
		key:      key,
		options:  options,
		tolerate: []int{http.StatusNotModified, http.StatusPreconditionFailed},
		stream:   true,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotModified || resp.StatusCode == http.StatusPreconditionFailed {
		return nil, nil
	}

	lastModified, _ := http.ParseTime(resp.Header.Get("Last-Modified"))
	return &Object{
		ObjectInfo: ObjectInfo{
			Key:          key,
			Size:         parseInt64(resp.Header.Get("Content-Length")),
			LastModified: lastModified,
			ETag:         cleanETag(resp.Header.Get("ETag")),
		},
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Stream,
	}, nil
}

// GetObjectBytes retrieves an object fully into memory.
func (c *Client) GetObjectBytes(ctx context.Context, key string, options map[string]string) ([]byte, error) {
	obj, err := c.GetObject(ctx, key, options)
	if err != nil || obj == nil {
		return nil, err
	}
	defer obj.Body.Close()
	return io.ReadAll(obj.Body)
}

// PutObject uploads body under key and returns the stored object's
// descriptor. contentType may be empty.
func (c *Client) PutObject(ctx context.Context, key string, body []byte, contentType string) (*ObjectInfo, error) {
	if key == "" {
		return nil, &ValidationError{Field: "Key", Message: "object key is required"}
	}

	headers := map[string]string{}
	if contentType != "" {
		headers["content-type"] = contentType
	}

	resp, err := c.do(ctx, call{
		op:      "PutObject",
		method:  http.MethodPut,
		key:     key,
		headers: headers,
		body:    body,
	})
	if err != nil {
		return nil, err
	}
	return &ObjectInfo{
		Key:  key,
		Size: int64(len(body)),
		ETag: cleanETag(resp.Header.Get("ETag")),
	}, nil
}

// DeleteObject removes an object. Providers return success for keys that
// do not exist.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return &ValidationError{Field: "Key", Message: "object key is required"}
	}
	_, err := c.do(ctx, call{
		op:     "DeleteObject",
		method: http.MethodDelete,
		key:    key,
	})
	return err
}
