package s3lite

import (
	"context"
	"net/http"
	"strconv"
)

// MaxKeysPerPage is the largest page size S3-compatible providers accept
// for list-objects-v2.
const MaxKeysPerPage = 1000

// PageOptions configures a single list-objects-v2 page request.
type PageOptions struct {
	// Prefix restricts results to keys starting with this value.
	Prefix string

	// Delimiter groups keys sharing a common prefix segment.
	Delimiter string

	// MaxKeys caps this page. Values outside 1..1000 use 1000.
	MaxKeys int

	// ContinuationToken resumes a truncated listing.
	ContinuationToken string

	// Extra carries additional query options verbatim.
	Extra map[string]string
}

// ListingPage is one page of a listing.
type ListingPage struct {
	// Objects are the page's entries in provider order.
	Objects []ObjectInfo

	// CommonPrefixes are the delimiter-grouped prefixes, when a
	// delimiter was supplied.
	CommonPrefixes []string

	// NextToken continues the listing. Empty means exhausted.
	NextToken string

	// Truncated reports the provider's truncation flag.
	Truncated bool
}

// ListOptions configures a full listing.
type ListOptions struct {
	// Prefix restricts results to keys starting with this value.
	Prefix string

	// Delimiter groups keys sharing a common prefix segment.
	Delimiter string

	// Limit is the record budget. Zero means unbounded: the listing
	// runs until the provider reports no further truncation.
	Limit int

	// Extra carries additional query options applied to every page.
	Extra map[string]string
}

// ListPage fetches one page of the bucket listing.
//
// A 404 returns (nil, nil): the bucket or prefix scope does not exist.
// An existing but empty scope returns a page with a non-nil, empty
// Objects slice.
func (c *Client) ListPage(ctx context.Context, opts PageOptions) (*ListingPage, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 || maxKeys > MaxKeysPerPage {
		maxKeys = MaxKeysPerPage
	}

	options := map[string]string{
		"list-type": "2",
		"max-keys":  strconv.Itoa(maxKeys),
	}
	for k, v := range opts.Extra {
		options[k] = v
	}
	if opts.Prefix != "" {
		options["prefix"] = opts.Prefix
	}
	if opts.Delimiter != "" {
		options["delimiter"] = opts.Delimiter
	}
	if opts.ContinuationToken != "" {
		options["continuation-token"] = opts.ContinuationToken
	}

	resp, err := c.do(ctx, call{
		op:       "ListObjects",
		method:   http.MethodGet,
		options:  options,
		tolerate: []int{http.StatusNotFound},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	doc := asMap(c.dec.Decode(string(resp.Body)))
	result := asMap(doc["ListBucketResult"])

	page := &ListingPage{
		Objects:   make([]ObjectInfo, 0),
		Truncated: str(result, "IsTruncated") == "true",
		NextToken: str(result, "NextContinuationToken"),
	}
	for _, entry := range asSeq(result["Contents"]) {
		node := asMap(entry)
		page.Objects = append(page.Objects, ObjectInfo{
			Key:          str(node, "Key"),
			Size:         parseInt64(str(node, "Size")),
			LastModified: parseTimestamp(str(node, "LastModified")),
			ETag:         cleanETag(str(node, "ETag")),
		})
	}
	for _, entry := range asSeq(result["CommonPrefixes"]) {
		node := asMap(entry)
		if p := str(node, "Prefix"); p != "" {
			page.CommonPrefixes = append(page.CommonPrefixes, p)
		}
	}
	return page, nil
}

// ListObjects drives ListPage through continuation tokens until the
// provider stops truncating or the record budget is met.
//
// A 404 on the listing returns (nil, nil): the scope does not exist.
// An existing but empty scope returns a non-nil empty slice.
func (c *Client) ListObjects(ctx context.Context, opts ListOptions) ([]ObjectInfo, error) {
	if opts.Limit < 0 {
		return nil, &ValidationError{Field: "Limit", Message: "record budget must not be negative"}
	}

	objects := make([]ObjectInfo, 0)
	remaining := opts.Limit
	token := ""

	for {
		maxKeys := MaxKeysPerPage
		if opts.Limit > 0 && remaining < maxKeys {
			maxKeys = remaining
		}

		page, err := c.ListPage(ctx, PageOptions{
			Prefix:            opts.Prefix,
			Delimiter:         opts.Delimiter,
			MaxKeys:           maxKeys,
			ContinuationToken: token,
			Extra:             opts.Extra,
		})
		if err != nil {
			return nil, err
		}
		if page == nil {
			// Nonexistent scope: nil result, never an empty sequence.
			return nil, nil
		}

		objects = append(objects, page.Objects...)
		if opts.Limit > 0 {
			remaining -= len(page.Objects)
			if remaining <= 0 {
				if remaining < 0 {
					objects = objects[:opts.Limit]
				}
				return objects, nil
			}
		}

		if !page.Truncated || page.NextToken == "" {
			return objects, nil
		}
		token = page.NextToken
	}
}
