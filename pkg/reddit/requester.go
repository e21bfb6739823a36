package reddit

import (
	"context"
	"net/url"
)

// Requester issues API calls on behalf of reddit objects. Paths are relative
// to the API root (for example "api/live/abc123/about"). Implementations own
// transport, authentication, rate limiting and decoding; the values they
// return are handed back to callers unmodified.
type Requester interface {
	Get(ctx context.Context, path string, params url.Values) (any, error)
	Post(ctx context.Context, path string, data url.Values) (any, error)
}
