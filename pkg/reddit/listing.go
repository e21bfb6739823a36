package reddit

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"

	"google.golang.org/api/iterator"
)

const (
	defaultListingLimit = 100
	maxPageSize         = 100
)

// Listing is one page of a reddit listing.
type Listing struct {
	Children []any
	After    string
	Before   string
}

type listingConfig struct {
	limit  int
	params url.Values
}

// ListingOption configures a ListingGenerator.
type ListingOption func(*listingConfig)

// WithLimit caps the total number of items yielded. Zero means no cap.
func WithLimit(n int) ListingOption {
	return func(c *listingConfig) {
		if n < 0 {
			n = 0
		}
		c.limit = n
	}
}

// WithParams adds query parameters to every page request.
func WithParams(params url.Values) ListingOption {
	return func(c *listingConfig) {
		for k, vs := range params {
			for _, v := range vs {
				c.params.Add(k, v)
			}
		}
	}
}

// ListingGenerator lazily walks a paginated listing, following the "after"
// cursor. No request is made until Next is called.
type ListingGenerator[T any] struct {
	reddit Requester
	path   string
	limit  int
	params url.Values

	buf       []any
	pos       int
	after     string
	yielded   int
	exhausted bool
}

// NewListingGenerator returns a generator over the listing at path.
func NewListingGenerator[T any](r Requester, path string, opts ...ListingOption) *ListingGenerator[T] {
	cfg := listingConfig{limit: defaultListingLimit, params: url.Values{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ListingGenerator[T]{
		reddit: r,
		path:   path,
		limit:  cfg.limit,
		params: cfg.params,
	}
}

// Path returns the listing path.
func (g *ListingGenerator[T]) Path() string {
	return g.path
}

// Next returns the next item, or iterator.Done once the listing or the limit
// is exhausted.
func (g *ListingGenerator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if g.limit > 0 && g.yielded >= g.limit {
		return zero, iterator.Done
	}
	if g.pos >= len(g.buf) {
		if g.exhausted {
			return zero, iterator.Done
		}
		if err := g.nextPage(ctx); err != nil {
			return zero, err
		}
		if len(g.buf) == 0 {
			return zero, iterator.Done
		}
	}

	raw := g.buf[g.pos]
	g.pos++
	item, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: listing item %T", ErrUnexpectedResponse, raw)
	}
	g.yielded++
	return item, nil
}

// All returns an iterator over the remaining items. Iteration stops after
// the first error is yielded.
func (g *ListingGenerator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := g.Next(ctx)
			if err == iterator.Done {
				return
			}
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

func (g *ListingGenerator[T]) nextPage(ctx context.Context) error {
	params := url.Values{}
	for k, vs := range g.params {
		params[k] = append([]string(nil), vs...)
	}
	size := maxPageSize
	if g.limit > 0 && g.limit-g.yielded < size {
		size = g.limit - g.yielded
	}
	params.Set("limit", strconv.Itoa(size))
	if g.after != "" {
		params.Set("after", g.after)
	}

	resp, err := g.reddit.Get(ctx, g.path, params)
	if err != nil {
		return err
	}
	page, err := listingOf(g.reddit, resp)
	if err != nil {
		return err
	}

	g.buf = page.Children
	g.pos = 0
	g.after = page.After
	if g.after == "" || len(page.Children) == 0 {
		g.exhausted = true
	}
	return nil
}

func listingOf(r Requester, resp any) (*Listing, error) {
	switch v := resp.(type) {
	case *Listing:
		return v, nil
	case []any:
		// Comment pages return [submission, comments]; the second is the listing.
		if len(v) < 2 {
			return nil, fmt.Errorf("%w: listing array of %d", ErrUnexpectedResponse, len(v))
		}
		return listingOf(r, v[1])
	case map[string]any:
		if l, ok := Objectify(r, v).(*Listing); ok {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %T is not a listing", ErrUnexpectedResponse, resp)
}
