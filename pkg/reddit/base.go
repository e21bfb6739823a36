package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Thing is implemented by every reddit object.
type Thing interface {
	Kind() string
	String() string
}

// normalizer rewrites a value before it is stored under a given attribute.
type normalizer func(r Requester, v any) any

// Base is a remote object proxy identified by a single stable field. Objects
// created lazily hold only that field until an unknown attribute is read, at
// which point the full representation is fetched once and cached.
type Base struct {
	reddit      Requester
	kind        string
	strField    string
	infoPath    string
	normalizers map[string]normalizer

	attrs   map[string]any
	fetched bool
}

func newBase(r Requester, kind, strField, infoPath string, normalizers map[string]normalizer) Base {
	return Base{
		reddit:      r,
		kind:        kind,
		strField:    strField,
		infoPath:    infoPath,
		normalizers: normalizers,
		attrs:       make(map[string]any),
	}
}

// Kind returns the reddit kind of the object, for example "LiveUpdate".
func (b *Base) Kind() string {
	return b.kind
}

// String returns the identifying field.
func (b *Base) String() string {
	v, ok := b.attrs[b.strField]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Equal reports whether other is the same kind of object with the same
// identifier. Identifiers are compared case-insensitively.
func (b *Base) Equal(other Thing) bool {
	if other == nil {
		return false
	}
	return other.Kind() == b.kind && strings.EqualFold(other.String(), b.String())
}

// Fetched reports whether the full representation has been loaded.
func (b *Base) Fetched() bool {
	return b.fetched
}

// Attr returns the named attribute. Known attributes are served from the
// local copy; an unknown one on an object that has not been fetched yet
// triggers a single fetch of the whole object.
func (b *Base) Attr(ctx context.Context, name string) (any, error) {
	if v, ok := b.attrs[name]; ok {
		return v, nil
	}
	if !b.fetched {
		if err := b.fetch(ctx); err != nil {
			return nil, err
		}
		if v, ok := b.attrs[name]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
}

// Set stores value under name after passing it through the normalizer
// registered for that attribute, if any.
func (b *Base) Set(name string, value any) {
	if fn, ok := b.normalizers[name]; ok {
		value = fn(b.reddit, value)
	}
	b.attrs[name] = value
}

// Attributes returns a copy of the attributes known locally. It never fetches.
func (b *Base) Attributes() map[string]any {
	out := make(map[string]any, len(b.attrs))
	for k, v := range b.attrs {
		out[k] = v
	}
	return out
}

func (b *Base) hydrate(data map[string]any) {
	for k, v := range data {
		b.Set(k, v)
	}
}

func (b *Base) fetch(ctx context.Context) error {
	resp, err := b.reddit.Get(ctx, expand(b.infoPath, b.String()), nil)
	if err != nil {
		return err
	}
	data, err := attributesOf(resp)
	if err != nil {
		return err
	}
	b.hydrate(data)
	b.fetched = true
	return nil
}

// attributesOf extracts an attribute map from whatever the requester returned
// for an info path.
func attributesOf(resp any) (map[string]any, error) {
	switch v := resp.(type) {
	case interface{ Attributes() map[string]any }:
		return v.Attributes(), nil
	case *Listing:
		if len(v.Children) == 0 {
			return nil, fmt.Errorf("%w: empty listing", ErrUnexpectedResponse)
		}
		return attributesOf(v.Children[0])
	case map[string]any:
		if data, ok := v["data"].(map[string]any); ok {
			if _, ok := v["kind"]; ok {
				return data, nil
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedResponse, resp)
	}
}

func (b *Base) peek(name string) any {
	return b.attrs[name]
}

func (b *Base) stringAttr(ctx context.Context, name string) (string, error) {
	v, err := b.Attr(ctx, name)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (b *Base) boolAttr(ctx context.Context, name string) (bool, error) {
	v, err := b.Attr(ctx, name)
	if err != nil {
		return false, err
	}
	t, _ := v.(bool)
	return t, nil
}

func (b *Base) intAttr(ctx context.Context, name string) (int64, error) {
	v, err := b.Attr(ctx, name)
	if err != nil {
		return 0, err
	}
	return toInt64(v), nil
}

func (b *Base) timeAttr(ctx context.Context, name string) (time.Time, error) {
	v, err := b.Attr(ctx, name)
	if err != nil {
		return time.Time{}, err
	}
	return toTime(v), nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int64(f)
		}
		return i
	default:
		return 0
	}
}

// toTime converts a created_utc style epoch value.
func toTime(v any) time.Time {
	var secs float64
	switch n := v.(type) {
	case float64:
		secs = n
	case int:
		secs = float64(n)
	case int64:
		secs = float64(n)
	case json.Number:
		secs, _ = n.Float64()
	default:
		return time.Time{}
	}
	if secs == 0 {
		return time.Time{}
	}
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC()
}
