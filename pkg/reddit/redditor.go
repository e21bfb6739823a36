package reddit

import (
	"context"
	"time"
)

// KindRedditor is the reddit kind prefix for accounts.
const KindRedditor = "t2"

// Redditor is a reference to a reddit account. It is addressed by name and
// only fetched when an attribute other than the name is read.
type Redditor struct {
	Base
}

// NewRedditor returns a lazy reference to the named account.
func NewRedditor(r Requester, name string) *Redditor {
	u := &Redditor{Base: newBase(r, KindRedditor, "name", pathUserAbout, nil)}
	u.attrs["name"] = name
	return u
}

func redditorFromData(r Requester, data map[string]any) *Redditor {
	u := &Redditor{Base: newBase(r, KindRedditor, "name", pathUserAbout, nil)}
	u.hydrate(data)
	u.fetched = true
	return u
}

// Name returns the account name.
func (u *Redditor) Name() string {
	return u.String()
}

// LinkKarma returns the account's link karma.
func (u *Redditor) LinkKarma(ctx context.Context) (int64, error) {
	return u.intAttr(ctx, "link_karma")
}

// CommentKarma returns the account's comment karma.
func (u *Redditor) CommentKarma(ctx context.Context) (int64, error) {
	return u.intAttr(ctx, "comment_karma")
}

// Created returns the account creation time.
func (u *Redditor) Created(ctx context.Context) (time.Time, error) {
	return u.timeAttr(ctx, "created_utc")
}

// normalizeRedditor turns an account name into a *Redditor. Values that are
// already a *Redditor, and nil, pass through unchanged.
func normalizeRedditor(r Requester, v any) any {
	switch a := v.(type) {
	case string:
		if a == "" {
			return v
		}
		return NewRedditor(r, a)
	case *Redditor:
		return a
	default:
		return v
	}
}
