package reddit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Contributor types accepted by InviteContributor and SetContributorPermissions.
const (
	ContributorTypeContributor = "liveupdate_contributor"
	ContributorTypeInvite      = "liveupdate_contributor_invite"
)

// LiveThread is a reddit live thread. A thread created from an id holds only
// the id until another attribute is read.
type LiveThread struct {
	Base
}

// NewLiveThread returns a thread built from exactly one of threadID or data.
func NewLiveThread(r Requester, threadID string, data map[string]any) (*LiveThread, error) {
	if (threadID == "") == (len(data) == 0) {
		return nil, ErrInvalidConstruction
	}
	t := &LiveThread{Base: newBase(r, kindLiveUpdateEvent, "id", pathLiveAbout, nil)}
	if threadID != "" {
		t.attrs["id"] = threadID
		return t, nil
	}
	t.hydrate(data)
	t.fetched = true
	return t, nil
}

// ID returns the thread id.
func (t *LiveThread) ID() string {
	return t.String()
}

func (t *LiveThread) path(tmpl string) string {
	return expand(tmpl, t.ID())
}

// AcceptContributorInvite accepts a pending contributor invite for the
// authenticated user.
func (t *LiveThread) AcceptContributorInvite(ctx context.Context) (any, error) {
	return t.reddit.Post(ctx, t.path(pathLiveAcceptInvite), nil)
}

// Close permanently closes the thread.
func (t *LiveThread) Close(ctx context.Context) (any, error) {
	return t.reddit.Post(ctx, t.path(pathLiveClose), nil)
}

// Contributors lists the thread's contributors.
func (t *LiveThread) Contributors(ctx context.Context) (any, error) {
	return t.reddit.Get(ctx, t.path(pathLiveContributors), nil)
}

// DeleteUpdate removes an update. update may be a *LiveUpdate or its name.
func (t *LiveThread) DeleteUpdate(ctx context.Context, update any) (any, error) {
	data := url.Values{"id": {fmt.Sprint(update)}}
	return t.reddit.Post(ctx, t.path(pathLiveDeleteUpdate), data)
}

// Discussions returns submissions linking to the thread.
func (t *LiveThread) Discussions(opts ...ListingOption) *ListingGenerator[*Submission] {
	return NewListingGenerator[*Submission](t.reddit, t.path(pathLiveDiscussions), opts...)
}

// Edit replaces the thread's settings.
func (t *LiveThread) Edit(ctx context.Context, description string, nsfw bool, resources, title string) (any, error) {
	data := url.Values{
		"description": {description},
		"nsfw":        {strconv.FormatBool(nsfw)},
		"resources":   {resources},
		"title":       {title},
	}
	return t.reddit.Post(ctx, t.path(pathLiveEdit), data)
}

// InviteContributor invites a redditor. name may be a *Redditor or a name.
func (t *LiveThread) InviteContributor(ctx context.Context, name any, permissions, typ string) (any, error) {
	data := url.Values{
		"name":        {fmt.Sprint(name)},
		"permissions": {permissions},
		"type":        {typ},
	}
	return t.reddit.Post(ctx, t.path(pathLiveInvite), data)
}

// PostUpdate publishes a new update with the given markdown body.
func (t *LiveThread) PostUpdate(ctx context.Context, body string) (any, error) {
	return t.reddit.Post(ctx, t.path(pathLivePostUpdate), url.Values{"body": {body}})
}

// RemoveContributor revokes a contributor. redditorID is a t2 fullname.
func (t *LiveThread) RemoveContributor(ctx context.Context, redditorID string) (any, error) {
	return t.reddit.Post(ctx, t.path(pathLiveRemoveContributor), url.Values{"id": {redditorID}})
}

// RemoveContributorInvite rescinds a pending invite.
func (t *LiveThread) RemoveContributorInvite(ctx context.Context, redditorID string) (any, error) {
	return t.reddit.Post(ctx, t.path(pathLiveRemoveInvite), url.Values{"id": {redditorID}})
}

// SetContributorPermissions changes the permissions of a contributor or of a
// pending invite, depending on typ.
func (t *LiveThread) SetContributorPermissions(ctx context.Context, name, permissions, typ string) (any, error) {
	data := url.Values{
		"name":        {name},
		"permissions": {permissions},
		"type":        {typ},
	}
	return t.reddit.Post(ctx, t.path(pathLiveSetPermissions), data)
}

// StrikeUpdate marks an update as incorrect.
func (t *LiveThread) StrikeUpdate(ctx context.Context, updateID string) (any, error) {
	return t.reddit.Post(ctx, t.path(pathLiveStrikeUpdate), url.Values{"id": {updateID}})
}

// Updates returns the thread's updates, newest first.
func (t *LiveThread) Updates(opts ...ListingOption) *ListingGenerator[*LiveUpdate] {
	return NewListingGenerator[*LiveUpdate](t.reddit, t.path(pathLiveUpdates), opts...)
}

// Title returns the thread title.
func (t *LiveThread) Title(ctx context.Context) (string, error) {
	return t.stringAttr(ctx, "title")
}

// Description returns the thread description as markdown.
func (t *LiveThread) Description(ctx context.Context) (string, error) {
	return t.stringAttr(ctx, "description")
}

// State is "live" or "complete".
func (t *LiveThread) State(ctx context.Context) (string, error) {
	return t.stringAttr(ctx, "state")
}

// NSFW reports whether the thread is marked not safe for work.
func (t *LiveThread) NSFW(ctx context.Context) (bool, error) {
	return t.boolAttr(ctx, "nsfw")
}

// Resources returns the thread's resources sidebar as markdown.
func (t *LiveThread) Resources(ctx context.Context) (string, error) {
	return t.stringAttr(ctx, "resources")
}

// ViewerCount returns the number of current viewers reported by reddit.
func (t *LiveThread) ViewerCount(ctx context.Context) (int64, error) {
	return t.intAttr(ctx, "viewer_count")
}

// Created returns when the thread was created, in UTC.
func (t *LiveThread) Created(ctx context.Context) (time.Time, error) {
	return t.timeAttr(ctx, "created_utc")
}

var liveUpdateNormalizers = map[string]normalizer{
	"author": normalizeRedditor,
}

// LiveUpdate is a single update in a live thread. It is always built from
// complete data and never fetched.
type LiveUpdate struct {
	Base
}

// NewLiveUpdate returns an update populated from data.
func NewLiveUpdate(r Requester, data map[string]any) (*LiveUpdate, error) {
	if len(data) == 0 {
		return nil, ErrInvalidConstruction
	}
	u := &LiveUpdate{Base: newBase(r, kindLiveUpdate, "name", "", liveUpdateNormalizers)}
	u.fetched = true
	u.hydrate(data)
	return u, nil
}

// Name returns the update's name, a UUID assigned by reddit.
func (u *LiveUpdate) Name() string {
	return u.String()
}

// Author returns the update's author, or nil when the account is gone.
func (u *LiveUpdate) Author() *Redditor {
	a, _ := u.peek("author").(*Redditor)
	return a
}

// Body returns the markdown body.
func (u *LiveUpdate) Body() string {
	s, _ := u.peek("body").(string)
	return s
}

// BodyHTML returns the rendered body. Entities are left escaped as reddit
// sends them unless the request asked for raw JSON.
func (u *LiveUpdate) BodyHTML() string {
	s, _ := u.peek("body_html").(string)
	return s
}

// Stricken reports whether the update has been struck.
func (u *LiveUpdate) Stricken() bool {
	b, _ := u.peek("stricken").(bool)
	return b
}

// Created returns the time the update was posted.
func (u *LiveUpdate) Created() time.Time {
	return toTime(u.peek("created_utc"))
}
