package poll

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit-live/pkg/notifier"
	"reddit-live/pkg/reddit"
)

type fakeSource struct {
	snaps map[string]*Snapshot
	err   error
	calls int
}

func (f *fakeSource) Fetch(_ context.Context, threadID, _ string) (*Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snaps[threadID], nil
}

type memStore struct {
	subs  []*notifier.Subscription
	saves int
}

func (m *memStore) Save(_ context.Context, _ *notifier.Subscription) error {
	m.saves++
	return nil
}

func (m *memStore) List(_ context.Context) ([]*notifier.Subscription, error) {
	return m.subs, nil
}

type sentEmail struct {
	to      string
	names   []string
	subject string
}

type fakeEmailer struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmailer) SendNotification(_ context.Context, sub *notifier.Subscription, watch *notifier.Watch, updates []*notifier.Update) error {
	if f.err != nil {
		return f.err
	}
	e := sentEmail{to: sub.Email, subject: watch.Title}
	for _, u := range updates {
		e.names = append(e.names, u.Name)
	}
	f.sent = append(f.sent, e)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func updates(names ...string) []*notifier.Update {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]*notifier.Update, len(names))
	for i, n := range names {
		out[i] = &notifier.Update{Name: n, Author: "reporter", Body: "update " + n, Created: base.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func TestCheckAll(t *testing.T) {
	tests := []struct {
		name         string
		lastSeen     string
		snap         *Snapshot
		wantSent     [][]string
		wantLastSeen string
	}{
		{
			name:         "first check records newest without emailing",
			snap:         &Snapshot{Title: "Launch", State: "live", Updates: updates("u3")},
			wantLastSeen: "u3",
		},
		{
			name:         "new updates are sent in order",
			lastSeen:     "u1",
			snap:         &Snapshot{Title: "Launch", State: "live", Updates: updates("u1", "u2", "u3")},
			wantSent:     [][]string{{"u2", "u3"}},
			wantLastSeen: "u3",
		},
		{
			name:         "nothing new",
			lastSeen:     "u3",
			snap:         &Snapshot{Title: "Launch", State: "live", Updates: updates("u3")},
			wantLastSeen: "u3",
		},
		{
			name:         "gap sends at most five newest",
			lastSeen:     "gone",
			snap:         &Snapshot{Title: "Launch", State: "live", Updates: updates("a", "b", "c", "d", "e", "f", "g")},
			wantSent:     [][]string{{"c", "d", "e", "f", "g"}},
			wantLastSeen: "g",
		},
		{
			name:         "empty thread",
			lastSeen:     "",
			snap:         &Snapshot{Title: "Quiet", State: "live"},
			wantLastSeen: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			watch := &notifier.Watch{ThreadID: "abc123", LastUpdateName: tt.lastSeen}
			sub := &notifier.Subscription{Email: "a@example.com", Threads: map[string]*notifier.Watch{"abc123": watch}}
			store := &memStore{subs: []*notifier.Subscription{sub}}
			source := &fakeSource{snaps: map[string]*Snapshot{"abc123": tt.snap}}
			emailer := &fakeEmailer{}

			m := New(source, store, emailer, discardLogger())
			require.NoError(t, m.CheckAll(context.Background()))

			var sent [][]string
			for _, e := range emailer.sent {
				sent = append(sent, e.names)
				assert.Equal(t, tt.snap.Title, e.subject)
			}
			assert.Equal(t, tt.wantSent, sent)
			assert.Equal(t, tt.wantLastSeen, watch.LastUpdateName)
			assert.Equal(t, tt.snap.Title, watch.Title)
			assert.False(t, watch.LastPolledAt.IsZero())
			assert.Equal(t, 1, store.saves)
		})
	}
}

func TestCheckAllSkipsThreadsNotDue(t *testing.T) {
	now := time.Now()
	watch := &notifier.Watch{
		ThreadID:       "abc123",
		LastUpdateName: "u1",
		LastUpdateTime: now.Add(-10 * time.Minute),
		LastPolledAt:   now.Add(-time.Minute),
	}
	sub := &notifier.Subscription{Email: "a@example.com", Threads: map[string]*notifier.Watch{"abc123": watch}}
	source := &fakeSource{}
	m := New(source, &memStore{subs: []*notifier.Subscription{sub}}, &fakeEmailer{}, discardLogger())

	require.NoError(t, m.CheckAll(context.Background()))
	assert.Zero(t, source.calls)
}

func TestCheckAllSharesFetchesAcrossSubscribers(t *testing.T) {
	var subs []*notifier.Subscription
	for _, email := range []string{"a@example.com", "b@example.com"} {
		subs = append(subs, &notifier.Subscription{Email: email, Threads: map[string]*notifier.Watch{
			"abc123": {ThreadID: "abc123", LastUpdateName: "u1"},
		}})
	}
	source := &fakeSource{snaps: map[string]*Snapshot{"abc123": {Title: "Launch", Updates: updates("u1", "u2")}}}
	emailer := &fakeEmailer{}
	m := New(source, &memStore{subs: subs}, emailer, discardLogger())

	require.NoError(t, m.CheckAll(context.Background()))
	assert.Equal(t, 1, source.calls)
	assert.Len(t, emailer.sent, 2)
}

func TestCheckAllKeepsLastSeenWhenEmailFails(t *testing.T) {
	watch := &notifier.Watch{ThreadID: "abc123", LastUpdateName: "u1"}
	sub := &notifier.Subscription{Email: "a@example.com", Threads: map[string]*notifier.Watch{"abc123": watch}}
	source := &fakeSource{snaps: map[string]*Snapshot{"abc123": {Updates: updates("u1", "u2")}}}
	m := New(source, &memStore{subs: []*notifier.Subscription{sub}}, &fakeEmailer{err: errors.New("smtp down")}, discardLogger())

	require.NoError(t, m.CheckAll(context.Background()), "per-thread failures do not abort the run")
	assert.Equal(t, "u1", watch.LastUpdateName)
}

func TestCheckAllTransientFetchErrors(t *testing.T) {
	errBusy := errors.New("503 service unavailable")

	tests := []struct {
		name      string
		transient func(error) bool
		wantLevel string
		wantMsg   string
	}{
		{name: "default", wantLevel: "WARN", wantMsg: "Thread check failed"},
		{
			name:      "classified transient",
			transient: func(err error) bool { return errors.Is(err, errBusy) },
			wantLevel: "INFO",
			wantMsg:   "Thread check deferred to next poll",
		},
		{
			name:      "classified permanent",
			transient: func(error) bool { return false },
			wantLevel: "WARN",
			wantMsg:   "Thread check failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&logs, nil))
			watch := &notifier.Watch{ThreadID: "abc123"}
			sub := &notifier.Subscription{Email: "a@example.com", Threads: map[string]*notifier.Watch{"abc123": watch}}
			store := &memStore{subs: []*notifier.Subscription{sub}}

			m := New(&fakeSource{err: errBusy}, store, &fakeEmailer{}, logger)
			m.SetTransientCheck(tt.transient)

			require.NoError(t, m.CheckAll(context.Background()))
			assert.Zero(t, store.saves)
			assert.True(t, watch.LastPolledAt.IsZero())

			var found bool
			for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
				var rec map[string]any
				require.NoError(t, json.Unmarshal(line, &rec))
				if rec["msg"] == tt.wantMsg {
					found = true
					assert.Equal(t, tt.wantLevel, rec["level"])
					assert.Equal(t, "abc123", rec["thread_id"])
				}
			}
			assert.True(t, found, "missing %q log record", tt.wantMsg)
		})
	}
}

func TestCheckAllCancelled(t *testing.T) {
	sub := &notifier.Subscription{Email: "a@example.com", Threads: map[string]*notifier.Watch{"abc123": {ThreadID: "abc123"}}}
	m := New(&fakeSource{}, &memStore{subs: []*notifier.Subscription{sub}}, &fakeEmailer{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.CheckAll(ctx), context.Canceled)
}

// listingRequester serves a thread about page and a newest-first update listing.
type listingRequester struct {
	about   map[string]any
	updates []map[string]any
	paths   []string
}

func (l *listingRequester) Get(_ context.Context, path string, params url.Values) (any, error) {
	l.paths = append(l.paths, path)
	if path == "api/live/abc123/about" {
		return map[string]any{"kind": "LiveUpdateEvent", "data": l.about}, nil
	}
	var children []any
	for _, data := range l.updates {
		u, err := reddit.NewLiveUpdate(l, data)
		if err != nil {
			return nil, err
		}
		children = append(children, u)
	}
	return &reddit.Listing{Children: children}, nil
}

func (l *listingRequester) Post(_ context.Context, _ string, _ url.Values) (any, error) {
	return nil, errors.New("unexpected post")
}

func TestRedditSourceFetch(t *testing.T) {
	r := &listingRequester{
		about: map[string]any{"id": "abc123", "title": "Election night", "state": "live"},
		updates: []map[string]any{
			{"name": "u3", "author": "carol", "body": "third", "created_utc": float64(1700000300)},
			{"name": "u2", "author": "bob", "body": "second", "created_utc": float64(1700000200)},
			{"name": "u1", "author": "alice", "body": "first", "created_utc": float64(1700000100)},
		},
	}
	src := NewRedditSource(r, 10, discardLogger())

	snap, err := src.Fetch(context.Background(), "abc123", "u2")
	require.NoError(t, err)
	assert.Equal(t, "Election night", snap.Title)
	assert.Equal(t, "live", snap.State)
	require.Len(t, snap.Updates, 2)
	assert.Equal(t, "u2", snap.Updates[0].Name, "last seen update comes first")
	assert.Equal(t, "u3", snap.Updates[1].Name)
	assert.Equal(t, "carol", snap.Updates[1].Author)
	assert.Equal(t, "https://www.reddit.com/live/abc123/updates/u3", snap.Updates[1].URL)
	assert.Equal(t, int64(1700000300), snap.Updates[1].Created.Unix())
	assert.Equal(t, []string{"api/live/abc123/about", "live/abc123"}, r.paths)
}
