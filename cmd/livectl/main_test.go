package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit-live/pkg/reddit"
)

type call struct {
	Method string
	Path   string
	Values url.Values
}

type fakeReddit struct {
	calls     []call
	responses map[string]any
	err       error
}

func (f *fakeReddit) Get(_ context.Context, path string, params url.Values) (any, error) {
	return f.record("GET", path, params)
}

func (f *fakeReddit) Post(_ context.Context, path string, data url.Values) (any, error) {
	return f.record("POST", path, data)
}

func (f *fakeReddit) record(method, path string, v url.Values) (any, error) {
	f.calls = append(f.calls, call{Method: method, Path: path, Values: v})
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[path], nil
}

func run(t *testing.T, f *fakeReddit, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(context.Context, string, io.Writer) (reddit.Requester, error) {
		return f, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestThreadCommands(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		stdin  string
		method string
		path   string
		values url.Values
	}{
		{name: "accept invite", args: []string{"accept-invite", "abc123"}, method: "POST", path: "api/live/abc123/accept_contributor_invite"},
		{name: "close", args: []string{"close", "abc123"}, method: "POST", path: "api/live/abc123/close_thread"},
		{name: "contributors", args: []string{"contributors", "abc123"}, method: "GET", path: "live/abc123/contributors"},
		{name: "delete update", args: []string{"delete-update", "abc123", "LiveUpdate_x"}, method: "POST", path: "api/live/abc123/delete_update", values: url.Values{"id": {"LiveUpdate_x"}}},
		{name: "strike", args: []string{"strike", "abc123", "LiveUpdate_x"}, method: "POST", path: "api/live/abc123/strike_update", values: url.Values{"id": {"LiveUpdate_x"}}},
		{name: "remove contributor", args: []string{"remove-contributor", "abc123", "t2_u"}, method: "POST", path: "api/live/abc123/rm_contributor", values: url.Values{"id": {"t2_u"}}},
		{name: "remove invite", args: []string{"remove-invite", "abc123", "t2_u"}, method: "POST", path: "api/live/abc123/rm_contributor_invite", values: url.Values{"id": {"t2_u"}}},
		{name: "post", args: []string{"post", "abc123", "hello"}, method: "POST", path: "api/live/abc123/update", values: url.Values{"body": {"hello"}}},
		{name: "post stdin", args: []string{"post", "abc123", "-"}, stdin: "from stdin\n", method: "POST", path: "api/live/abc123/update", values: url.Values{"body": {"from stdin"}}},
		{
			name: "edit", args: []string{"edit", "abc123", "--title", "T", "--description", "D", "--nsfw"},
			method: "POST", path: "api/live/abc123/edit",
			values: url.Values{"title": {"T"}, "description": {"D"}, "nsfw": {"true"}, "resources": {""}},
		},
		{
			name: "invite", args: []string{"invite", "abc123", "spez", "--permissions", "+update"},
			method: "POST", path: "api/live/abc123/invite_contributor",
			values: url.Values{"name": {"spez"}, "permissions": {"+update"}, "type": {reddit.ContributorTypeInvite}},
		},
		{
			name: "set permissions", args: []string{"set-permissions", "abc123", "spez", "--permissions", "-all"},
			method: "POST", path: "api/live/abc123/set_contributor_permissions",
			values: url.Values{"name": {"spez"}, "permissions": {"-all"}, "type": {reddit.ContributorTypeContributor}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeReddit{}
			out, err := run(t, f, tt.stdin, tt.args...)
			require.NoError(t, err)
			require.Len(t, f.calls, 1)
			assert.Equal(t, tt.method, f.calls[0].Method)
			assert.Equal(t, tt.path, f.calls[0].Path)
			assert.Equal(t, tt.values, f.calls[0].Values)
			assert.Equal(t, "null\n", out)
		})
	}
}

func TestAbout(t *testing.T) {
	f := &fakeReddit{responses: map[string]any{
		"api/live/abc123/about": map[string]any{"kind": "LiveUpdateEvent", "data": map[string]any{
			"id": "abc123", "title": "Launch", "state": "live",
		}},
	}}

	out, err := run(t, f, "", "about", "abc123")
	require.NoError(t, err)
	require.Len(t, f.calls, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Launch", got["title"])
	assert.Equal(t, "abc123", got["id"])
}

func TestContributorsOutput(t *testing.T) {
	userList := func(names ...string) map[string]any {
		children := make([]any, len(names))
		for i, n := range names {
			children[i] = map[string]any{"name": n, "id": "t2_" + n}
		}
		return map[string]any{"kind": "UserList", "data": map[string]any{"children": children}}
	}

	tests := []struct {
		name string
		resp any
		want string
	}{
		{
			name: "single list",
			resp: userList("alice"),
			want: `[{"id":"t2_alice","name":"alice"}]`,
		},
		{
			name: "contributors and invites",
			resp: []any{userList("alice"), userList("bob")},
			want: `[[{"id":"t2_alice","name":"alice"}],[{"id":"t2_bob","name":"bob"}]]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeReddit{}
			f.responses = map[string]any{"live/abc123/contributors": reddit.Objectify(f, tt.resp)}

			out, err := run(t, f, "", "contributors", "abc123")
			require.NoError(t, err)
			require.Len(t, f.calls, 1)
			assert.JSONEq(t, tt.want, out)
		})
	}
}

func TestUpdates(t *testing.T) {
	f := &fakeReddit{}
	u1, err := reddit.NewLiveUpdate(f, map[string]any{"name": "LiveUpdate_b", "author": "alice", "body": "second"})
	require.NoError(t, err)
	u2, err := reddit.NewLiveUpdate(f, map[string]any{"name": "LiveUpdate_a", "body": "first"})
	require.NoError(t, err)
	f.responses = map[string]any{"live/abc123": &reddit.Listing{Children: []any{u1, u2}}}

	out, err := run(t, f, "", "updates", "abc123", "--limit", "2")
	require.NoError(t, err)
	require.Len(t, f.calls, 1)
	assert.Equal(t, "2", f.calls[0].Values.Get("limit"))

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "LiveUpdate_b", got[0]["name"])
	assert.Equal(t, map[string]any{"name": "alice"}, got[0]["author"])
	assert.Equal(t, "first", got[1]["body"])
}

func TestCommandErrors(t *testing.T) {
	t.Run("request error", func(t *testing.T) {
		f := &fakeReddit{err: errors.New("boom")}
		_, err := run(t, f, "", "close", "abc123")
		assert.EqualError(t, err, "boom")
	})

	t.Run("missing args", func(t *testing.T) {
		f := &fakeReddit{}
		_, err := run(t, f, "", "strike", "abc123")
		assert.Error(t, err)
		assert.Empty(t, f.calls)
	})

	t.Run("edit requires title", func(t *testing.T) {
		f := &fakeReddit{}
		_, err := run(t, f, "", "edit", "abc123")
		assert.Error(t, err)
		assert.Empty(t, f.calls)
	})

	t.Run("empty post", func(t *testing.T) {
		f := &fakeReddit{}
		_, err := run(t, f, "  \n", "post", "abc123", "-")
		assert.Error(t, err)
		assert.Empty(t, f.calls)
	})

	t.Run("open failure", func(t *testing.T) {
		root := newRootCmd(func(context.Context, string, io.Writer) (reddit.Requester, error) {
			return nil, errors.New("no credentials")
		})
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs([]string{"close", "abc123"})
		assert.EqualError(t, root.Execute(), "no credentials")
	})
}

func TestPlain(t *testing.T) {
	f := &fakeReddit{}
	redditor := reddit.NewRedditor(f, "spez")
	got := plain(map[string]any{
		"listing": &reddit.Listing{Children: []any{redditor}, After: "t2_x"},
		"list":    []any{1.0, "a"},
	})
	assert.Equal(t, map[string]any{
		"listing": map[string]any{"children": []any{map[string]any{"name": "spez"}}, "after": "t2_x", "before": ""},
		"list":    []any{1.0, "a"},
	}, got)
	assert.Empty(t, f.calls)
}
