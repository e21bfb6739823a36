package reddit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectify(t *testing.T) {
	r := newFakeRequester()

	t.Run("live thread", func(t *testing.T) {
		got := Objectify(r, map[string]any{
			"kind": "LiveUpdateEvent",
			"data": map[string]any{"id": "abc123", "title": "Launch"},
		})
		thread, ok := got.(*LiveThread)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, "abc123", thread.ID())
		assert.True(t, thread.Fetched())
		title, err := thread.Title(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Launch", title)
	})

	t.Run("redditor", func(t *testing.T) {
		got := Objectify(r, map[string]any{"kind": "t2", "data": map[string]any{"name": "alice", "link_karma": float64(7)}})
		u, ok := got.(*Redditor)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, "alice", u.Name())
		karma, err := u.LinkKarma(context.Background())
		require.NoError(t, err)
		assert.EqualValues(t, 7, karma)
	})

	t.Run("submission", func(t *testing.T) {
		got := Objectify(r, map[string]any{"kind": "t3", "data": map[string]any{"id": "s1", "author": "bob"}})
		s, ok := got.(*Submission)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, "t3_s1", s.Fullname())
		author, err := s.Author(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "bob", author.Name())
	})

	t.Run("user lists", func(t *testing.T) {
		got := Objectify(r, []any{
			map[string]any{"kind": "UserList", "data": map[string]any{"children": []any{
				map[string]any{"name": "alice", "id": "t2_1", "permissions": []any{"all"}},
			}}},
			map[string]any{"kind": "UserList", "data": map[string]any{"children": []any{}}},
		})
		lists, ok := got.([]any)
		require.True(t, ok)
		require.Len(t, lists, 2)
		contributors := lists[0].([]*Redditor)
		require.Len(t, contributors, 1)
		assert.Equal(t, "alice", contributors[0].Name())
		assert.Empty(t, lists[1])
	})

	t.Run("json things envelope", func(t *testing.T) {
		got := Objectify(r, map[string]any{"json": map[string]any{
			"errors": []any{},
			"data": map[string]any{"things": []any{
				map[string]any{"kind": "LiveUpdate", "data": map[string]any{"name": "u9"}},
			}},
		}})
		things, ok := got.([]any)
		require.True(t, ok)
		require.Len(t, things, 1)
		assert.Equal(t, "u9", things[0].(*LiveUpdate).Name())
	})

	t.Run("unknown passes through", func(t *testing.T) {
		in := map[string]any{"kind": "more", "data": map[string]any{"count": float64(3)}}
		assert.Equal(t, in, Objectify(r, in))
		assert.Equal(t, "text", Objectify(r, "text"))
		assert.Nil(t, Objectify(r, nil))
	})

	assert.Empty(t, r.calls)
}

func TestRedditorLazy(t *testing.T) {
	r := newFakeRequester()
	r.respond("user/alice/about", map[string]any{"kind": "t2", "data": map[string]any{"name": "alice", "comment_karma": float64(12)}})

	u := NewRedditor(r, "alice")
	assert.Equal(t, "alice", u.Name())
	assert.Empty(t, r.calls)

	karma, err := u.CommentKarma(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 12, karma)
	require.Len(t, r.calls, 1)
	assert.Equal(t, "user/alice/about", r.calls[0].Path)
}

func TestSubmissionLazyByID(t *testing.T) {
	r := newFakeRequester()
	r.respond("by_id/t3_s1", &Listing{Children: []any{
		map[string]any{"kind": "t3", "data": map[string]any{"id": "s1", "title": "Thread discussion", "author": "erin"}},
	}})

	s, err := NewSubmission(r, "s1", nil)
	require.NoError(t, err)
	title, err := s.Title(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Thread discussion", title)
	author, err := s.Author(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "erin", author.Name())
	assert.Len(t, r.calls, 1)

	_, err = NewSubmission(r, "s1", map[string]any{"id": "s1"})
	assert.ErrorIs(t, err, ErrInvalidConstruction)
}
