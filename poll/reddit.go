package poll

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"reddit-live/pkg/notifier"
	"reddit-live/pkg/reddit"
)

const defaultMaxScan = 50

// RedditSource reads live threads through the reddit API.
type RedditSource struct {
	client  reddit.Requester
	logger  *slog.Logger
	maxScan int
}

// NewRedditSource creates a source that inspects at most maxScan updates per
// fetch when looking for the last seen one. Zero uses a default of 50.
func NewRedditSource(client reddit.Requester, maxScan int, logger *slog.Logger) *RedditSource {
	if maxScan <= 0 {
		maxScan = defaultMaxScan
	}
	return &RedditSource{client: client, logger: logger, maxScan: maxScan}
}

// Fetch returns the thread's title, state and the updates posted since
// lastSeenName, walking the newest-first listing until it reaches that update.
func (s *RedditSource) Fetch(ctx context.Context, threadID, lastSeenName string) (*Snapshot, error) {
	thread, err := reddit.NewLiveThread(s.client, threadID, nil)
	if err != nil {
		return nil, err
	}
	title, err := thread.Title(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch thread about: %w", err)
	}
	state, err := thread.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch thread about: %w", err)
	}

	limit := s.maxScan
	if lastSeenName == "" {
		limit = 1
	}

	var updates []*notifier.Update
	for u, err := range thread.Updates(reddit.WithLimit(limit)).All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list updates: %w", err)
		}
		updates = append(updates, toUpdate(threadID, u))
		if u.Name() == lastSeenName {
			break
		}
	}
	slices.Reverse(updates)

	s.logger.Info("Live thread fetched",
		"thread_id", threadID,
		"title", title,
		"state", state,
		"updates_found", len(updates))

	return &Snapshot{Title: title, State: state, Updates: updates}, nil
}

func toUpdate(threadID string, u *reddit.LiveUpdate) *notifier.Update {
	var author string
	if a := u.Author(); a != nil {
		author = a.Name()
	}
	return &notifier.Update{
		Name:     u.Name(),
		Author:   author,
		Body:     u.Body(),
		BodyHTML: u.BodyHTML(),
		Created:  u.Created(),
		Stricken: u.Stricken(),
		URL:      notifier.UpdateURL(threadID, u.Name()),
	}
}
