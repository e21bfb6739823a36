// Package poll handles live thread monitoring and checking for new updates.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"reddit-live/pkg/notifier"
)

const (
	maxUpdatesPerEmail = 5 // Safety limit: max updates to include in a single email

	minInterval     = 5 * time.Minute
	maxInterval     = 4 * time.Hour
	doublingAge     = 3 * time.Hour
	stateComplete   = "complete"
	completeBackoff = 24 * time.Hour
)

// Snapshot is the state of a live thread as seen by one poll.
type Snapshot struct {
	Title string
	State string
	// Updates in chronological order. When the last seen update is still
	// reachable it is the first element.
	Updates []*notifier.Update
}

// Source fetches live thread state.
type Source interface {
	Fetch(ctx context.Context, threadID, lastSeenName string) (*Snapshot, error)
}

// Store interface for subscription persistence.
type Store interface {
	Save(ctx context.Context, sub *notifier.Subscription) error
	List(ctx context.Context) ([]*notifier.Subscription, error)
}

// Emailer interface for sending notifications.
type Emailer interface {
	SendNotification(ctx context.Context, sub *notifier.Subscription, watch *notifier.Watch, updates []*notifier.Update) error
}

// Monitor handles thread polling logic.
type Monitor struct {
	source  Source
	store   Store
	emailer Emailer
	logger  *slog.Logger
	now     func() time.Time

	transient func(error) bool
}

// New creates a new poll monitor.
func New(source Source, store Store, emailer Emailer, logger *slog.Logger) *Monitor {
	return &Monitor{
		source:  source,
		store:   store,
		emailer: emailer,
		logger:  logger,
		now:     time.Now,

		transient: func(error) bool { return false },
	}
}

// SetTransientCheck sets the classifier for fetch errors that are expected
// to clear by the next poll. Those are logged at info level.
func (m *Monitor) SetTransientCheck(fn func(error) bool) {
	if fn != nil {
		m.transient = fn
	}
}

// CheckAll checks all subscriptions for new updates.
func (m *Monitor) CheckAll(ctx context.Context) error {
	subs, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	now := m.now()
	m.logger.Info("Checking subscriptions", "count", len(subs), "timestamp", now.Format(time.RFC3339))

	// Subscribers of the same thread usually share a last seen update.
	cache := make(map[string]*Snapshot)
	var totalThreads, skippedThreads, deferredThreads int

	for _, sub := range subs {
		for threadID, watch := range sub.Threads {
			select {
			case <-ctx.Done():
				m.logger.Info("Context cancelled, stopping poll check", "error", ctx.Err())
				return ctx.Err()
			default:
			}

			totalThreads++

			interval, reason := CalculateInterval(watch.LastUpdateTime, watch.LastPolledAt)
			if watch.State == stateComplete {
				interval, reason = completeBackoff, "thread closed"
			}
			if now.Sub(watch.LastPolledAt) < interval {
				m.logger.Debug("Skipping thread (not due for polling)",
					"email", sub.Email,
					"thread_id", threadID,
					"last_polled", watch.LastPolledAt.Format(time.RFC3339),
					"next_poll", watch.LastPolledAt.Add(interval).Format(time.RFC3339),
					"interval", interval.String(),
					"reason", reason)
				skippedThreads++
				continue
			}

			if err := m.checkThread(ctx, sub, threadID, watch, cache, now); err != nil {
				if m.transient(err) {
					deferredThreads++
					m.logger.Info("Thread check deferred to next poll", "email", sub.Email, "thread_id", threadID, "error", err)
					continue
				}
				m.logger.Warn("Thread check failed", "email", sub.Email, "thread_id", threadID, "error", err)
			}
		}
	}

	m.logger.Info("Subscription check completed",
		"total_threads", totalThreads,
		"checked", totalThreads-skippedThreads,
		"skipped", skippedThreads,
		"deferred", deferredThreads)

	return nil
}

func (m *Monitor) checkThread(ctx context.Context, sub *notifier.Subscription, threadID string, watch *notifier.Watch, cache map[string]*Snapshot, now time.Time) error {
	m.logger.Info("Starting thread check",
		"email", sub.Email,
		"thread_id", threadID,
		"last_update_name", watch.LastUpdateName)

	key := threadID + "\x00" + watch.LastUpdateName
	snap, ok := cache[key]
	if !ok {
		var err error
		snap, err = m.source.Fetch(ctx, threadID, watch.LastUpdateName)
		if err != nil {
			return fmt.Errorf("fetch thread: %w", err)
		}
		cache[key] = snap
	}

	if watch.Title == "" && snap.Title != "" {
		watch.Title = snap.Title
		m.logger.Info("Thread title captured", "thread_id", threadID, "title", snap.Title)
	}
	if snap.State != "" && snap.State != watch.State {
		m.logger.Info("Thread state changed", "thread_id", threadID, "from", watch.State, "to", snap.State)
		watch.State = snap.State
	}
	watch.LastPolledAt = now

	updates := snap.Updates
	if len(updates) == 0 {
		m.logger.Info("Thread has no updates yet", "thread_id", threadID)
		return m.save(ctx, sub)
	}

	latest := updates[len(updates)-1]
	if !latest.Created.IsZero() {
		watch.LastUpdateTime = latest.Created
	}

	m.logger.Info("Updates fetched for comparison",
		"total_updates", len(updates),
		"first_update", updates[0].Name,
		"latest_update", latest.Name,
		"last_seen_update", watch.LastUpdateName,
		"last_update_time", watch.LastUpdateTime.Format(time.RFC3339))

	if watch.LastUpdateName == "" {
		watch.LastUpdateName = latest.Name
		if err := m.save(ctx, sub); err != nil {
			return err
		}
		m.logger.Info("Initial update recorded", "email", sub.Email, "thread_id", threadID, "update", latest.Name, "title", watch.Title)
		return nil
	}

	var fresh []*notifier.Update
	foundLast := false
	for i, u := range updates {
		if foundLast {
			fresh = append(fresh, u)
			m.logger.Debug("Found new update", "index", i, "update", u.Name, "author", u.Author)
		}
		if u.Name == watch.LastUpdateName {
			foundLast = true
		}
	}

	if !foundLast {
		m.logger.Warn("Last seen update not found in fetched updates - possible gap or deleted update",
			"last_seen_update", watch.LastUpdateName,
			"updates_fetched", len(updates),
			"first_fetched", updates[0].Name,
			"last_fetched", latest.Name)
		fresh = updates
	}

	if len(fresh) == 0 {
		return m.save(ctx, sub)
	}

	if len(fresh) > maxUpdatesPerEmail {
		m.logger.Warn("Too many new updates, limiting to most recent",
			"email", sub.Email,
			"thread_id", threadID,
			"total_new", len(fresh),
			"sending", maxUpdatesPerEmail)
		fresh = fresh[len(fresh)-maxUpdatesPerEmail:]
	}

	m.logger.Info("New updates detected",
		"email", sub.Email,
		"thread_id", threadID,
		"count", len(fresh),
		"latest_update", latest.Name,
		"previous", watch.LastUpdateName)

	if err := m.emailer.SendNotification(ctx, sub, watch, fresh); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	watch.LastUpdateName = latest.Name
	return m.save(ctx, sub)
}

func (m *Monitor) save(ctx context.Context, sub *notifier.Subscription) error {
	if err := m.store.Save(ctx, sub); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// CalculateInterval determines how often to poll a thread based on activity.
// The interval starts at five minutes for a fresh update and doubles every
// three hours of silence, capped at four hours.
func CalculateInterval(lastUpdateTime, lastPolledAt time.Time) (time.Duration, string) {
	if lastPolledAt.IsZero() {
		return maxInterval, "never polled"
	}
	if lastUpdateTime.IsZero() {
		return maxInterval, "no updates seen"
	}

	age := lastPolledAt.Sub(lastUpdateTime)
	if age < 0 {
		return minInterval, "update newer than last poll"
	}

	interval := time.Duration(float64(minInterval) * math.Pow(2, float64(age)/float64(doublingAge)))
	switch {
	case interval < minInterval:
		return minInterval, "active thread"
	case interval >= maxInterval:
		return maxInterval, "inactive thread"
	default:
		return interval, fmt.Sprintf("last update %s ago", age.Round(time.Minute))
	}
}
