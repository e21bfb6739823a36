// Package notifier contains the core domain types for the live thread
// notification service.
package notifier

import "time"

// Update is a single live thread update as delivered by email.
type Update struct {
	Name     string    // reddit-assigned update id
	Author   string    // Account name, empty for deleted accounts
	Body     string    // Markdown body for plain text fallback
	BodyHTML string    // Rendered HTML body
	Created  time.Time // When the update was posted
	Stricken bool      // Struck through by a contributor
	URL      string    // Permalink to the update
}

// Watch is a subscriber's view of one live thread.
type Watch struct {
	LastUpdateTime time.Time `json:"last_update_time"` // When the newest seen update was posted
	LastPolledAt   time.Time `json:"last_polled_at"`   // When we last checked this thread
	CreatedAt      time.Time `json:"created_at"`       // Subscription timestamp
	ThreadURL      string    `json:"thread_url"`       // Canonical thread URL
	ThreadID       string    `json:"thread_id"`        // Live thread id
	Title          string    `json:"title"`            // Thread title for email threading
	State          string    `json:"state,omitempty"`  // "live" or "complete"
	LastUpdateName string    `json:"last_update_name"` // Newest update already delivered
}

// Subscription represents a user's subscription to one or more threads.
type Subscription struct {
	Threads map[string]*Watch `json:"threads"` // Map of threadID -> Watch
	Email   string            `json:"email"`   // Subscriber email
	Token   string            `json:"token"`   // Secure token for unsubscribe
}

// ThreadURL returns the public URL of a live thread.
func ThreadURL(threadID string) string {
	return "https://www.reddit.com/live/" + threadID
}

// UpdateURL returns the permalink of a single update.
func UpdateURL(threadID, updateName string) string {
	return ThreadURL(threadID) + "/updates/" + updateName
}
