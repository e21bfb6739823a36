package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"reddit-live/pkg/notifier"
)

const maxThreadsPerUser = 100

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := clientIP(r)
	if !s.subscribeLimiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "ip", ip, "endpoint", "subscribe")
		s.subscriptions.WithLabelValues("rate_limited").Inc()
		http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	threadInput := strings.TrimSpace(r.FormValue("thread_url"))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))

	if !isValidEmail(email) {
		s.subscriptions.WithLabelValues("invalid").Inc()
		http.Error(w, "Invalid email address", http.StatusBadRequest)
		return
	}

	threadID, ok := parseThreadID(threadInput)
	if !ok {
		s.subscriptions.WithLabelValues("invalid").Inc()
		http.Error(w, "Invalid live thread URL (e.g., https://www.reddit.com/live/ux4r1lk5c8ys)", http.StatusBadRequest)
		return
	}

	// Verify the thread exists and capture its newest update so the first
	// poll only reports what comes after the subscription.
	snap, err := s.source.Fetch(r.Context(), threadID, "")
	if err != nil {
		s.logger.Warn("Failed to verify thread", "thread_id", threadID, "error", err)

		switch {
		case s.isForbidden(err):
			s.subscriptions.WithLabelValues("forbidden").Inc()
			s.render(w, http.StatusForbidden, "forbidden.tmpl", map[string]string{
				"Email":     email,
				"ThreadURL": notifier.ThreadURL(threadID),
			})
		case s.isThreadMissing(err):
			s.subscriptions.WithLabelValues("missing").Inc()
			http.Error(w, "Live thread not found", http.StatusBadRequest)
		default:
			s.subscriptions.WithLabelValues("error").Inc()
			http.Error(w, "Could not verify live thread, please try again", http.StatusBadGateway)
		}
		return
	}

	sub, err := s.store.LoadByEmail(r.Context(), email)
	if err != nil {
		if !s.isNotFound(err) {
			s.logger.Error("Failed to load subscription", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		sub = &notifier.Subscription{
			Email:   email,
			Token:   s.store.TokenFromEmail(email),
			Threads: make(map[string]*notifier.Watch),
		}
	}

	if _, exists := sub.Threads[threadID]; exists {
		setEmailCookie(w, email)
		s.subscriptions.WithLabelValues("duplicate").Inc()
		s.render(w, http.StatusOK, "already_subscribed.tmpl", map[string]string{
			"Email": email,
			"Title": snap.Title,
		})
		return
	}

	if len(sub.Threads) >= maxThreadsPerUser {
		s.logger.Warn("Thread limit exceeded", "email", email, "current_count", len(sub.Threads))
		s.subscriptions.WithLabelValues("limit").Inc()
		http.Error(w, fmt.Sprintf("Maximum thread limit reached (%d threads per user)", maxThreadsPerUser), http.StatusBadRequest)
		return
	}

	watch := &notifier.Watch{
		ThreadURL: notifier.ThreadURL(threadID),
		ThreadID:  threadID,
		Title:     snap.Title,
		State:     snap.State,
		CreatedAt: time.Now().UTC(),
	}
	if n := len(snap.Updates); n > 0 {
		latest := snap.Updates[n-1]
		watch.LastUpdateName = latest.Name
		watch.LastUpdateTime = latest.Created
	}
	sub.Threads[threadID] = watch

	if err := s.store.Save(r.Context(), sub); err != nil {
		s.logger.Error("Failed to save subscription", "error", err)
		http.Error(w, "Failed to create subscription", http.StatusInternalServerError)
		return
	}

	if err := s.emailer.SendWelcome(r.Context(), sub, watch, ip, r.Header.Get("User-Agent")); err != nil {
		// The subscription stands without the welcome email.
		s.logger.Warn("Failed to send welcome email", "email", email, "error", err)
	}

	s.logger.Info("Subscription created", "email", email, "thread_id", threadID, "ip", ip)
	s.subscriptions.WithLabelValues("created").Inc()

	setEmailCookie(w, email)
	s.render(w, http.StatusOK, "subscribed.tmpl", map[string]string{
		"Email": email,
		"Title": snap.Title,
	})
}
