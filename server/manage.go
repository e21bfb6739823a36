package server

import (
	"cmp"
	"crypto/subtle"
	"net/http"
	"net/url"
	"slices"
)

func validToken(token string) bool {
	return len(token) == 64
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.manageLimiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "ip", ip, "endpoint", "unsubscribe")
		http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		return
	}

	token := r.URL.Query().Get("token")
	if !validToken(token) {
		http.Error(w, "Invalid or missing token", http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, "/manage?token="+url.QueryEscape(token), http.StatusSeeOther)
}

type threadRow struct {
	ThreadID  string
	ThreadURL string
	Title     string
	State     string
	CreatedAt string
}

func (s *Server) handleManage(w http.ResponseWriter, r *http.Request) {
	// Limited per IP to slow token enumeration.
	ip := clientIP(r)
	if !s.manageLimiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "ip", ip, "endpoint", "manage")
		http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		return
	}

	token := r.URL.Query().Get("token")
	if !validToken(token) {
		http.Error(w, "Invalid or missing token", http.StatusBadRequest)
		return
	}

	sub, err := s.store.LoadByToken(r.Context(), token)
	if err != nil {
		if !s.isNotFound(err) {
			s.logger.Error("Failed to load subscription", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.logger.Warn("Subscription not found for token")
		s.render(w, http.StatusNotFound, "not_found.tmpl", nil)
		return
	}

	if r.Method == http.MethodPost {
		if subtle.ConstantTimeCompare([]byte(r.FormValue("token")), []byte(token)) != 1 {
			http.Error(w, "Invalid token", http.StatusForbidden)
			return
		}

		switch action, threadID := r.FormValue("action"), r.FormValue("thread_id"); {
		case action == "unsubscribe" && threadID != "":
			delete(sub.Threads, threadID)

			if len(sub.Threads) > 0 {
				if err := s.store.Save(r.Context(), sub); err != nil {
					s.logger.Error("Failed to save subscription", "error", err)
					http.Error(w, "Failed to unsubscribe", http.StatusInternalServerError)
					return
				}
				s.logger.Info("Thread unsubscribed", "email", sub.Email, "thread_id", threadID)
				http.Redirect(w, r, "/manage?token="+url.QueryEscape(token), http.StatusSeeOther)
				return
			}
			// Removing the last thread removes the subscription.
			s.unsubscribeAll(w, r, sub.Email)
			return
		case action == "unsubscribe_all":
			s.unsubscribeAll(w, r, sub.Email)
			return
		}
	}

	rows := make([]threadRow, 0, len(sub.Threads))
	for threadID, watch := range sub.Threads {
		rows = append(rows, threadRow{
			ThreadID:  threadID,
			ThreadURL: watch.ThreadURL,
			Title:     watch.Title,
			State:     watch.State,
			CreatedAt: watch.CreatedAt.Format("Jan 2, 2006"),
		})
	}
	slices.SortFunc(rows, func(a, b threadRow) int { return cmp.Compare(a.ThreadID, b.ThreadID) })

	w.Header().Set("X-Frame-Options", "DENY")
	s.render(w, http.StatusOK, "manage.tmpl", map[string]any{
		"Email":   sub.Email,
		"Token":   token,
		"Threads": rows,
	})
}

func (s *Server) unsubscribeAll(w http.ResponseWriter, r *http.Request, email string) {
	if err := s.store.Delete(r.Context(), email); err != nil {
		s.logger.Error("Failed to delete subscription", "error", err)
		http.Error(w, "Failed to unsubscribe", http.StatusInternalServerError)
		return
	}
	s.logger.Info("All subscriptions removed", "email", email)
	s.render(w, http.StatusOK, "unsubscribed.tmpl", nil)
}
