package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"reddit-live/pkg/notifier"
)

func testSender(t *testing.T) (*Sender, *MockProvider) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mock := NewMockProvider(logger)
	return New(mock, logger, "https://notify.example.com"), mock
}

func testSubscription() (*notifier.Subscription, *notifier.Watch) {
	watch := &notifier.Watch{
		ThreadID:  "ux4r1lk5c8ys",
		ThreadURL: notifier.ThreadURL("ux4r1lk5c8ys"),
		Title:     "Launch day",
	}
	sub := &notifier.Subscription{
		Email:   "rider@example.com",
		Token:   strings.Repeat("ab", 32),
		Threads: map[string]*notifier.Watch{watch.ThreadID: watch},
	}
	return sub, watch
}

func TestSendNotification(t *testing.T) {
	s, mock := testSender(t)
	sub, watch := testSubscription()

	updates := []*notifier.Update{
		{
			Name:     "LiveUpdate_1",
			Author:   "alice",
			Body:     "first",
			BodyHTML: `<div class="md"><p>first <script>x()</script></p></div>`,
			Created:  time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC),
			URL:      notifier.UpdateURL(watch.ThreadID, "1"),
		},
		{
			Name:     "LiveUpdate_2",
			Author:   "bob",
			Body:     "second\nline",
			Stricken: true,
		},
	}

	require.NoError(t, s.SendNotification(context.Background(), sub, watch, updates))

	sent := mock.Sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "rider@example.com", msg.To)
	assert.Equal(t, "Launch day", msg.Subject)
	assert.Contains(t, msg.HTML, "u/alice")
	assert.Contains(t, msg.HTML, "Mar 1, 2026 at 2:05 PM UTC")
	assert.Contains(t, msg.HTML, "<div><p>first </p></div>")
	assert.NotContains(t, msg.HTML, "x()")
	assert.Contains(t, msg.HTML, "<del>second<br>\nline</del>")
	assert.Contains(t, msg.HTML, `class="footer with-border"`)
	assert.Contains(t, msg.HTML, `<div class="update" style="padding-top: 0;">`)
	assert.Contains(t, msg.HTML, `<div class="update" style="border-bottom: none; padding-bottom: 0;">`)
	assert.Contains(t, msg.HTML, "https://notify.example.com/manage?token="+sub.Token)
	assert.Contains(t, msg.HTML, `href="https://www.reddit.com/live/ux4r1lk5c8ys"`)
}

func TestSendNotificationSingleUpdate(t *testing.T) {
	s, mock := testSender(t)
	sub, watch := testSubscription()
	watch.Title = ""

	err := s.SendNotification(context.Background(), sub, watch, []*notifier.Update{{Name: "LiveUpdate_1", Body: "<hi>"}})
	require.NoError(t, err)

	msg := mock.Sent()[0]
	assert.Equal(t, defaultSubject, msg.Subject)
	assert.Contains(t, msg.HTML, `style="padding-top: 0; border-bottom: none; padding-bottom: 0;"`)
	assert.Contains(t, msg.HTML, `<div class="footer">`)
	assert.Contains(t, msg.HTML, "u/[deleted]")
	assert.Contains(t, msg.HTML, "&lt;hi&gt;")
}

func TestSendNotificationNoUpdates(t *testing.T) {
	s, mock := testSender(t)
	sub, watch := testSubscription()

	require.NoError(t, s.SendNotification(context.Background(), sub, watch, nil))
	assert.Empty(t, mock.Sent())
}

func TestSendWelcome(t *testing.T) {
	s, mock := testSender(t)
	sub, watch := testSubscription()
	watch.Title = "Tom & Jerry"

	require.NoError(t, s.SendWelcome(context.Background(), sub, watch, "203.0.113.9", "<agent>"))

	msg := mock.Sent()[0]
	assert.Equal(t, "Tom & Jerry", msg.Subject)
	assert.Contains(t, msg.HTML, "<strong>Tom &amp; Jerry</strong>")
	assert.Contains(t, msg.HTML, "203.0.113.9")
	assert.Contains(t, msg.HTML, "&lt;agent&gt;")
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("a@example.com", "Élection live", "<p>x</p>")
	assert.Contains(t, msg, "To: a@example.com\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>x</p>"))
	assert.Equal(t, "evilBcc: x", sanitizeEmailHeader("evil\r\nBcc: x"))
}

func TestBrevoProvider(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "accepted", status: http.StatusCreated, body: `{"messageId":"<1@smtp-relay>"}`},
		{
			name:    "rejected",
			status:  http.StatusBadRequest,
			body:    `{"code":"invalid_parameter","message":"email is not valid"}`,
			wantErr: "brevo: HTTP 400: email is not valid (invalid_parameter)",
		},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: "brevo: HTTP 401"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			var got brevoMessage
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				assert.Equal(t, "secret", r.Header.Get("api-key"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewBrevoProvider("secret", "from@example.com", "Live", slog.New(slog.NewTextHandler(io.Discard, nil)))
			p.endpoint = srv.URL

			err := p.Send(context.Background(), "to@example.com", "subj", "<p>hi</p>")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, calls)
			assert.Equal(t, "from@example.com", got.Sender.Email)
			assert.Equal(t, "Live", got.Sender.Name)
			assert.Equal(t, "to@example.com", got.To[0].Email)
			assert.Equal(t, "<p>hi</p>", got.HTML)
			assert.Equal(t, []string{brevoTag}, got.Tags)
		})
	}
}

func TestGmailError(t *testing.T) {
	assert.NoError(t, gmailError(nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, gmailError(plain))

	for _, code := range []int{http.StatusBadRequest, http.StatusForbidden} {
		var calls int
		err := deliver(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), "gmail", "a@example.com", func() error {
			calls++
			return gmailError(&googleapi.Error{Code: code})
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls, "code %d", code)
	}
}
