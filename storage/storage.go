// Package storage handles persistence of subscriptions.
package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"

	"reddit-live/pkg/notifier"
)

// ErrNotFound is returned when no subscription exists for a key.
var ErrNotFound = errors.New("storage: object doesn't exist")

const keyPrefix = "sub-"

// backend stores opaque objects by key.
type backend interface {
	read(ctx context.Context, key string) ([]byte, error)
	write(ctx context.Context, key string, data []byte) error
	remove(ctx context.Context, key string) error
	keys(ctx context.Context, prefix string) ([]string, error)
	name() string
}

// Store handles subscription persistence.
type Store struct {
	backend backend
	logger  *slog.Logger
	salt    []byte
}

// New creates a store backed by a GCS bucket when client is non-nil, and by
// the localPath directory otherwise.
func New(client *storage.Client, bucket string, localPath string, salt []byte, logger *slog.Logger) *Store {
	var b backend
	if client != nil {
		b = &gcsBackend{client: client, bucket: bucket, logger: logger}
	} else {
		b = &localBackend{dir: localPath}
	}
	return &Store{backend: b, logger: logger, salt: salt}
}

// TokenFromEmail derives a deterministic, unguessable token from an email address.
// Uses HMAC-SHA256 with a secret salt to ensure tokens cannot be guessed without the salt.
func (s *Store) TokenFromEmail(email string) string {
	h := hmac.New(sha256.New, s.salt)
	h.Write([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(h.Sum(nil))
}

// SubscriptionKey generates a stable object name from a token. It returns
// an empty string unless token is exactly 64 lowercase hex characters.
func SubscriptionKey(token string) string {
	if len(token) != 64 {
		return ""
	}

	// Check every character so timing does not depend on where it fails.
	valid := 1
	for _, c := range token {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			valid = 0
		}
	}
	if valid == 0 {
		return ""
	}

	return keyPrefix + token + ".json"
}

// Save saves a subscription.
func (s *Store) Save(ctx context.Context, sub *notifier.Subscription) error {
	key := SubscriptionKey(sub.Token)
	if key == "" {
		return errors.New("invalid token format")
	}

	data, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	if err := s.backend.write(ctx, key, data); err != nil {
		return err
	}

	s.logger.Info("Subscription saved", "backend", s.backend.name(), "key", key, "email", sub.Email, "thread_count", len(sub.Threads))
	return nil
}

// LoadByEmail loads a subscription by email address.
func (s *Store) LoadByEmail(ctx context.Context, email string) (*notifier.Subscription, error) {
	return s.Load(ctx, SubscriptionKey(s.TokenFromEmail(email)))
}

// LoadByToken loads a subscription by its token. Malformed tokens report
// ErrNotFound like unknown ones.
func (s *Store) LoadByToken(ctx context.Context, token string) (*notifier.Subscription, error) {
	key := SubscriptionKey(token)
	if key == "" {
		return nil, ErrNotFound
	}
	return s.Load(ctx, key)
}

// Load loads a subscription by key.
func (s *Store) Load(ctx context.Context, key string) (*notifier.Subscription, error) {
	if key == "" {
		return nil, errors.New("invalid key format")
	}

	data, err := s.backend.read(ctx, key)
	if err != nil {
		return nil, err
	}

	var sub notifier.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}
	if sub.Threads == nil {
		sub.Threads = make(map[string]*notifier.Watch)
	}
	return &sub, nil
}

// Delete removes a subscription by email. Deleting a missing subscription
// is not an error.
func (s *Store) Delete(ctx context.Context, email string) error {
	key := SubscriptionKey(s.TokenFromEmail(email))
	if key == "" {
		return errors.New("invalid token format")
	}
	if err := s.backend.remove(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	s.logger.Info("Subscription deleted", "backend", s.backend.name(), "key", key, "email", email)
	return nil
}

// List lists all subscriptions. Unreadable entries are logged and skipped.
func (s *Store) List(ctx context.Context) ([]*notifier.Subscription, error) {
	keys, err := s.backend.keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	subs := make([]*notifier.Subscription, 0, len(keys))
	for _, key := range keys {
		sub, err := s.Load(ctx, key)
		if err != nil {
			s.logger.Warn("Failed to load subscription", "key", key, "error", err)
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// IsNotFound checks if an error indicates a subscription was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
