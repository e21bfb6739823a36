package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

type gcsBackend struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

func (g *gcsBackend) name() string { return "gcs" }

func (g *gcsBackend) do(ctx context.Context, op, key string, fn func() error) error {
	err := retry.Do(
		fn,
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Info("Retrying storage operation after error", "op", op, "attempt", n, "key", key, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, storage.ErrObjectNotExist)
		}),
	)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s after retries: %w", op, err)
	}
	return nil
}

func (g *gcsBackend) read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := g.do(ctx, "load", key, func() error {
		r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
		if err != nil {
			return fmt.Errorf("open storage reader: %w", err)
		}
		defer func() {
			if closeErr := r.Close(); closeErr != nil {
				g.logger.Warn("Failed to close storage reader", "error", closeErr)
			}
		}()
		data, err = io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read from storage: %w", err)
		}
		return nil
	})
	return data, err
}

func (g *gcsBackend) write(ctx context.Context, key string, data []byte) error {
	return g.do(ctx, "save", key, func() error {
		w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
		w.ContentType = "application/json"
		if _, err := w.Write(data); err != nil {
			if closeErr := w.Close(); closeErr != nil {
				g.logger.Warn("Failed to close writer after error", "error", closeErr)
			}
			return fmt.Errorf("write to storage: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("close storage writer: %w", err)
		}
		return nil
	})
}

func (g *gcsBackend) remove(ctx context.Context, key string) error {
	return g.do(ctx, "delete", key, func() error {
		return g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	})
}

func (g *gcsBackend) keys(ctx context.Context, prefix string) ([]string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}
