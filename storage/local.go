package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type localBackend struct {
	dir string
}

func (l *localBackend) name() string { return "local" }

func (l *localBackend) read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read from local storage: %w", err)
	}
	return data, nil
}

func (l *localBackend) write(_ context.Context, key string, data []byte) error {
	if err := os.WriteFile(filepath.Join(l.dir, key), data, 0o600); err != nil {
		return fmt.Errorf("write to local storage: %w", err)
	}
	return nil
}

func (l *localBackend) remove(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(l.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete from local storage: %w", err)
	}
	return nil
}

func (l *localBackend) keys(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read local storage directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keys = append(keys, e.Name())
	}
	return keys, nil
}
