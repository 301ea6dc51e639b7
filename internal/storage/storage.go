package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/internal/domain"
)

// Package storage provides the local cache of listing page windows.

// Store remembers the publish window of listing pages.
type Store interface {
	Close() error
	GetWindow(ctx context.Context, board string, page int) (domain.PageWindow, bool, error)
	PutWindow(ctx context.Context, board string, page int, w domain.PageWindow) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	WindowTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultWindowTTL       = 6 * time.Hour
	defaultCleanupInterval = time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.WindowTTL <= 0 {
		opts.WindowTTL = defaultWindowTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error { return nil }
func (noopStore) GetWindow(context.Context, string, int) (domain.PageWindow, bool, error) {
	return domain.PageWindow{}, false, nil
}
func (noopStore) PutWindow(context.Context, string, int, domain.PageWindow) error { return nil }
