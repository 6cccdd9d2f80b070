package storage

// Package storage selects the session storage backend once at startup.
// A candidate backend is probed with a write-read-delete cycle; if any step
// fails the adapter falls back to an in-memory backend. The capability
// decision is cached for the process lifetime so an intermittently
// available backend cannot flap between modes.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/helmgate/sessiond/internal/adapters/memstore"
	"github.com/helmgate/sessiond/internal/ports"
)

// Adapter wraps the selected backend together with its capability flag.
type Adapter struct {
	backend    ports.StorageBackend
	persistent bool
}

// Backend returns the selected backend.
func (a *Adapter) Backend() ports.StorageBackend { return a.backend }

// Persistent reports whether the selected backend survives a restart.
// Computed once by Select; never re-evaluated.
func (a *Adapter) Persistent() bool { return a.persistent }

// Select probes the candidate backend and returns an adapter wrapping
// either the candidate (persistent) or an in-memory fallback. A nil
// candidate skips the probe entirely.
func Select(ctx context.Context, candidate ports.StorageBackend, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if candidate == nil {
		logger.InfoContext(ctx, "no persistent storage configured, using in-memory session storage")
		return &Adapter{backend: memstore.NewBackend(), persistent: false}
	}

	if err := probe(ctx, candidate); err != nil {
		logger.WarnContext(ctx, "storage probe failed, falling back to in-memory session storage",
			"error", err)
		return &Adapter{backend: memstore.NewBackend(), persistent: false}
	}

	logger.InfoContext(ctx, "persistent session storage available")
	return &Adapter{backend: candidate, persistent: true}
}

// probe performs a write-then-read-then-delete round trip under a
// throwaway key and verifies the value survives the round trip.
func probe(ctx context.Context, backend ports.StorageBackend) error {
	key := "probe:" + uuid.NewString()
	const value = "ok"

	if err := backend.Set(ctx, key, value); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}
	got, err := backend.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("probe read: %w", err)
	}
	if got != value {
		return fmt.Errorf("probe read mismatch: got %q", got)
	}
	if err := backend.Remove(ctx, key); err != nil {
		return fmt.Errorf("probe delete: %w", err)
	}
	return nil
}
