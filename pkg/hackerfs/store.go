package hackerfs

import (
	"context"
	"sync"

	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
)

// Store persists serialized tree snapshots. Implementations must be safe
// for concurrent use.
type Store interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// Flush serializes the tree and writes it to the attached store.
func (v *VFS) Flush(ctx context.Context) error {
	if v.store == nil {
		return core.ErrUnsupported
	}
	data, err := v.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := v.store.Save(ctx, data); err != nil {
		return err
	}
	v.logger.Debug().Int("bytes", len(data)).Msg("tree flushed to store")
	return nil
}

// LoadFrom reads the latest snapshot from the attached store and
// restores it.
func (v *VFS) LoadFrom(ctx context.Context) error {
	if v.store == nil {
		return core.ErrUnsupported
	}
	data, err := v.store.Load(ctx)
	if err != nil {
		return err
	}
	return v.Restore(ctx, data)
}

// MemStore keeps the latest snapshot in memory. Useful in tests and as a
// staging target.
type MemStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{} }

// Save replaces the stored snapshot.
func (s *MemStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

// Load returns the stored snapshot, or core.ErrNotFound if nothing was
// saved yet.
func (s *MemStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, core.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}
