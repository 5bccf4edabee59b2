package stagedcontent

import (
	"context"
	"fmt"
	"sync"
)

// Store tracks the per-form staging state: existing server-backed assets,
// newly staged local files, and the deletion ledger of keys to purge on a
// successful save. One Store is owned by exactly one form instance; never
// share a Store between forms.
type Store struct {
	mu       sync.Mutex
	resolver *Resolver
	previews PreviewAllocator
	events   EventSink
	limits   Limits

	existing []StagedAsset
	pending  []StagedAsset
	ledger   map[string]struct{}

	// snapshot of the keys from the last LoadExisting call, for Reset
	loadedKeys []string
}

// StoreOption represents a functional option for configuring a Store
type StoreOption func(*Store)

// WithLimits sets the staging bounds for the store
func WithLimits(limits Limits) StoreOption {
	return func(s *Store) {
		s.limits = limits
	}
}

// WithPreviewAllocator sets the allocator for ephemeral preview handles
func WithPreviewAllocator(previews PreviewAllocator) StoreOption {
	return func(s *Store) {
		s.previews = previews
	}
}

// WithEventSink sets the event sink for staging notifications
func WithEventSink(events EventSink) StoreOption {
	return func(s *Store) {
		s.events = events
	}
}

// NewStore creates an asset staging store resolving display URLs through the
// given resolver.
func NewStore(resolver *Resolver, options ...StoreOption) *Store {
	s := &Store{
		resolver: resolver,
		previews: NewLocalPreviewAllocator(),
		events:   NewNoopEventSink(),
		ledger:   make(map[string]struct{}),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// LoadExisting populates the store from the keys of a loaded entity. Display
// URLs are resolved in one batched gateway round trip. Any previous staging
// state, ledger included, is discarded.
func (s *Store) LoadExisting(ctx context.Context, keys []string) {
	urls := s.resolver.ResolveURLs(ctx, keys)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.releasePendingLocked()
	s.existing = make([]StagedAsset, 0, len(keys))
	for _, key := range keys {
		s.existing = append(s.existing, StagedAsset{
			Origin:     OriginExisting,
			Key:        key,
			DisplayURL: urls[key],
		})
	}
	s.pending = nil
	s.ledger = make(map[string]struct{})
	s.loadedKeys = append([]string(nil), keys...)
}

// StageFiles validates and stages locally selected files. A file failing the
// count or size bound is rejected with a StagingError and staged state is
// left unchanged; the bound is enforced here, not at submission time.
func (s *Store) StageFiles(ctx context.Context, files []*FileSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.existing) + len(s.pending)
	if total+len(files) > s.limits.maxCount() {
		return &StagingError{
			FileName: fmt.Sprintf("%d files", len(files)),
			Err:      fmt.Errorf("%w: %d staged, limit %d", ErrTooManyFiles, total, s.limits.maxCount()),
		}
	}
	for _, file := range files {
		if file.Size > s.limits.maxBytes() {
			return &StagingError{
				FileName: file.Name,
				Err:      fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, file.Size, s.limits.maxBytes()),
			}
		}
	}

	for _, file := range files {
		s.pending = append(s.pending, StagedAsset{
			Origin:     OriginPending,
			DisplayURL: s.previews.Allocate(file),
			File:       file,
		})
		s.events.AssetStaged(ctx, file)
	}
	return nil
}

// RemoveAt removes the slot at index in the combined existing-then-pending
// view. Removing an existing slot adds its key to the deletion ledger;
// removing a pending slot releases its preview handle immediately and never
// touches the ledger.
func (s *Store) RemoveAt(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.existing)+len(s.pending) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	if index < len(s.existing) {
		asset := s.existing[index]
		s.ledger[asset.Key] = struct{}{}
		s.existing = append(s.existing[:index], s.existing[index+1:]...)
		s.events.AssetRemoved(ctx, asset.Key)
		return nil
	}

	pi := index - len(s.existing)
	asset := s.pending[pi]
	s.previews.Release(asset.DisplayURL)
	s.pending = append(s.pending[:pi], s.pending[pi+1:]...)
	s.events.AssetRemoved(ctx, "")
	return nil
}

// Reset restores the store to the snapshot of the last LoadExisting call and
// discards pending files and the ledger. The gateway is never contacted;
// cancelling an edit is a server-side no-op.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	keys := append([]string(nil), s.loadedKeys...)
	s.mu.Unlock()

	s.LoadExisting(ctx, keys)
}

// Release frees every outstanding preview handle. Called on form teardown
// regardless of submission outcome.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releasePendingLocked()
}

func (s *Store) releasePendingLocked() {
	for _, asset := range s.pending {
		s.previews.Release(asset.DisplayURL)
	}
	s.pending = nil
}

// Assets returns the combined existing-then-pending view in display order.
func (s *Store) Assets() []StagedAsset {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StagedAsset, 0, len(s.existing)+len(s.pending))
	out = append(out, s.existing...)
	out = append(out, s.pending...)
	return out
}

// ExistingKeys returns the keys of existing assets in display order,
// excluding anything present in the deletion ledger; a removal always wins
// over a stale existing-key reference.
func (s *Store) ExistingKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.existing))
	for _, asset := range s.existing {
		if _, deleted := s.ledger[asset.Key]; deleted {
			continue
		}
		keys = append(keys, asset.Key)
	}
	return keys
}

// PendingFiles returns the staged local files in display order.
func (s *Store) PendingFiles() []*FileSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]*FileSource, 0, len(s.pending))
	for _, asset := range s.pending {
		files = append(files, asset.File)
	}
	return files
}

// Ledger returns the keys queued for server-side purging.
func (s *Store) Ledger() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.ledger))
	for key := range s.ledger {
		keys = append(keys, key)
	}
	return keys
}

// snapshotPending returns a copy of the pending slots for a submission to
// upload. The snapshot is what commit later reconciles, so slots staged
// after it stay pending for the next save.
func (s *Store) snapshotPending() []StagedAsset {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]StagedAsset(nil), s.pending...)
}

// commit reconciles the store after a successful submission: each uploaded
// snapshot slot becomes an existing asset under its key and has its preview
// handle released, and the ledger entries the submission carried are
// cleared. Slots staged and keys ledgered while the submission was in flight
// are untouched; they belong to the next save.
func (s *Store) commit(staged []StagedAsset, uploadedKeys, ledgered []string, urls map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range ledgered {
		delete(s.ledger, key)
	}

	for i, snap := range staged {
		if i >= len(uploadedKeys) {
			break
		}
		for pi, asset := range s.pending {
			if asset.DisplayURL == snap.DisplayURL {
				s.pending = append(s.pending[:pi], s.pending[pi+1:]...)
				break
			}
		}
		s.previews.Release(snap.DisplayURL)
		key := uploadedKeys[i]
		s.existing = append(s.existing, StagedAsset{
			Origin:     OriginExisting,
			Key:        key,
			DisplayURL: urls[key],
		})
	}

	s.loadedKeys = s.loadedKeys[:0]
	for _, asset := range s.existing {
		s.loadedKeys = append(s.loadedKeys, asset.Key)
	}
}
