package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
)

// Repository implements stagedcontent.EntityAPI with in-memory storage. On a
// successful write it purges the keys named in the payload's deletion ledger
// against the supplied gateway, mirroring what the production backend does
// server-side.
type Repository struct {
	mu       sync.RWMutex
	entities map[string]*stagedcontent.Entity
	gateway  stagedcontent.Gateway
	logger   *slog.Logger
}

// New creates a new in-memory entity store. The gateway may be nil, in which
// case deletion ledgers are accepted but not acted on.
func New(gateway stagedcontent.Gateway) *Repository {
	return &Repository{
		entities: make(map[string]*stagedcontent.Entity),
		gateway:  gateway,
		logger:   slog.Default(),
	}
}

func (r *Repository) Create(ctx context.Context, payload stagedcontent.Payload) (*stagedcontent.Entity, error) {
	entity := &stagedcontent.Entity{
		ID:         uuid.NewString(),
		Collection: payload.Collection,
		Fields:     payload.Fields,
		ImageKeys:  append([]string(nil), payload.ImageKeys...),
		Sections:   append([]stagedcontent.SectionPayload(nil), payload.Sections...),
	}
	if payload.DescriptionKey != "" {
		entity.Extra = map[string]any{"detail_description": payload.DescriptionKey}
	}

	r.mu.Lock()
	entityCopy := *entity
	r.entities[entity.ID] = &entityCopy
	r.mu.Unlock()

	r.purge(ctx, payload.DeletedImages)
	return entity, nil
}

func (r *Repository) Update(ctx context.Context, id string, payload stagedcontent.Payload) (*stagedcontent.Entity, error) {
	r.mu.Lock()
	existing, exists := r.entities[id]
	if !exists {
		r.mu.Unlock()
		return nil, stagedcontent.ErrEntityNotFound
	}

	entity := &stagedcontent.Entity{
		ID:         id,
		Collection: payload.Collection,
		Fields:     payload.Fields,
		ImageKeys:  append([]string(nil), payload.ImageKeys...),
		Sections:   append([]stagedcontent.SectionPayload(nil), payload.Sections...),
		Extra:      existing.Extra,
	}
	if payload.DescriptionKey != "" {
		if entity.Extra == nil {
			entity.Extra = make(map[string]any)
		}
		entity.Extra["detail_description"] = payload.DescriptionKey
	}

	entityCopy := *entity
	r.entities[id] = &entityCopy
	r.mu.Unlock()

	r.purge(ctx, payload.DeletedImages)
	return entity, nil
}

func (r *Repository) Get(ctx context.Context, collection, id string) (*stagedcontent.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, exists := r.entities[id]
	if !exists || entity.Collection != collection {
		return nil, stagedcontent.ErrEntityNotFound
	}
	// Return a copy to prevent external modifications
	entityCopy := *entity
	return &entityCopy, nil
}

// purge deletes ledgered keys from the gateway. Purge failures are logged
// and swallowed; a missing blob must not fail a committed save.
func (r *Repository) purge(ctx context.Context, keys []string) {
	if r.gateway == nil {
		return
	}
	for _, key := range keys {
		if err := r.gateway.Delete(ctx, key); err != nil {
			r.logger.Warn("Failed to purge ledgered key", "key", key, "error", err)
		}
	}
}
