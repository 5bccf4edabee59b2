package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements stagedcontent.EntityAPI using PostgreSQL. Entities
// are stored one row per entity with fields and sections as jsonb. After a
// successful write the payload's deletion ledger is purged against the
// gateway, which is the server-side half of the deferred-deletion contract.
type Repository struct {
	db      DBTX
	gateway stagedcontent.Gateway
	logger  *slog.Logger
}

// New creates a new PostgreSQL entity store
func New(db DBTX, gateway stagedcontent.Gateway) *Repository {
	return &Repository{db: db, gateway: gateway, logger: slog.Default()}
}

// NewWithPool creates a new PostgreSQL entity store with connection pool
func NewWithPool(pool *pgxpool.Pool, gateway stagedcontent.Gateway) *Repository {
	return New(pool, gateway)
}

func (r *Repository) Create(ctx context.Context, payload stagedcontent.Payload) (*stagedcontent.Entity, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	fields, sections, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO entities (id, collection, fields, image_keys, description_key, sections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	if _, err := r.db.Exec(ctx, query,
		id, payload.Collection, fields, payload.ImageKeys, payload.DescriptionKey, sections, now); err != nil {
		return nil, r.handlePostgresError("create", err)
	}

	r.purge(ctx, payload.DeletedImages)
	return entityFromPayload(id, payload), nil
}

func (r *Repository) Update(ctx context.Context, id string, payload stagedcontent.Payload) (*stagedcontent.Entity, error) {
	now := time.Now().UTC()

	fields, sections, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE entities
		SET fields = $3, image_keys = $4, description_key = $5, sections = $6, updated_at = $7
		WHERE id = $1 AND collection = $2`
	tag, err := r.db.Exec(ctx, query,
		id, payload.Collection, fields, payload.ImageKeys, payload.DescriptionKey, sections, now)
	if err != nil {
		return nil, r.handlePostgresError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, stagedcontent.ErrEntityNotFound
	}

	r.purge(ctx, payload.DeletedImages)
	return entityFromPayload(id, payload), nil
}

func (r *Repository) Get(ctx context.Context, collection, id string) (*stagedcontent.Entity, error) {
	query := `
		SELECT id, collection, fields, image_keys, description_key, sections
		FROM entities
		WHERE id = $1 AND collection = $2`

	var entity stagedcontent.Entity
	var fields, sections []byte
	var descriptionKey string

	err := r.db.QueryRow(ctx, query, id, collection).Scan(
		&entity.ID, &entity.Collection, &fields, &entity.ImageKeys, &descriptionKey, &sections)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stagedcontent.ErrEntityNotFound
		}
		return nil, r.handlePostgresError("get", err)
	}

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &entity.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields: %w", err)
		}
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &entity.Sections); err != nil {
			return nil, fmt.Errorf("failed to decode sections: %w", err)
		}
	}
	if descriptionKey != "" {
		entity.Extra = map[string]any{"detail_description": descriptionKey}
	}
	return &entity, nil
}

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

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("entity already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required column %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

func marshalPayload(payload stagedcontent.Payload) (fields, sections []byte, err error) {
	fields, err = json.Marshal(payload.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	sections, err = json.Marshal(payload.Sections)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode sections: %w", err)
	}
	return fields, sections, nil
}

func entityFromPayload(id string, payload stagedcontent.Payload) *stagedcontent.Entity {
	entity := &stagedcontent.Entity{
		ID:         id,
		Collection: payload.Collection,
		Fields:     payload.Fields,
		ImageKeys:  append([]string(nil), payload.ImageKeys...),
		Sections:   append([]stagedcontent.SectionPayload(nil), payload.Sections...),
	}
	if payload.DescriptionKey != "" {
		entity.Extra = map[string]any{"detail_description": payload.DescriptionKey}
	}
	return entity
}
