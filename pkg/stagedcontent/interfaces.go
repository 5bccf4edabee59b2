package stagedcontent

import (
	"context"
	"io"
	"time"
)

// Gateway defines the interface for the key-addressed object store.
type Gateway interface {
	// Upload stores a blob and returns the key it was assigned. When
	// req.CustomKey is set the gateway overwrites that key in place instead
	// of minting a new one.
	Upload(ctx context.Context, reader io.Reader, req UploadRequest) (string, error)

	// ResolveURL returns a time-limited fetch URL for a key.
	ResolveURL(ctx context.Context, key string) (string, error)

	// ResolveURLs resolves a batch of keys in one round trip.
	ResolveURLs(ctx context.Context, keys []string) (map[string]string, error)

	// Download fetches a blob directly.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a blob by key.
	Delete(ctx context.Context, key string) error

	// Stat retrieves metadata for a stored blob.
	Stat(ctx context.Context, key string) (*BlobMeta, error)
}

// UploadRequest contains parameters for uploading a blob.
type UploadRequest struct {
	// PathPrefix addresses every upload of one submission under the same
	// entity prefix. Ignored when CustomKey is set.
	PathPrefix  string
	FileName    string
	ContentType string

	// CustomKey requests overwrite-in-place of an existing key.
	CustomKey string

	// RichText hints that the blob is serialized editor markup, which the
	// gateway may use to select a storage policy.
	RichText bool
}

// BlobMeta contains metadata about a stored blob.
type BlobMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// EntityAPI defines the external create/update API the orchestrator commits
// to. Implementations are responsible for purging the keys named in
// Payload.DeletedImages after a successful write.
type EntityAPI interface {
	Create(ctx context.Context, payload Payload) (*Entity, error)
	Update(ctx context.Context, id string, payload Payload) (*Entity, error)
	Get(ctx context.Context, collection, id string) (*Entity, error)
}

// PreviewAllocator manages ephemeral preview handles for pending files. Each
// handle is released exactly once: on slot removal, on form teardown, or when
// submission succeeds and the asset is reconciled to a server key.
type PreviewAllocator interface {
	Allocate(file *FileSource) string
	Release(url string)
}

// EventSink defines the interface for staging lifecycle notifications.
type EventSink interface {
	// AssetStaged is fired when a file passes staging checks
	AssetStaged(ctx context.Context, file *FileSource) error

	// AssetRemoved is fired when a slot is removed; key is empty for pending slots
	AssetRemoved(ctx context.Context, key string) error

	// SubmissionStarted is fired when the commit sequence begins
	SubmissionStarted(ctx context.Context, collection string) error

	// SubmissionFinished is fired when the commit sequence settles
	SubmissionFinished(ctx context.Context, collection string, err error) error
}
