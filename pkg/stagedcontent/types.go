package stagedcontent

import (
	"strings"

	"github.com/google/uuid"
)

// RefKind classifies the three shapes a stored reference can take.
type RefKind string

// Reference kind constants (typed).
const (
	// RefInline is literal rich-text markup that has not been persisted.
	RefInline RefKind = "inline"
	// RefURL is an absolute URL, resolvable without the gateway.
	RefURL RefKind = "url"
	// RefKey is a gateway-assigned opaque key requiring resolution.
	RefKey RefKind = "key"
)

// Classify determines the kind of a stored reference from its content alone.
// Exactly one kind holds for any given string; provenance never matters.
func Classify(ref string) RefKind {
	trimmed := strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(trimmed, "<"):
		return RefInline
	case strings.HasPrefix(trimmed, "http://"), strings.HasPrefix(trimmed, "https://"):
		return RefURL
	default:
		return RefKey
	}
}

// AssetOrigin is the domain type for staged-asset provenance.
type AssetOrigin string

// Asset origin constants (typed).
const (
	// OriginExisting marks an asset loaded from a saved entity, backed by a key.
	OriginExisting AssetOrigin = "existing"
	// OriginPending marks a locally selected file that has not been uploaded.
	OriginPending AssetOrigin = "pending"
)

// FileSource describes one locally selected file awaiting upload. Contents
// are held by the caller; Data must remain valid until submission settles.
type FileSource struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// StagedAsset represents one image slot in a form, either server-backed or
// pending upload.
type StagedAsset struct {
	Origin     AssetOrigin `json:"origin"`
	Key        string      `json:"key,omitempty"`
	DisplayURL string      `json:"display_url"`
	File       *FileSource `json:"-"`
}

// Limits bounds what StageFiles accepts. Zero values fall back to defaults.
type Limits struct {
	MaxCount int
	MaxBytes int64
}

// Default staging bounds, used when a Limits field is zero.
const (
	DefaultMaxCount = 10
	DefaultMaxBytes = 5 << 20
)

func (l Limits) maxCount() int {
	if l.MaxCount <= 0 {
		return DefaultMaxCount
	}
	return l.MaxCount
}

func (l Limits) maxBytes() int64 {
	if l.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return l.MaxBytes
}

// Section is one titled rich-text block within a multi-block content entity.
// Body is treated as inline markup while editing. originalKey is set only
// when the section was loaded from an entity whose body was an opaque key;
// it is the overwrite target on save.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`

	originalKey string
}

// OriginalKey returns the storage key this section overwrites on save, or ""
// when the section has never been persisted as a key.
func (s Section) OriginalKey() string { return s.originalKey }

// SectionInput is the raw shape sections arrive in from a loaded entity.
type SectionInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SectionPayload is the serialized form of a section in a submission payload.
type SectionPayload struct {
	Title string `json:"title"`
	Body  string `json:"description"`
}

// DraftID is the client-generated identity assigned to an entity before any
// upload occurs, so all uploads for a not-yet-created entity share one
// addressable prefix. On edit the server ID is used instead; the two are
// never conflated.
type DraftID string

// NewDraftID generates a fresh draft identity.
func NewDraftID() DraftID {
	return DraftID(uuid.NewString())
}

// Entity is the record returned by the entity CRUD API after a commit.
type Entity struct {
	ID         string                 `json:"id"`
	Collection string                 `json:"collection"`
	Fields     map[string]any         `json:"fields"`
	ImageKeys  []string               `json:"images"`
	Sections   []SectionPayload       `json:"sections,omitempty"`
	Extra      map[string]any         `json:"extra,omitempty"`
}

// Payload is the fully resolved entity payload the orchestrator hands to the
// entity CRUD API, ledger included.
type Payload struct {
	Collection     string           `json:"collection"`
	Fields         map[string]any   `json:"fields"`
	ImageKeys      []string         `json:"images"`
	DescriptionKey string           `json:"detail_description,omitempty"`
	Sections       []SectionPayload `json:"sections,omitempty"`
	DeletedImages  []string         `json:"deletedImages"`
}
