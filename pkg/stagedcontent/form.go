package stagedcontent

import (
	"context"
	"sync"
)

// Form holds the complete client-side editing state for one entity: plain
// fields, the staged assets, the optional single detailed-description rich
// text, and the optional multi-section content. A Form is owned by exactly
// one editing surface at a time.
type Form struct {
	Collection string

	// EntityID is the server-assigned identity when editing. Empty for a
	// create, in which case Draft addresses all uploads.
	EntityID string
	Draft    DraftID

	Assets   *Store
	Sections *Sections

	mu             sync.Mutex
	fields         map[string]any
	description    string
	descriptionKey string
	submitting     bool
}

// NewForm creates editing state for one entity. Pass the server entityID
// when editing; leave it empty to create, and a fresh draft identity is
// assigned before any upload occurs.
func NewForm(collection, entityID string, assets *Store, sections *Sections) *Form {
	return &Form{
		Collection: collection,
		EntityID:   entityID,
		Draft:      NewDraftID(),
		fields:     make(map[string]any),
		Assets:     assets,
		Sections:   sections,
	}
}

// SetFields replaces the plain field values wholesale.
func (f *Form) SetFields(fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fields = make(map[string]any, len(fields))
	for name, value := range fields {
		f.fields[name] = value
	}
}

// SetField sets a single plain field value.
func (f *Form) SetField(name string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fields[name] = value
}

// Fields returns a copy of the plain field values.
func (f *Form) Fields() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]any, len(f.fields))
	for name, value := range f.fields {
		out[name] = value
	}
	return out
}

// IsEdit reports whether the form targets an existing server entity. Edits
// always address uploads by the server ID, even though a draft identity was
// generated for scratch state.
func (f *Form) IsEdit() bool { return f.EntityID != "" }

// StoragePrefixID returns the identity all uploads of a submission are
// addressed under, decided once per submission.
func (f *Form) StoragePrefixID() string {
	if f.IsEdit() {
		return f.EntityID
	}
	return string(f.Draft)
}

// LoadDescription initializes the single detailed-description field from a
// stored reference. A reference classifying as an opaque key is remembered
// as the overwrite target; the editor always receives resolved content.
func (f *Form) LoadDescription(ctx context.Context, resolver *Resolver, ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.descriptionKey = ""
	if ref != "" && Classify(ref) == RefKey {
		f.descriptionKey = ref
	}
	f.description = resolver.ResolveContent(ctx, ref)
}

// SetDescription replaces the detailed-description markup.
func (f *Form) SetDescription(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.description = body
}

// Description returns the current detailed-description markup.
func (f *Form) Description() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.description
}

// DescriptionKey returns the overwrite target for the detailed description,
// or "" when it has never been persisted as a key.
func (f *Form) DescriptionKey() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.descriptionKey
}

func (f *Form) beginSubmit() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return ErrSubmissionInFlight
	}
	f.submitting = true
	return nil
}

func (f *Form) endSubmit() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitting = false
}

func (f *Form) setDescriptionKey(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.descriptionKey = key
}
