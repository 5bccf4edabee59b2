package stagedcontent

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/khunglong92/staged-content/pkg/stagedcontent/draftkey"
)

// Submitter runs the commit-time sequence for a form: upload staged files,
// re-serialize edited rich text, assemble the final payload with the
// deletion ledger, and invoke the entity API exactly once. Nothing partially
// committed is rolled back; a failed submission leaves staged state intact
// for retry.
type Submitter struct {
	gateway  Gateway
	api      EntityAPI
	keys     draftkey.Generator
	resolver *Resolver
	events   EventSink
	logger   *slog.Logger
}

// SubmitterOption represents a functional option for configuring a Submitter
type SubmitterOption func(*Submitter)

// WithGateway sets the object store gateway uploads go through
func WithGateway(gateway Gateway) SubmitterOption {
	return func(s *Submitter) {
		s.gateway = gateway
	}
}

// WithEntityAPI sets the create/update API the submission commits to
func WithEntityAPI(api EntityAPI) SubmitterOption {
	return func(s *Submitter) {
		s.api = api
	}
}

// WithKeyGenerator sets the key layout for uploads
func WithKeyGenerator(keys draftkey.Generator) SubmitterOption {
	return func(s *Submitter) {
		s.keys = keys
	}
}

// WithSubmitResolver sets the resolver used to refresh display URLs after a
// successful commit. Defaults to a resolver over the configured gateway.
func WithSubmitResolver(resolver *Resolver) SubmitterOption {
	return func(s *Submitter) {
		s.resolver = resolver
	}
}

// WithSubmitEventSink sets the event sink for submission notifications
func WithSubmitEventSink(events EventSink) SubmitterOption {
	return func(s *Submitter) {
		s.events = events
	}
}

// WithSubmitLogger sets the logger for the submitter
func WithSubmitLogger(logger *slog.Logger) SubmitterOption {
	return func(s *Submitter) {
		s.logger = logger
	}
}

// NewSubmitter creates a submitter with the given options. A gateway and an
// entity API are required.
func NewSubmitter(options ...SubmitterOption) (*Submitter, error) {
	s := &Submitter{
		keys:   draftkey.NewDefaultGenerator(),
		events: NewNoopEventSink(),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(s)
	}

	if s.gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if s.api == nil {
		return nil, fmt.Errorf("entity api is required")
	}
	if s.resolver == nil {
		s.resolver = NewResolver(s.gateway)
	}
	return s, nil
}

// Submit runs the full commit sequence for the form. Rules are checked
// before any network call. Re-entry while a submission is in flight is
// rejected; the upload steps are not individually idempotent.
func (s *Submitter) Submit(ctx context.Context, form *Form, rules Rules) (*Entity, error) {
	if err := rules.Validate(form); err != nil {
		return nil, err
	}
	if err := form.beginSubmit(); err != nil {
		return nil, err
	}
	defer form.endSubmit()

	s.events.SubmissionStarted(ctx, form.Collection)
	entity, err := s.submit(ctx, form)
	s.events.SubmissionFinished(ctx, form.Collection, err)
	return entity, err
}

func (s *Submitter) submit(ctx context.Context, form *Form) (*Entity, error) {
	// The address prefix is decided once and reused for every upload of
	// this submission. Pending slots and the ledger are snapshotted here;
	// anything staged or removed while the submission runs belongs to the
	// next save.
	prefix := s.keys.EntityPrefix(form.Collection, form.StoragePrefixID())
	staged := form.Assets.snapshotPending()
	ledgered := form.Assets.Ledger()

	files := make([]*FileSource, 0, len(staged))
	for _, asset := range staged {
		files = append(files, asset.File)
	}
	uploadedKeys, err := s.uploadPending(ctx, prefix, files)
	if err != nil {
		return nil, &SubmitError{Step: "upload_files", Err: err}
	}

	finalKeys := append(form.Assets.ExistingKeys(), uploadedKeys...)

	descriptionKey, err := s.serializeDescription(ctx, prefix, form)
	if err != nil {
		return nil, &SubmitError{Step: "upload_description", Err: err}
	}

	var sectionPayloads []SectionPayload
	if form.Sections != nil {
		for _, section := range form.Sections.List() {
			payload, err := serializeForSubmit(ctx, s.gateway, prefix, section)
			if err != nil {
				return nil, &SubmitError{Step: "upload_sections", Err: err}
			}
			sectionPayloads = append(sectionPayloads, payload)
		}
	}

	payload := Payload{
		Collection:     form.Collection,
		Fields:         form.Fields(),
		ImageKeys:      finalKeys,
		DescriptionKey: descriptionKey,
		Sections:       sectionPayloads,
		DeletedImages:  ledgered,
	}

	var entity *Entity
	if form.IsEdit() {
		entity, err = s.api.Update(ctx, form.EntityID, payload)
	} else {
		entity, err = s.api.Create(ctx, payload)
	}
	if err != nil {
		return nil, &SubmitError{Step: "commit", Err: fmt.Errorf("%w: %v", ErrCommitFailed, err)}
	}

	s.reconcile(ctx, form, entity, staged, uploadedKeys, ledgered, descriptionKey, sectionPayloads)
	return entity, nil
}

// uploadPending uploads every staged file under the submission prefix.
// Uploads fan out concurrently; the resulting keys keep the files' display
// order regardless of completion order. Any single failure fails the batch.
func (s *Submitter) uploadPending(ctx context.Context, prefix string, files []*FileSource) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	keys := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			key, err := s.gateway.Upload(gctx, bytes.NewReader(file.Data), UploadRequest{
				PathPrefix:  prefix,
				FileName:    file.Name,
				ContentType: file.ContentType,
			})
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrUploadFailed, file.Name, err)
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Submitter) serializeDescription(ctx context.Context, prefix string, form *Form) (string, error) {
	body := form.Description()
	if strings.TrimSpace(body) == "" {
		return "", nil
	}

	req := UploadRequest{
		PathPrefix:  prefix,
		FileName:    "description.html",
		ContentType: "text/html",
		RichText:    true,
	}
	if key := form.DescriptionKey(); key != "" {
		req.CustomKey = key
		req.FileName = lastPathSegment(key)
	}

	key, err := s.gateway.Upload(ctx, strings.NewReader(body), req)
	if err != nil {
		return "", &StorageError{Key: req.CustomKey, Op: "upload_description", Err: err}
	}
	return key, nil
}

// reconcile settles client state after a successful commit: the uploaded
// snapshot slots become existing assets under their keys, the submitted
// ledger entries are cleared, preview handles are released, and rich-text
// overwrite targets are recorded.
func (s *Submitter) reconcile(ctx context.Context, form *Form, entity *Entity, staged []StagedAsset, uploadedKeys, ledgered []string, descriptionKey string, sections []SectionPayload) {
	urls := s.resolver.ResolveURLs(ctx, uploadedKeys)
	form.Assets.commit(staged, uploadedKeys, ledgered, urls)

	if descriptionKey != "" {
		form.setDescriptionKey(descriptionKey)
	}
	if form.Sections != nil {
		form.Sections.commit(sections)
	}
	if !form.IsEdit() && entity != nil && entity.ID != "" {
		form.EntityID = entity.ID
	}

	s.logger.Info("Submission reconciled",
		"collection", form.Collection,
		"entity_id", form.EntityID,
		"uploaded", len(uploadedKeys))
}
