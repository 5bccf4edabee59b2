package stagedcontent

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Sections manages the ordered list of rich-text sections for one form.
// Each body may already exist in storage as an opaque key; the original key
// is remembered per section so edits overwrite rather than duplicate
// storage. One Sections instance is owned by exactly one form.
type Sections struct {
	mu       sync.Mutex
	resolver *Resolver
	list     []Section
}

// NewSections creates a section synchronizer resolving bodies through the
// given resolver.
func NewSections(resolver *Resolver) *Sections {
	return &Sections{resolver: resolver}
}

// Load populates the synchronizer from a loaded entity. Bodies that classify
// as opaque keys are remembered as overwrite targets; every body is resolved
// to displayable content so the editor shows rendered markup, not a raw key.
func (s *Sections) Load(ctx context.Context, raw []SectionInput) {
	list := make([]Section, 0, len(raw))
	for _, in := range raw {
		section := Section{Title: in.Title}
		if Classify(in.Description) == RefKey && in.Description != "" {
			section.originalKey = in.Description
		}
		section.Body = s.resolver.ResolveContent(ctx, in.Description)
		list = append(list, section)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = list
}

// Append adds an empty section at the end of the list.
func (s *Sections) Append() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list = append(s.list, Section{})
}

// Remove deletes the section at index. The removed body's key is not added
// to any deletion ledger; orphaned section bodies are left for server-side
// collection.
func (s *Sections) Remove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.list) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	s.list = append(s.list[:index], s.list[index+1:]...)
	return nil
}

// Set replaces the title and body of the section at index, preserving its
// overwrite target.
func (s *Sections) Set(index int, title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.list) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	s.list[index].Title = title
	s.list[index].Body = body
	return nil
}

// List returns a copy of the current sections in order.
func (s *Sections) List() []Section {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Section(nil), s.list...)
}

// Len returns the number of sections.
func (s *Sections) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.list)
}

// serializeForSubmit packages one section for the final payload. An empty
// body passes through unchanged with no upload. A non-empty body is uploaded
// as a text/html blob; when the section carries an original key the gateway
// overwrites that key, with the filename preserved from the key's last path
// segment, so repeated edit-and-save cycles do not mint orphan blobs.
func serializeForSubmit(ctx context.Context, gateway Gateway, prefix string, section Section) (SectionPayload, error) {
	if strings.TrimSpace(section.Body) == "" {
		return SectionPayload{Title: section.Title, Body: section.Body}, nil
	}

	req := UploadRequest{
		PathPrefix:  prefix,
		FileName:    "section.html",
		ContentType: "text/html",
		RichText:    true,
	}
	if section.originalKey != "" {
		req.CustomKey = section.originalKey
		req.FileName = lastPathSegment(section.originalKey)
	}

	key, err := gateway.Upload(ctx, strings.NewReader(section.Body), req)
	if err != nil {
		return SectionPayload{}, &StorageError{Key: req.CustomKey, Op: "upload_section", Err: err}
	}
	return SectionPayload{Title: section.Title, Body: key}, nil
}

// commit records the keys sections were saved under so the next save cycle
// overwrites them in place.
func (s *Sections) commit(payloads []SectionPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.list {
		if i >= len(payloads) {
			break
		}
		if Classify(payloads[i].Body) == RefKey && payloads[i].Body != "" {
			s.list[i].originalKey = payloads[i].Body
		}
	}
}

func lastPathSegment(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
