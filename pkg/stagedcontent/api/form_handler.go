package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
	"github.com/khunglong92/staged-content/pkg/stagedcontent/config"
)

// maxStageRequestBytes bounds one multipart staging request.
const maxStageRequestBytes = 64 << 20

// FormHandler exposes the staging engine as a form-session service. Each
// session owns exactly one Form with its own staging store and section
// synchronizer; sessions never share staging state.
type FormHandler struct {
	gateway   stagedcontent.Gateway
	entities  stagedcontent.EntityAPI
	resolver  *stagedcontent.Resolver
	submitter *stagedcontent.Submitter
	profiles  map[string]config.Profile

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

type session struct {
	id    uuid.UUID
	form  *stagedcontent.Form
	rules stagedcontent.Rules
}

// NewFormHandler creates a new form-session handler
func NewFormHandler(gateway stagedcontent.Gateway, entities stagedcontent.EntityAPI, profiles map[string]config.Profile) (*FormHandler, error) {
	resolver := stagedcontent.NewResolver(gateway)
	submitter, err := stagedcontent.NewSubmitter(
		stagedcontent.WithGateway(gateway),
		stagedcontent.WithEntityAPI(entities),
		stagedcontent.WithSubmitResolver(resolver),
		stagedcontent.WithSubmitEventSink(stagedcontent.NewLogEventSink(nil)),
	)
	if err != nil {
		return nil, err
	}

	return &FormHandler{
		gateway:   gateway,
		entities:  entities,
		resolver:  resolver,
		submitter: submitter,
		profiles:  profiles,
		sessions:  make(map[uuid.UUID]*session),
	}, nil
}

// Routes returns the routes for form sessions
func (h *FormHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.OpenForm)
	r.Get("/{id}", h.GetForm)
	r.Post("/{id}/assets", h.StageAssets)
	r.Delete("/{id}/assets/{index}", h.RemoveAsset)
	r.Put("/{id}/fields", h.SetFields)
	r.Put("/{id}/description", h.SetDescription)
	r.Post("/{id}/sections", h.AppendSection)
	r.Put("/{id}/sections/{index}", h.SetSection)
	r.Delete("/{id}/sections/{index}", h.RemoveSection)
	r.Post("/{id}/submit", h.Submit)
	r.Post("/{id}/cancel", h.Cancel)

	return r
}

// OpenFormRequest is the request body for opening a form session
type OpenFormRequest struct {
	Collection string `json:"collection"`
	EntityID   string `json:"entity_id,omitempty"`
}

// FormResponse is the response body for a form session
type FormResponse struct {
	SessionID   string                     `json:"session_id"`
	Collection  string                     `json:"collection"`
	EntityID    string                     `json:"entity_id,omitempty"`
	Draft       string                     `json:"draft_id"`
	Fields      map[string]any             `json:"fields"`
	Assets      []stagedcontent.StagedAsset `json:"assets"`
	Description string                     `json:"description"`
	Sections    []SectionResponse          `json:"sections"`
}

// SectionResponse is one section in a form response
type SectionResponse struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// OpenForm opens a new form session. When entity_id is given the entity is
// loaded from the backend and the session starts in edit mode.
func (h *FormHandler) OpenForm(w http.ResponseWriter, r *http.Request) {
	var req OpenFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Collection == "" {
		http.Error(w, "collection is required", http.StatusBadRequest)
		return
	}

	profile := config.ProfileFor(h.profiles, req.Collection)
	store := stagedcontent.NewStore(h.resolver, stagedcontent.WithLimits(profile.Limits))
	sections := stagedcontent.NewSections(h.resolver)
	form := stagedcontent.NewForm(req.Collection, req.EntityID, store, sections)

	if req.EntityID != "" {
		entity, err := h.entities.Get(r.Context(), req.Collection, req.EntityID)
		if err != nil {
			slog.Error("Failed to load entity", "collection", req.Collection, "entity_id", req.EntityID, "error", err)
			status := http.StatusInternalServerError
			if errors.Is(err, stagedcontent.ErrEntityNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, "Failed to load entity", status)
			return
		}
		form.SetFields(entity.Fields)
		store.LoadExisting(r.Context(), entity.ImageKeys)
		if ref, ok := entity.Extra["detail_description"].(string); ok {
			form.LoadDescription(r.Context(), h.resolver, ref)
		}
		raw := make([]stagedcontent.SectionInput, 0, len(entity.Sections))
		for _, s := range entity.Sections {
			raw = append(raw, stagedcontent.SectionInput{Title: s.Title, Description: s.Body})
		}
		sections.Load(r.Context(), raw)
	}

	sess := &session{id: uuid.New(), form: form, rules: profile.Rules}

	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.mu.Unlock()

	slog.Info("Form session opened", "session_id", sess.id.String(), "collection", req.Collection, "edit", form.IsEdit())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.formResponse(sess))
}

// GetForm returns the current session state
func (h *FormHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, h.formResponse(sess))
}

// StageAssets stages files from a multipart request under the "files" field
func (h *FormHandler) StageAssets(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxStageRequestBytes); err != nil {
		http.Error(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	var files []*stagedcontent.FileSource
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			http.Error(w, "Failed to read file", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "Failed to read file", http.StatusBadRequest)
			return
		}
		files = append(files, &stagedcontent.FileSource{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Data:        data,
		})
	}

	if err := sess.form.Assets.StageFiles(r.Context(), files); err != nil {
		var stagingErr *stagedcontent.StagingError
		if errors.As(err, &stagingErr) {
			slog.Warn("Staging rejected", "session_id", sess.id.String(), "error", err)
			http.Error(w, stagingErr.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, h.formResponse(sess))
}

// RemoveAsset removes the asset slot at an index
func (h *FormHandler) RemoveAsset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	index, ok := h.index(w, r)
	if !ok {
		return
	}

	if err := sess.form.Assets.RemoveAt(r.Context(), index); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	render.JSON(w, r, h.formResponse(sess))
}

// SetFields replaces the form's plain field values
func (h *FormHandler) SetFields(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess.form.SetFields(fields)
	render.JSON(w, r, h.formResponse(sess))
}

// SetDescriptionRequest is the request body for the detailed description
type SetDescriptionRequest struct {
	Body string `json:"body"`
}

// SetDescription replaces the detailed-description markup
func (h *FormHandler) SetDescription(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SetDescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess.form.SetDescription(req.Body)
	render.JSON(w, r, h.formResponse(sess))
}

// AppendSection adds an empty section
func (h *FormHandler) AppendSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.form.Sections.Append()
	render.JSON(w, r, h.formResponse(sess))
}

// SetSectionRequest is the request body for editing a section
type SetSectionRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// SetSection replaces the section at an index
func (h *FormHandler) SetSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	index, ok := h.index(w, r)
	if !ok {
		return
	}

	var req SetSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.form.Sections.Set(index, req.Title, req.Body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	render.JSON(w, r, h.formResponse(sess))
}

// RemoveSection deletes the section at an index
func (h *FormHandler) RemoveSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	index, ok := h.index(w, r)
	if !ok {
		return
	}

	if err := sess.form.Sections.Remove(index); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	render.JSON(w, r, h.formResponse(sess))
}

// SubmitResponse is the response body for a successful submission
type SubmitResponse struct {
	Entity *stagedcontent.Entity `json:"entity"`
}

// Submit runs the commit sequence for the session's form. Exactly one error
// message is returned per failed attempt and the form stays editable.
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	entity, err := h.submitter.Submit(r.Context(), sess.form, sess.rules)
	if err != nil {
		var validationErr *stagedcontent.ValidationError
		switch {
		case errors.As(err, &validationErr):
			http.Error(w, validationErr.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, stagedcontent.ErrSubmissionInFlight):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			slog.Error("Submission failed", "session_id", sess.id.String(), "error", err)
			http.Error(w, "Submission failed: "+err.Error(), http.StatusBadGateway)
		}
		return
	}

	slog.Info("Form submitted", "session_id", sess.id.String(), "entity_id", entity.ID)
	render.JSON(w, r, SubmitResponse{Entity: entity})
}

// Cancel discards staged state without contacting the gateway and closes
// the session.
func (h *FormHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	sess.form.Assets.Reset(r.Context())
	sess.form.Assets.Release()

	h.mu.Lock()
	delete(h.sessions, sess.id)
	h.mu.Unlock()

	slog.Info("Form session cancelled", "session_id", sess.id.String())
	render.NoContent(w, r)
}

func (h *FormHandler) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return nil, false
	}

	h.mu.RLock()
	sess, exists := h.sessions[id]
	h.mu.RUnlock()

	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (h *FormHandler) index(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

func (h *FormHandler) formResponse(sess *session) FormResponse {
	sections := sess.form.Sections.List()
	sectionResponses := make([]SectionResponse, 0, len(sections))
	for _, s := range sections {
		sectionResponses = append(sectionResponses, SectionResponse{Title: s.Title, Body: s.Body})
	}

	return FormResponse{
		SessionID:   sess.id.String(),
		Collection:  sess.form.Collection,
		EntityID:    sess.form.EntityID,
		Draft:       string(sess.form.Draft),
		Fields:      sess.form.Fields(),
		Assets:      sess.form.Assets.Assets(),
		Description: sess.form.Description(),
		Sections:    sectionResponses,
	}
}
