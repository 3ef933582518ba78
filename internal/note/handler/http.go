// Package handler serves the caller-scoped notes API.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workbench-api/internal/note/domain"
	"workbench-api/internal/note/repository"
	"workbench-api/internal/platform/apierror"
	"workbench-api/internal/platform/ownership"
	"workbench-api/internal/server/middleware"
)

const resourceKind = "note"

// Owners gates access to a loaded resource on its author.
type Owners interface {
	RequireOwner(ctx context.Context, callerID string, r ownership.Resource) error
}

// NoteHandler serves /notes. Every route expects an authenticated caller.
type NoteHandler struct {
	repo   repository.Repository
	owners Owners
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewNoteHandler returns a NoteHandler backed by repo.
func NewNoteHandler(repo repository.Repository, owners Owners, log logrus.FieldLogger) *NoteHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &NoteHandler{repo: repo, owners: owners, log: log, now: time.Now}
}

// Routes mounts the handler on r. The caller must install required authentication on r.
func (h *NoteHandler) Routes(r chi.Router) {
	r.Get("/notes", h.List)
	r.Post("/notes", h.Create)
	r.Get("/notes/{id}", h.Get)
	r.Patch("/notes/{id}", h.Update)
	r.Delete("/notes/{id}", h.Delete)
}

type createRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// List handles GET /notes?search=.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.RequireCaller(r.Context())
	if err != nil {
		apierror.Write(w, err)
		return
	}
	notes, err := h.repo.ListByAuthor(r.Context(), caller.ID, r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, notes)
}

// Create handles POST /notes.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.RequireCaller(r.Context())
	if err != nil {
		apierror.Write(w, err)
		return
	}
	var req createRequest
	if err := apierror.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now().UTC()
	n := &domain.Note{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Tags:      domain.CleanTags(req.Tags),
		AuthorID:  caller.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := n.Validate(); err != nil {
		h.fail(w, r, apierror.Invalid(err.Error()))
		return
	}
	if err := h.repo.Create(r.Context(), n); err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusCreated, n)
}

// Get handles GET /notes/{id}. Notes are private to their author.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	apierror.WriteJSON(w, http.StatusOK, n)
}

// Update handles PATCH /notes/{id}.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p domain.Patch
	if err := apierror.DecodeJSON(w, r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	n, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	n.Apply(p)
	if err := n.Validate(); err != nil {
		h.fail(w, r, apierror.Invalid(err.Error()))
		return
	}
	n.UpdatedAt = h.now().UTC()
	if err := h.repo.Update(r.Context(), n); err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, n)
}

// Delete handles DELETE /notes/{id}.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	n, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), n.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadOwned loads the note named by the {id} param and checks the caller owns it.
// On failure it writes the response and returns false.
func (h *NoteHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*domain.Note, bool) {
	caller, err := middleware.RequireCaller(r.Context())
	if err != nil {
		apierror.Write(w, err)
		return nil, false
	}
	n, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	res := ownership.Missing(resourceKind)
	if n != nil {
		res = ownership.Found(resourceKind, n.AuthorID)
	}
	if err := h.owners.RequireOwner(r.Context(), caller.ID, res); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return n, true
}

func (h *NoteHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apierror.KindOf(err) == apierror.Generic {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("notes: request failed")
	}
	apierror.Write(w, err)
}
