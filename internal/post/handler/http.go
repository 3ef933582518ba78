// Package handler serves the public posts API with author-only mutation.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workbench-api/internal/platform/apierror"
	"workbench-api/internal/platform/ownership"
	"workbench-api/internal/post/domain"
	"workbench-api/internal/post/repository"
	"workbench-api/internal/server/middleware"
)

const (
	resourceKind = "post"

	defaultLimit = 10
	maxLimit     = 100

	// slugAttempts bounds retries when a generated slug collides.
	slugAttempts = 3
)

// Owners gates access to a loaded resource on its author.
type Owners interface {
	RequireOwner(ctx context.Context, callerID string, r ownership.Resource) error
}

// PostHandler serves /posts.
type PostHandler struct {
	repo    repository.Repository
	owners  Owners
	log     logrus.FieldLogger
	now     func() time.Time
	newSlug func(title string) (string, error)
}

// NewPostHandler returns a PostHandler backed by repo.
func NewPostHandler(repo repository.Repository, owners Owners, log logrus.FieldLogger) *PostHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PostHandler{repo: repo, owners: owners, log: log, now: time.Now, newSlug: domain.NewSlug}
}

// Routes mounts reads and likes on public, which should carry optional authentication,
// and mutations on protected, which should carry required authentication.
func (h *PostHandler) Routes(public, protected chi.Router) {
	public.Get("/posts", h.List)
	public.Get("/posts/{slug}", h.Get)
	public.Post("/posts/{slug}/like", h.Like)
	protected.Post("/posts", h.Create)
	protected.Patch("/posts/{id}", h.Update)
	protected.Put("/posts/{id}", h.Update)
	protected.Delete("/posts/{id}", h.Delete)
}

// postView is a post as seen by the current caller.
type postView struct {
	*domain.Post
	Editable bool `json:"editable"`
}

func view(p *domain.Post, callerID string) postView {
	return postView{Post: p, Editable: callerID != "" && callerID == p.AuthorID}
}

type createRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// List handles GET /posts?limit=&offset=.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit < 1 {
		apierror.Write(w, apierror.Invalid("limit must be a positive integer"))
		return
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		apierror.Write(w, apierror.Invalid("offset must be a non-negative integer"))
		return
	}
	posts, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	callerID := middleware.CallerID(r.Context())
	out := make([]postView, 0, len(posts))
	for _, p := range posts {
		out = append(out, view(p, callerID))
	}
	apierror.WriteJSON(w, http.StatusOK, out)
}

// Get handles GET /posts/{slug} and counts the view.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if p == nil {
		apierror.Write(w, apierror.New(apierror.NotFound))
		return
	}
	if err := h.repo.IncrementViews(r.Context(), p.ID); err != nil {
		h.log.WithError(err).WithField("post_id", p.ID).Warn("posts: failed to count view")
	} else {
		p.Views++
	}
	apierror.WriteJSON(w, http.StatusOK, view(p, middleware.CallerID(r.Context())))
}

// Like handles POST /posts/{slug}/like.
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	ok, err := h.repo.Like(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		apierror.Write(w, apierror.New(apierror.NotFound))
		return
	}
	apierror.WriteJSON(w, http.StatusOK, apierror.Body{Message: "Post liked successfully"})
}

// Create handles POST /posts.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
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
	p := &domain.Post{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Content:     req.Content,
		Description: strings.TrimSpace(req.Description),
		Tags:        domain.CleanTags(req.Tags),
		AuthorID:    caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = h.withFreshSlug(p, func() error {
		if err := p.Validate(); err != nil {
			return apierror.Invalid(err.Error())
		}
		return h.repo.Create(r.Context(), p)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusCreated, view(p, caller.ID))
}

// Update handles PATCH and PUT /posts/{id}. A new title regenerates the slug.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.Patch
	if err := apierror.DecodeJSON(w, r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	p, callerID, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	titleChanged := p.Apply(patch)
	p.UpdatedAt = h.now().UTC()
	save := func() error {
		if err := p.Validate(); err != nil {
			return apierror.Invalid(err.Error())
		}
		return h.repo.Update(r.Context(), p)
	}
	if titleChanged {
		err := h.withFreshSlug(p, save)
		if err != nil {
			h.fail(w, r, err)
			return
		}
	} else if err := save(); err != nil {
		h.fail(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, view(p, callerID))
}

// Delete handles DELETE /posts/{id}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), p.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// withFreshSlug assigns a slug derived from p.Title and runs save, retrying with a new slug on collision.
func (h *PostHandler) withFreshSlug(p *domain.Post, save func() error) error {
	var err error
	for i := 0; i < slugAttempts; i++ {
		if p.Slug, err = h.newSlug(p.Title); err != nil {
			return err
		}
		if err = save(); !errors.Is(err, repository.ErrSlugTaken) {
			return err
		}
	}
	return err
}

// loadOwned loads the post named by the {id} param and checks the caller authored it.
// On failure it writes the response and returns false.
func (h *PostHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*domain.Post, string, bool) {
	caller, err := middleware.RequireCaller(r.Context())
	if err != nil {
		apierror.Write(w, err)
		return nil, "", false
	}
	p, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, "", false
	}
	res := ownership.Missing(resourceKind)
	if p != nil {
		res = ownership.Found(resourceKind, p.AuthorID)
	}
	if err := h.owners.RequireOwner(r.Context(), caller.ID, res); err != nil {
		h.fail(w, r, err)
		return nil, "", false
	}
	return p, caller.ID, true
}

func (h *PostHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apierror.KindOf(err) == apierror.Generic {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("posts: request failed")
	}
	apierror.Write(w, err)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
