// Package handler serves the authenticated caller's own audit trail.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"workbench-api/internal/audit/domain"
	"workbench-api/internal/platform/apierror"
	"workbench-api/internal/server/middleware"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Lister reads a user's audit entries, newest first.
type Lister interface {
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error)
}

// AuditHandler serves GET /auth/audit.
type AuditHandler struct {
	repo Lister
	log  logrus.FieldLogger
}

// NewAuditHandler returns an AuditHandler backed by repo.
func NewAuditHandler(repo Lister, log logrus.FieldLogger) *AuditHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuditHandler{repo: repo, log: log}
}

// Routes mounts the handler on r, which must carry required authentication.
func (h *AuditHandler) Routes(r chi.Router) {
	r.Get("/auth/audit", h.List)
}

type entryView struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// List handles GET /auth/audit?limit=&offset=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.RequireCaller(r.Context())
	if err != nil {
		apierror.Write(w, err)
		return
	}
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

	entries, err := h.repo.ListByUser(r.Context(), caller.ID, int32(limit), int32(offset))
	if err != nil {
		h.log.WithError(err).WithField("user_id", caller.ID).Error("audit: list failed")
		apierror.Write(w, apierror.Wrap(apierror.Generic, err))
		return
	}
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryView{
			ID:        e.ID,
			Action:    e.Action,
			Resource:  e.Resource,
			IP:        e.IP,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	apierror.WriteJSON(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > 1<<31-1 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
