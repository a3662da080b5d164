package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/undeadops/slugger/internal/auth"
	"github.com/undeadops/slugger/internal/record"
	"github.com/undeadops/slugger/internal/slug"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RedirectStore is the typed redirect storage the handlers work against.
type RedirectStore interface {
	Get(ctx context.Context, slug string) (record.Redirect, bool, error)
	Put(ctx context.Context, slug string, rec record.Redirect) error
	Delete(ctx context.Context, slug string) error
	List(ctx context.Context) ([]string, error)
}

type RedirectHandler struct {
	redirects RedirectStore
	logger    zerolog.Logger
	now       func() time.Time
}

func NewRedirectHandler(redirects RedirectStore, logger zerolog.Logger) *RedirectHandler {
	return &RedirectHandler{
		redirects: redirects,
		logger:    logger,
		now:       time.Now,
	}
}

// Resolve sends the visitor on to the URL stored under the slug.
func (h *RedirectHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	key, err := slug.FromPath(chi.URLParam(r, "slug"))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	rec, found, err := h.redirects.Get(r.Context(), key)
	if err != nil {
		h.handleError(w, err)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	target, err := url.Parse(rec.URL)
	if err != nil {
		h.handleError(w, err)
		return
	}

	w.Header().Set("Location", target.String())
	w.WriteHeader(http.StatusFound)
}

type CreateRedirectRequest struct {
	Slug string `json:"slug"`
	URL  string `json:"url" validate:"required,http_url"`

	key string
}

// Bind checks the slug before anything else, so a reserved slug is refused
// whatever the rest of the payload looks like.
func (c *CreateRedirectRequest) Bind(r *http.Request) error {
	key, err := slug.Normalize(c.Slug)
	if err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		return err
	}

	c.key = key
	return nil
}

func (h *RedirectHandler) CreateRedirect(w http.ResponseWriter, r *http.Request) {
	data := &CreateRedirectRequest{}
	if err := render.Bind(r, data); err != nil {
		h.badRequest(w, r, err)
		return
	}

	claims, _ := auth.ClaimsFromContext(r.Context())
	rec := record.Redirect{
		URL:       data.URL,
		CreatedAt: h.now().UTC(),
		Owner:     claims.User,
	}

	if err := h.redirects.Put(r.Context(), data.key, rec); err != nil {
		h.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RedirectHandler) ListRedirects(w http.ResponseWriter, r *http.Request) {
	keys, err := h.redirects.List(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}

	render.JSON(w, r, keys)
}

type RedirectResponse struct {
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	Owner     string    `json:"owner"`
}

func (h *RedirectHandler) GetRedirect(w http.ResponseWriter, r *http.Request) {
	key, err := slug.FromPath(chi.URLParam(r, "slug"))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	rec, found, err := h.redirects.Get(r.Context(), key)
	if err != nil {
		h.handleError(w, err)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	render.JSON(w, r, &RedirectResponse{
		URL:       rec.URL,
		CreatedAt: rec.CreatedAt,
		Owner:     rec.Owner,
	})
}

// DeleteRedirect answers 204 whether or not the slug existed.
func (h *RedirectHandler) DeleteRedirect(w http.ResponseWriter, r *http.Request) {
	key, err := slug.FromPath(chi.URLParam(r, "slug"))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.redirects.Delete(r.Context(), key); err != nil {
		h.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RedirectHandler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected request")

	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, slug.ErrReserved), errors.Is(err, slug.ErrEmpty):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &verrs):
		http.Error(w, "url must be an absolute http or https URL", http.StatusBadRequest)
	default:
		http.Error(w, "Bad Request", http.StatusBadRequest)
	}
}

func (h *RedirectHandler) handleError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("Handling error")
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
