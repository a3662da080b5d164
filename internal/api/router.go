package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
)

type Options struct {
	// HomeURL, when set, turns GET / into a redirect.
	HomeURL        string
	AllowedOrigins []string
}

func Router(h *RedirectHandler, verifier TokenVerifier, logger zerolog.Logger, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Heartbeat("/ping"))
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(escapedPath)

	r.Get("/", home(opts.HomeURL))
	r.Get("/{slug}", h.Resolve)

	r.Route("/slugs", func(r chi.Router) {
		if len(opts.AllowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: opts.AllowedOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
				MaxAge:         300,
			}))
		}
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(RequireToken(verifier))

		r.Get("/", h.ListRedirects)
		r.Post("/", h.CreateRedirect)
		r.Get("/{slug}", h.GetRedirect)
		r.Delete("/{slug}", h.DeleteRedirect)
	})

	return r
}

// escapedPath routes on the raw request path so that an encoded "/" stays
// inside a single slug segment.
func escapedPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath == "" {
			rctx.RoutePath = r.URL.EscapedPath()
		}
		next.ServeHTTP(w, r)
	})
}

func home(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if target != "" {
			w.Header().Set("Location", target)
			w.WriteHeader(http.StatusFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("slugger\n"))
	}
}
