// Package api implements the Furrow REST API using chi.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/furrow/internal/auth"
	"github.com/starford/furrow/internal/cms"
	"github.com/starford/furrow/internal/content"
	"github.com/starford/furrow/internal/linkpreview"
	"github.com/starford/furrow/internal/media"
	"github.com/starford/furrow/internal/posts"
)

// Dispatcher triggers a rebuild of the published site.
type Dispatcher interface {
	Dispatch(ctx context.Context) (time.Time, error)
}

// Deps are the services behind the routes. Auth and Catalog are required.
// A nil Posts, CMS, Media or Preview leaves its routes unmounted; a nil
// Sync makes POST /cms/sync report a configuration error.
type Deps struct {
	Catalog *content.Catalog
	Posts   *posts.Service
	CMS     *cms.Service
	Media   *media.Service
	Preview *linkpreview.Fetcher
	Auth    *auth.Service
	Limiter *auth.LoginLimiter
	Sync    Dispatcher
	Events  http.Handler
}

// Handler holds API route handlers.
type Handler struct {
	deps Deps
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{deps: d}
}

// NewRouter creates a chi router with all API routes mounted. Reads are
// public; writes require a session token or the service API key.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d)
	a := d.Auth

	r := chi.NewRouter()
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)
	r.Use(a.Identify)

	// Content.
	r.Get("/entries", h.ListEntries)
	r.Get("/entries/{collection}/{slug}", h.GetEntry)
	r.Get("/entries/{collection}/{slug}/similar", h.SimilarEntries)
	r.Get("/search", h.Search)
	r.Get("/taxonomies/{kind}", h.Taxonomy)
	r.Get("/news/featured", h.FeaturedNews)
	r.Get("/news/latest", h.LatestNews)

	// Session.
	login := http.Handler(http.HandlerFunc(h.Login))
	if d.Limiter != nil {
		login = d.Limiter.Middleware(login)
	}
	r.Method(http.MethodPost, "/auth/login", login)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)

	// Publishing.
	r.Get("/cms/sync", h.SyncInfo)
	r.With(a.RequireAdmin).Post("/cms/sync", h.TriggerSync)

	if d.Preview != nil {
		r.Post("/link-preview", h.LinkPreview)
	}

	if d.Posts != nil {
		r.Get("/posts/{slug}", h.GetPost)
		r.Group(func(r chi.Router) {
			r.Use(a.RequireAuth)
			r.Get("/posts", h.ListPosts)
			r.Post("/posts", h.CreatePost)
			r.Put("/posts/{slug}", h.UpdatePost)
			r.Delete("/posts/{slug}", h.DeletePost)
		})
	}

	if d.Media != nil {
		r.With(a.RequireAuth).Post("/images/upload", h.UploadImage)
	}

	if d.CMS != nil {
		r.Get("/cms/pages/{page}", h.GetPage)
		r.Get("/cms/{collection}", h.ListDocuments)
		r.Get("/cms/{collection}/{id}", h.GetDocument)
		r.Get("/cms/{collection}/{id}/markdown", h.ExportDocument)
		r.Group(func(r chi.Router) {
			r.Use(a.RequireAuth)
			r.Put("/cms/pages/{page}", h.PutPage)
			r.Post("/cms/{collection}", h.CreateDocument)
			r.Patch("/cms/{collection}/{id}", h.UpdateDocument)
			r.Delete("/cms/{collection}/{id}", h.DeleteDocument)
		})
	}

	// SSE stream of content changes.
	if d.Events != nil {
		r.With(a.RequireAuth).Get("/events", d.Events.ServeHTTP)
	}

	return r
}
