package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/content"
	"github.com/starford/furrow/internal/models"
	"github.com/starford/furrow/internal/textconv"
)

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Invalid("query parameter '" + name + "' must be a non-negative integer")
	}
	return n, nil
}

// summaries drops entry bodies from listings.
func summaries(entries []models.Entry) []models.Entry {
	out := make([]models.Entry, len(entries))
	for i, e := range entries {
		e.Body = ""
		out[i] = e
	}
	return out
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List published entries of a collection
//	@Tags			entries
//	@Produce		json
//	@Param			collection	query		string	true	"Collection name"
//	@Param			category	query		string	false	"Filter by category"
//	@Param			tag			query		string	false	"Filter by tag"
//	@Param			sort		query		string	false	"Sort order"	Enums(date, title, complexity)
//	@Success		200			{object}	EntryListResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	collection := q.Get("collection")
	if collection == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'collection' is required"))
		return
	}
	entries, err := h.deps.Catalog.Search(r.Context(), collection, content.Query{
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
	})
	if err != nil {
		writeError(w, err, "list entries failed", slog.String("collection", collection))
		return
	}
	if sort := q.Get("sort"); sort != "" {
		if !content.SortBy(entries, sort) {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown sort order"))
			return
		}
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: summaries(entries), Total: len(entries)})
}

// GetEntry handles GET /api/entries/{collection}/{slug}.
//
//	@Summary		Get a published entry with its body
//	@Tags			entries
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Param			slug		path		string	true	"Entry slug"
//	@Param			format		query		string	false	"Set to html to include the rendered body"	Enums(html)
//	@Success		200			{object}	EntryResponse
//	@Failure		404			{object}	errResponse
//	@Router			/entries/{collection}/{slug} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	collection, slug := chi.URLParam(r, "collection"), chi.URLParam(r, "slug")
	e, err := h.deps.Catalog.Entry(r.Context(), collection, slug)
	if err != nil {
		writeError(w, err, "get entry failed", slog.String("collection", collection), slog.String("slug", slug))
		return
	}
	resp := EntryResponse{Entry: e}
	if r.URL.Query().Get("format") == "html" {
		resp.HTML = textconv.Markdownify(e.Body, true)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SimilarEntries handles GET /api/entries/{collection}/{slug}/similar.
//
//	@Summary		Entries sharing categories and tags with an entry
//	@Tags			entries
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Param			slug		path		string	true	"Entry slug"
//	@Param			limit		query		int		false	"Max results"
//	@Success		200			{object}	EntryListResponse
//	@Failure		404			{object}	errResponse
//	@Router			/entries/{collection}/{slug}/similar [get]
func (h *Handler) SimilarEntries(w http.ResponseWriter, r *http.Request) {
	collection, slug := chi.URLParam(r, "collection"), chi.URLParam(r, "slug")
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err, "similar entries failed")
		return
	}
	entries, err := h.deps.Catalog.SimilarTo(r.Context(), collection, slug, limit)
	if err != nil {
		writeError(w, err, "similar entries failed", slog.String("collection", collection), slog.String("slug", slug))
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: summaries(entries), Total: len(entries)})
}

// Search handles GET /api/search.
//
//	@Summary		Search published entries
//	@Tags			entries
//	@Produce		json
//	@Param			q			query		string	false	"Text to look for"
//	@Param			collection	query		string	false	"Restrict to a collection"
//	@Param			category	query		string	false	"Filter by category"
//	@Param			tag			query		string	false	"Filter by tag"
//	@Success		200			{object}	EntryListResponse
//	@Failure		400			{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := content.Query{Text: q.Get("q"), Category: q.Get("category"), Tag: q.Get("tag")}
	if query == (content.Query{}) {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q', 'category' or 'tag' is required"))
		return
	}
	results, err := h.deps.Catalog.Search(r.Context(), q.Get("collection"), query)
	if err != nil {
		writeError(w, err, "search failed", slog.String("query", query.Text))
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: summaries(results), Total: len(results)})
}

// Taxonomy handles GET /api/taxonomies/{kind}.
//
//	@Summary		Distinct categories or tags of a collection
//	@Tags			entries
//	@Produce		json
//	@Param			kind		path		string	true	"Taxonomy"	Enums(categories, tags)
//	@Param			collection	query		string	false	"Collection name (default blog)"
//	@Success		200			{object}	TaxonomyResponse
//	@Failure		400			{object}	errResponse
//	@Router			/taxonomies/{kind} [get]
func (h *Handler) Taxonomy(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	collection := r.URL.Query().Get("collection")
	if collection == "" {
		collection = "blog"
	}
	values, err := h.deps.Catalog.Taxonomy(r.Context(), collection, kind)
	if err != nil {
		writeError(w, err, "taxonomy failed", slog.String("collection", collection), slog.String("kind", kind))
		return
	}
	labels := make(map[string]string, len(values))
	for _, v := range values {
		labels[v] = textconv.UpperHumanize(v)
	}
	writeJSON(w, http.StatusOK, TaxonomyResponse{Kind: kind, Values: values, Labels: labels})
}

// FeaturedNews handles GET /api/news/featured.
//
//	@Summary		Featured news, topped up with the latest items
//	@Tags			news
//	@Produce		json
//	@Param			limit	query		int	false	"Max results (default 3)"
//	@Success		200		{object}	EntryListResponse
//	@Router			/news/featured [get]
func (h *Handler) FeaturedNews(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err, "featured news failed")
		return
	}
	if limit == 0 {
		limit = 3
	}
	entries, err := h.deps.Catalog.FeaturedNews(r.Context(), limit)
	if err != nil {
		writeError(w, err, "featured news failed")
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: summaries(entries), Total: len(entries)})
}

// LatestNews handles GET /api/news/latest.
//
//	@Summary		Most recent news items
//	@Tags			news
//	@Produce		json
//	@Param			limit	query		int	false	"Max results (default 5)"
//	@Success		200		{object}	EntryListResponse
//	@Router			/news/latest [get]
func (h *Handler) LatestNews(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err, "latest news failed")
		return
	}
	if limit == 0 {
		limit = 5
	}
	entries, err := h.deps.Catalog.Latest(r.Context(), content.NewsCollection, limit)
	if err != nil {
		writeError(w, err, "latest news failed")
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: summaries(entries), Total: len(entries)})
}
