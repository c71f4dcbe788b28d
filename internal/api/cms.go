package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/furrow/internal/cms"
	"github.com/starford/furrow/internal/models"
)

// ListDocuments handles GET /api/cms/{collection}.
//
//	@Summary		List CMS posts of a collection, newest first
//	@Tags			cms
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Success		200			{object}	DocumentListResponse
//	@Failure		404			{object}	errResponse
//	@Router			/cms/{collection} [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	list, err := h.deps.CMS.List(r.Context(), collection)
	if err != nil {
		writeError(w, err, "list cms posts failed", slog.String("collection", collection))
		return
	}
	if list == nil {
		list = []models.CMSPost{}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Posts: list})
}

// GetDocument handles GET /api/cms/{collection}/{id}.
//
//	@Summary		Get a CMS post
//	@Tags			cms
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Param			id			path		string	true	"Document id"
//	@Success		200			{object}	DocumentResponse
//	@Failure		404			{object}	errResponse
//	@Router			/cms/{collection}/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	p, err := h.deps.CMS.Get(r.Context(), collection, id)
	if err != nil {
		writeError(w, err, "get cms post failed", slog.String("collection", collection), slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Post: p})
}

// ExportDocument handles GET /api/cms/{collection}/{id}/markdown.
//
//	@Summary		Render a CMS post as a Markdown file
//	@Tags			cms
//	@Produce		text/markdown
//	@Param			collection	path	string	true	"Collection name"
//	@Param			id			path	string	true	"Document id"
//	@Success		200			{string}	string	"Markdown with YAML frontmatter"
//	@Failure		404			{object}	errResponse
//	@Router			/cms/{collection}/{id}/markdown [get]
func (h *Handler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	p, err := h.deps.CMS.Get(r.Context(), collection, id)
	if err != nil {
		writeError(w, err, "export cms post failed", slog.String("collection", collection), slog.String("id", id))
		return
	}
	out, err := cms.Export(*p)
	if err != nil {
		writeError(w, err, "export cms post failed", slog.String("collection", collection), slog.String("id", id))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+p.Slug+`.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// CreateDocument handles POST /api/cms/{collection}.
//
//	@Summary		Create a CMS post
//	@Tags			cms
//	@Accept			json
//	@Produce		json
//	@Param			collection	path		string			true	"Collection name"
//	@Param			body		body		models.CMSPost	true	"Post to create"
//	@Success		201			{object}	DocumentResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cms/{collection} [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	var req models.CMSPost
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "create cms post failed")
		return
	}
	p, err := h.deps.CMS.Create(r.Context(), collection, req)
	if err != nil {
		writeError(w, err, "create cms post failed", slog.String("collection", collection))
		return
	}
	writeJSON(w, http.StatusCreated, DocumentResponse{Success: true, Post: p})
}

// UpdateDocument handles PATCH /api/cms/{collection}/{id}.
//
//	@Summary		Merge fields into a CMS post
//	@Tags			cms
//	@Accept			json
//	@Produce		json
//	@Param			collection	path		string			true	"Collection name"
//	@Param			id			path		string			true	"Document id"
//	@Param			body		body		object			true	"Fields to change"
//	@Success		200			{object}	DocumentResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cms/{collection}/{id} [patch]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	var fields map[string]any
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, err, "update cms post failed")
		return
	}
	p, err := h.deps.CMS.Update(r.Context(), collection, id, fields)
	if err != nil {
		writeError(w, err, "update cms post failed", slog.String("collection", collection), slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Success: true, Post: p})
}

// DeleteDocument handles DELETE /api/cms/{collection}/{id}.
//
//	@Summary		Delete a CMS post
//	@Tags			cms
//	@Produce		json
//	@Param			collection	path		string	true	"Collection name"
//	@Param			id			path		string	true	"Document id"
//	@Success		200			{object}	SuccessResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cms/{collection}/{id} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	if err := h.deps.CMS.Delete(r.Context(), collection, id); err != nil {
		writeError(w, err, "delete cms post failed", slog.String("collection", collection), slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GetPage handles GET /api/cms/pages/{page}.
//
//	@Summary		Get a singleton page document
//	@Tags			cms
//	@Produce		json
//	@Param			page	path		string	true	"Page name"	Enums(about, home)
//	@Success		200		{object}	PageResponse
//	@Failure		404		{object}	errResponse
//	@Router			/cms/pages/{page} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "page")
	page, err := h.deps.CMS.Page(r.Context(), name)
	if err != nil {
		writeError(w, err, "get cms page failed", slog.String("page", name))
		return
	}
	writeJSON(w, http.StatusOK, PageResponse{Page: page})
}

// PutPage handles PUT /api/cms/pages/{page}.
//
//	@Summary		Replace a singleton page document
//	@Tags			cms
//	@Accept			json
//	@Produce		json
//	@Param			page	path		string	true	"Page name"	Enums(about, home)
//	@Param			body	body		object	true	"Page fields"
//	@Success		200		{object}	PageResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cms/pages/{page} [put]
func (h *Handler) PutPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "page")
	var page models.Page
	if err := decodeJSON(w, r, &page); err != nil {
		writeError(w, err, "put cms page failed")
		return
	}
	if err := h.deps.CMS.PutPage(r.Context(), name, page); err != nil {
		writeError(w, err, "put cms page failed", slog.String("page", name))
		return
	}
	writeJSON(w, http.StatusOK, PageResponse{Page: page})
}
