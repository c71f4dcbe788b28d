package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListPosts handles GET /api/posts.
//
//	@Summary		List all posts, drafts included
//	@Tags			posts
//	@Produce		json
//	@Success		200	{object}	PostListResponse
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Posts.List(r.Context())
	if err != nil {
		writeError(w, err, "list posts failed")
		return
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: list})
}

// GetPost handles GET /api/posts/{slug}.
//
//	@Summary		Get a post with its revision token
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	PostResponse
//	@Failure		404		{object}	errResponse
//	@Router			/posts/{slug} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	p, err := h.deps.Posts.Get(r.Context(), slug)
	if err != nil {
		writeError(w, err, "get post failed", slog.String("slug", slug))
		return
	}
	writeJSON(w, http.StatusOK, PostResponse{Post: p})
}

// CreatePost handles POST /api/posts.
//
//	@Summary		Create a post
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PostRequest	true	"Post to create"
//	@Success		201		{object}	PostResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req PostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "create post failed")
		return
	}
	p, err := h.deps.Posts.Create(r.Context(), req.Slug, req.Frontmatter, req.Content)
	if err != nil {
		writeError(w, err, "create post failed", slog.String("slug", req.Slug))
		return
	}
	writeJSON(w, http.StatusCreated, PostResponse{Success: true, Post: p})
}

// UpdatePost handles PUT /api/posts/{slug}.
//
//	@Summary		Replace a post at a known revision
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string		true	"Post slug"
//	@Param			body	body		PostRequest	true	"Frontmatter, content and sha"
//	@Success		200		{object}	PostResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{slug} [put]
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	var req PostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "update post failed")
		return
	}
	p, err := h.deps.Posts.Update(r.Context(), slug, req.Frontmatter, req.Content, req.SHA)
	if err != nil {
		writeError(w, err, "update post failed", slog.String("slug", slug))
		return
	}
	writeJSON(w, http.StatusOK, PostResponse{Success: true, Post: p})
}

// DeletePost handles DELETE /api/posts/{slug}.
//
//	@Summary		Delete a post at a known revision
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Param			sha		query		string	false	"Revision token, if not sent in the body"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{slug} [delete]
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	sha := r.URL.Query().Get("sha")
	if sha == "" && r.ContentLength != 0 {
		var req struct {
			SHA string `json:"sha"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err, "delete post failed")
			return
		}
		sha = req.SHA
	}
	if err := h.deps.Posts.Delete(r.Context(), slug, sha); err != nil {
		writeError(w, err, "delete post failed", slog.String("slug", slug))
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
