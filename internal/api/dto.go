package api

import (
	"github.com/starford/furrow/internal/models"
)

// EntryListResponse wraps entry listings.
type EntryListResponse struct {
	Entries []models.Entry `json:"entries" validate:"required"`
	Total   int            `json:"total" example:"42" validate:"required"`
}

// EntryResponse wraps a single entry with its body. HTML is only set
// when the rendered body was requested.
type EntryResponse struct {
	Entry *models.Entry `json:"entry" validate:"required"`
	HTML  string        `json:"html,omitempty"`
}

// TaxonomyResponse lists the distinct values of one taxonomy.
type TaxonomyResponse struct {
	Kind   string            `json:"kind" example:"tags" validate:"required"`
	Values []string          `json:"values" validate:"required"`
	Labels map[string]string `json:"labels" example:"soil-health:Soil Health"`
}

// PostRequest is the request body for creating or updating a post.
// Slug is only read on create; SHA is required on update.
type PostRequest struct {
	Slug        string              `json:"slug,omitempty" example:"spring-planting"`
	Frontmatter *models.Frontmatter `json:"frontmatter" validate:"required"`
	Content     string              `json:"content" example:"## Soil\nWarm enough." validate:"required"`
	SHA         string              `json:"sha,omitempty"`
}

// PostResponse wraps a single post.
type PostResponse struct {
	Success bool         `json:"success,omitempty"`
	Post    *models.Post `json:"post" validate:"required"`
}

// PostListResponse wraps all posts.
type PostListResponse struct {
	Posts []models.Post `json:"posts" validate:"required"`
}

// SuccessResponse acknowledges a completed operation.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// LoginRequest carries user credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on a successful login. The token is also set
// as an HttpOnly cookie.
type LoginResponse struct {
	Success bool        `json:"success"`
	User    models.User `json:"user"`
	Token   string      `json:"token"`
}

// UserResponse wraps the current principal.
type UserResponse struct {
	User models.User `json:"user"`
}

// LinkPreviewRequest is the request body for a link preview.
type LinkPreviewRequest struct {
	URL string `json:"url" example:"https://example.com/article" validate:"required"`
}

// LinkPreviewError is returned when a link preview cannot be built.
type LinkPreviewError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	URL     string `json:"url,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// SyncResponse acknowledges a triggered site rebuild.
type SyncResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SyncInfoResponse describes the sync endpoint.
type SyncInfoResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
	Status    string            `json:"status"`
}

// DocumentListResponse wraps CMS posts of one collection.
type DocumentListResponse struct {
	Posts []models.CMSPost `json:"posts" validate:"required"`
}

// DocumentResponse wraps a single CMS post.
type DocumentResponse struct {
	Success bool            `json:"success,omitempty"`
	Post    *models.CMSPost `json:"post" validate:"required"`
}

// PageResponse wraps a singleton CMS page.
type PageResponse struct {
	Page models.Page `json:"page" validate:"required"`
}
