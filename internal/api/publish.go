package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/linkpreview"
)

// LinkPreview handles POST /api/link-preview.
//
//	@Summary		Fetch a page and summarise its metadata
//	@Tags			link-preview
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LinkPreviewRequest	true	"Page to preview"
//	@Success		200		{object}	models.LinkPreview
//	@Failure		400		{object}	LinkPreviewError
//	@Failure		403		{object}	LinkPreviewError
//	@Failure		502		{object}	LinkPreviewError
//	@Router			/link-preview [post]
func (h *Handler) LinkPreview(w http.ResponseWriter, r *http.Request) {
	var req LinkPreviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		// An unreadable body carries no URL either.
		writeJSON(w, http.StatusBadRequest, LinkPreviewError{Error: linkpreview.MsgInvalidURL})
		return
	}
	preview, err := h.deps.Preview.Preview(r.Context(), req.URL)
	if err != nil {
		status := apperr.HTTPStatus(err)
		body := LinkPreviewError{Error: apperr.Message(err)}
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.ErrUpstream {
			body.Details = ae.Details
			body.Status = ae.Status
			body.URL = linkpreview.Normalize(req.URL)
			slog.Warn("link preview failed",
				slog.String("url", body.URL),
				slog.Int("status", ae.Status),
				slog.String("error", err.Error()))
		} else if status == http.StatusInternalServerError {
			slog.Error("link preview failed", slog.String("url", req.URL), slog.String("error", err.Error()))
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// SyncInfo handles GET /api/cms/sync.
//
//	@Summary		Describe the sync endpoint
//	@Tags			cms
//	@Produce		json
//	@Success		200	{object}	SyncInfoResponse
//	@Router			/cms/sync [get]
func (h *Handler) SyncInfo(w http.ResponseWriter, _ *http.Request) {
	status := "active"
	if h.deps.Sync == nil {
		status = "unconfigured"
	}
	writeJSON(w, http.StatusOK, SyncInfoResponse{
		Message: "CMS Sync API",
		Endpoints: map[string]string{
			"POST /api/cms/sync": "Trigger a rebuild of the published site from CMS content",
		},
		Status: status,
	})
}

// TriggerSync handles POST /api/cms/sync.
//
//	@Summary		Trigger a rebuild of the published site
//	@Tags			cms
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		401	{object}	errResponse
//	@Failure		403	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cms/sync [post]
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sync == nil {
		slog.Error("sync requested but no dispatcher is configured")
		writeJSON(w, http.StatusInternalServerError, errorBody("Server configuration error"))
		return
	}
	at, err := h.deps.Sync.Dispatch(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrUpstream) {
			slog.Error("sync dispatch failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errResponse{Error: "Failed to trigger sync", Details: apperr.Details(err)})
			return
		}
		writeError(w, err, "sync dispatch failed")
		return
	}
	slog.Info("cms sync triggered")
	writeJSON(w, http.StatusOK, SyncResponse{
		Success:   true,
		Message:   "Content sync triggered",
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	})
}
