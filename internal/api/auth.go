package api

import (
	"log/slog"
	"net/http"

	"github.com/starford/furrow/internal/auth"
)

// Login handles POST /api/auth/login.
//
//	@Summary		Exchange credentials for a session token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	LoginResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "login failed")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Username and password required"))
		return
	}
	user, err := h.deps.Auth.Authenticate(req.Username, req.Password)
	if err != nil {
		slog.Warn("login rejected", slog.String("username", req.Username))
		writeError(w, err, "login failed")
		return
	}
	token, _, err := h.deps.Auth.Issue(*user)
	if err != nil {
		writeError(w, err, "issue token failed", slog.String("username", req.Username))
		return
	}
	h.deps.Auth.SetCookie(w, token)
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, User: *user, Token: token})
}

// Logout handles POST /api/auth/logout.
//
//	@Summary		Clear the session cookie
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	SuccessResponse
//	@Router			/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.deps.Auth.ClearCookie(w)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Me handles GET /api/auth/me.
//
//	@Summary		Current principal
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	UserResponse
//	@Failure		401	{object}	errResponse
//	@Router			/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("Not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: u})
}
