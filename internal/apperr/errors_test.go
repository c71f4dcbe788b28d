package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Invalid("bad"), http.StatusBadRequest},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{fmt.Errorf("wrap: %w", ErrNotFound), http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{Conflict("stale"), http.StatusConflict},
		{Upstream("boom", 503, errors.New("dial")), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestMessage_InternalIsGeneric(t *testing.T) {
	if got := Message(errors.New("sql: connection refused")); got != "internal error" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(Invalid("Title is required")); got != "Title is required" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(fmt.Errorf("posts: %w", ErrAlreadyExists)); got != "already exists" {
		t.Errorf("Message = %q", got)
	}
}

func TestUpstreamDetails(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := fmt.Errorf("fetch: %w", Upstream("Network error while fetching URL", 0, cause))
	if !errors.Is(err, ErrUpstream) {
		t.Fatal("expected ErrUpstream")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to unwrap")
	}
	if Details(err) != cause.Error() {
		t.Errorf("details = %q", Details(err))
	}
}
