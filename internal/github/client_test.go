package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/furrow/internal/apperr"
)

func testClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := New(Config{Token: "t0k", Owner: "acme", Repo: "site", APIURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/site/contents/src/content/blog/hello.md", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ref") != "main" {
			t.Errorf("ref = %q", r.URL.Query().Get("ref"))
		}
		if r.Header.Get("Authorization") != "Bearer t0k" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		writeJSON(w, 200, map[string]any{
			"type": "file", "name": "hello.md", "path": "src/content/blog/hello.md",
			"sha": "abc123", "encoding": "base64",
			"content": base64.StdEncoding.EncodeToString([]byte("---\ntitle: Hi\n---\nBody\n")),
		})
	})
	mux.HandleFunc("GET /repos/acme/site/contents/src/content/blog/missing.md", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, map[string]any{"message": "Not Found"})
	})
	c := testClient(t, mux)

	f, err := c.GetFile(context.Background(), c.PostPath("hello"))
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.SHA != "abc123" || string(f.Content) != "---\ntitle: Hi\n---\nBody\n" {
		t.Errorf("file = %+v", f)
	}

	_, err = c.GetFile(context.Background(), c.PostPath("missing"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestListPosts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/site/contents/src/content/blog", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, []map[string]any{
			{"type": "file", "name": "a.md", "path": "src/content/blog/a.md", "sha": "1"},
			{"type": "file", "name": "notes.txt", "path": "src/content/blog/notes.txt", "sha": "2"},
			{"type": "dir", "name": "drafts", "path": "src/content/blog/drafts", "sha": "3"},
		})
	})
	c := testClient(t, mux)
	files, err := c.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(files) != 1 || files[0].Name != "a.md" {
		t.Errorf("files = %+v", files)
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	var gotCreate, gotUpdate, gotDelete map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/acme/site/contents/src/content/blog/new.md", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["sha"]; ok {
			gotUpdate = body
			writeJSON(w, 200, map[string]any{"content": map[string]any{"sha": "v2"}})
			return
		}
		gotCreate = body
		writeJSON(w, 201, map[string]any{"content": map[string]any{"sha": "v1"}})
	})
	mux.HandleFunc("DELETE /repos/acme/site/contents/src/content/blog/new.md", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotDelete)
		writeJSON(w, 200, map[string]any{"commit": map[string]any{"sha": "c"}})
	})
	c := testClient(t, mux)
	ctx := context.Background()
	p := c.PostPath("new")

	sha, err := c.CreateFile(ctx, p, `feat: Add new blog post "New"`, []byte("hello"))
	if err != nil || sha != "v1" {
		t.Fatalf("CreateFile = %q, %v", sha, err)
	}
	if gotCreate["message"] != `feat: Add new blog post "New"` || gotCreate["branch"] != "main" {
		t.Errorf("create body = %v", gotCreate)
	}
	if gotCreate["content"] != base64.StdEncoding.EncodeToString([]byte("hello")) {
		t.Errorf("content = %v", gotCreate["content"])
	}

	sha, err = c.UpdateFile(ctx, p, "update", []byte("hello 2"), "v1")
	if err != nil || sha != "v2" {
		t.Fatalf("UpdateFile = %q, %v", sha, err)
	}
	if gotUpdate["sha"] != "v1" {
		t.Errorf("update body = %v", gotUpdate)
	}

	if err := c.DeleteFile(ctx, p, "delete", "v2"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if gotDelete["sha"] != "v2" {
		t.Errorf("delete body = %v", gotDelete)
	}
}

func TestShaMismatchIsConflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/acme/site/contents/src/content/blog/x.md", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 409, map[string]any{"message": "src/content/blog/x.md does not match v0"})
	})
	c := testClient(t, mux)
	_, err := c.UpdateFile(context.Background(), c.PostPath("x"), "m", []byte("x"), "v0")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want conflict", err)
	}
}

func TestServerErrorIsUpstream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/site/contents/src/content/blog/x.md", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 500, map[string]any{"message": "boom"})
	})
	c := testClient(t, mux)
	_, err := c.GetFile(context.Background(), c.PostPath("x"))
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("err = %v, want upstream", err)
	}
}

func TestUploadImage(t *testing.T) {
	var path string
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/acme/site/contents/public/blog/", func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		writeJSON(w, 201, map[string]any{"content": map[string]any{"sha": "img"}})
	})
	c := testClient(t, mux)
	u, err := c.UploadImage(context.Background(), "1700000000000-abc.png", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if u != "/blog/1700000000000-abc.png" {
		t.Errorf("url = %q", u)
	}
	if path != "/repos/acme/site/contents/public/blog/1700000000000-abc.png" {
		t.Errorf("path = %q", path)
	}
}

func TestDispatch(t *testing.T) {
	var body struct {
		EventType     string            `json:"event_type"`
		ClientPayload map[string]string `json:"client_payload"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/site/dispatches", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusNoContent)
	})
	c := testClient(t, mux)
	fixed := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	ts, err := c.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !ts.Equal(fixed) {
		t.Errorf("ts = %v", ts)
	}
	if body.EventType != "cms-update" || body.ClientPayload["trigger"] != "cms" {
		t.Errorf("body = %+v", body)
	}
	if body.ClientPayload["timestamp"] != "2025-02-03T04:05:06Z" {
		t.Errorf("timestamp = %q", body.ClientPayload["timestamp"])
	}
}

func TestDispatchFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/site/dispatches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 403, map[string]any{"message": "Resource not accessible"})
	})
	c := testClient(t, mux)
	_, err := c.Dispatch(context.Background())
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Status != 403 || !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("err = %v", err)
	}
}
