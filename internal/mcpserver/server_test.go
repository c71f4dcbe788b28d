package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/furrow/internal/content"
	"github.com/starford/furrow/internal/index"
	"github.com/starford/furrow/internal/linkpreview"
	"github.com/starford/furrow/internal/media"
	"github.com/starford/furrow/internal/posts"
	"github.com/starford/furrow/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	dir, store := testutil.TestContent(t)
	testutil.WriteFile(t, dir, "blog/alpha.md", "---\ntitle: Alpha Crops\ndate: 2024-01-02\ncategories: [farming]\ntags: [soil, water]\n---\nirrigation notes")
	testutil.WriteFile(t, dir, "blog/beta.md", "---\ntitle: Beta Crops\ndate: 2024-01-03\ncategories: [farming]\ntags: [soil]\n---\nmore irrigation")
	testutil.WriteFile(t, dir, "blog/gamma.md", "---\ntitle: Gamma\ndate: 2024-01-04\ncategories: [iot]\n---\nsensors")

	static := content.NewStaticSource(store, nil)
	collections := []string{"blog", "news"}
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := index.Sync(context.Background(), db, index.Sources{Files: store, Static: static, Collections: collections}, logger); err != nil {
		t.Fatal(err)
	}

	srv := New(Deps{
		Catalog: content.NewCatalog(collections, static),
		Index:   db,
		Preview: linkpreview.NewFetcher(linkpreview.Config{AllowPrivateHosts: true}, nil),
		Posts:   posts.NewService(posts.NewFSRepository(store, "blog"), nil),
		Media:   media.NewService(media.Config{}, media.NewFSUploader(store, "/uploads")),
	}, "test")
	return srv, dir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct call helper, so dispatch to the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_entries":
		result, err = srv.searchEntries(ctx, req)
	case "list_entries":
		result, err = srv.listEntries(ctx, req)
	case "read_entry":
		result, err = srv.readEntry(ctx, req)
	case "similar_entries":
		result, err = srv.similarEntries(ctx, req)
	case "list_taxonomy":
		result, err = srv.listTaxonomy(ctx, req)
	case "link_preview":
		result, err = srv.linkPreview(ctx, req)
	case "create_post":
		result, err = srv.createPost(ctx, req)
	case "upload_image":
		result, err = srv.uploadImage(ctx, req)
	case "get_post_contract":
		result, err = srv.getPostContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchEntries(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "search_entries", map[string]any{"query": "sensors"})
	var hits []index.SearchResult
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	if len(hits) != 1 || hits[0].ID != "blog/gamma" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestReadEntry(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_entry", map[string]any{"collection": "blog", "slug": "alpha"})
	if r.IsError || !strings.Contains(resultText(r), "irrigation notes") {
		t.Errorf("read = %q", resultText(r))
	}

	r = callTool(t, srv, "read_entry", map[string]any{"collection": "blog", "slug": "nope"})
	if !r.IsError {
		t.Error("expected error for missing entry")
	}
}

func TestSimilarEntries(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "similar_entries", map[string]any{"collection": "blog", "slug": "alpha"})
	var out []entrySummary
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	if len(out) != 1 || out[0].ID != "blog/beta" {
		t.Errorf("similar = %+v", out)
	}
}

func TestListEntriesAndTaxonomy(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_entries", map[string]any{"collection": "blog", "tag": "soil"})
	var out []entrySummary
	_ = json.Unmarshal([]byte(resultText(r)), &out)
	if len(out) != 2 {
		t.Errorf("entries tagged soil = %d", len(out))
	}

	r = callTool(t, srv, "list_taxonomy", map[string]any{"kind": "categories"})
	if got := resultText(r); !strings.Contains(got, "farming") || !strings.Contains(got, "iot") {
		t.Errorf("categories = %q", got)
	}
}

func TestLinkPreview(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><head><title>Preview Page</title></head></html>`)
	}))
	defer ts.Close()

	srv, _ := testServer(t)
	r := callTool(t, srv, "link_preview", map[string]any{"url": ts.URL})
	if r.IsError || !strings.Contains(resultText(r), "Preview Page") {
		t.Errorf("preview = %q", resultText(r))
	}

	r = callTool(t, srv, "link_preview", map[string]any{"url": "ftp://example.com"})
	if !r.IsError || !strings.Contains(resultText(r), linkpreview.MsgScheme) {
		t.Errorf("scheme error = %q", resultText(r))
	}
}

func TestCreatePost(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_post", map[string]any{
		"slug":    "delta",
		"content": "---\ntitle: Delta\ncategories: [farming]\n---\nnew post",
	})
	if r.IsError || !strings.Contains(resultText(r), `"sha"`) {
		t.Fatalf("create = %q", resultText(r))
	}

	r = callTool(t, srv, "create_post", map[string]any{"slug": "delta", "content": "---\ntitle: Again\n---\nx"})
	if !r.IsError || !strings.Contains(resultText(r), posts.MsgExists) {
		t.Errorf("duplicate = %q", resultText(r))
	}

	r = callTool(t, srv, "create_post", map[string]any{"slug": "epsilon", "content": "no frontmatter"})
	if !r.IsError {
		t.Error("expected error without frontmatter")
	}
}

func TestUploadImage(t *testing.T) {
	srv, _ := testServer(t)
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	r := callTool(t, srv, "upload_image", map[string]any{"data": uri, "alt": "chart"})
	if r.IsError {
		t.Fatalf("upload error: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.URL, "/uploads/") || !strings.HasPrefix(res.MarkdownImage, "![chart](/uploads/") {
		t.Errorf("result = %+v", res)
	}

	r = callTool(t, srv, "upload_image", map[string]any{"data": "data:text/plain;base64,aGk="})
	if !r.IsError {
		t.Error("expected error for non-image data URI")
	}
}

func TestDecodeDataURI(t *testing.T) {
	for _, bad := range []string{"https://x/y.png", "data:image/png,abc", "data:image/png;base64", "data:image/png;base64,***"} {
		if _, err := decodeDataURI(bad); err == nil {
			t.Errorf("decodeDataURI(%q) expected error", bad)
		}
	}
	data, err := decodeDataURI("data:image/gif;base64,R0lG")
	if err != nil || string(data) != "GIF" {
		t.Errorf("decode = %q, %v", data, err)
	}
}
