// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes furrow content tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/content"
	"github.com/starford/furrow/internal/index"
	"github.com/starford/furrow/internal/linkpreview"
	"github.com/starford/furrow/internal/media"
	"github.com/starford/furrow/internal/parser"
	"github.com/starford/furrow/internal/posts"
)

const resourceURI = "furrow://frontmatter"

// Deps are the services the tools call into. Posts and Media may be nil,
// which leaves the corresponding tools unregistered.
type Deps struct {
	Catalog *content.Catalog
	Index   index.EntryIndex
	Preview *linkpreview.Fetcher
	Posts   *posts.Service
	Media   *media.Service
}

// Server wraps the MCP server with furrow tools.
type Server struct {
	mcp  *server.MCPServer
	deps Deps
}

// New creates a new MCP server with all available tools registered.
func New(deps Deps, version string) *Server {
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"Furrow",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Full-text search through published blog and news entries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List published entries of a collection, optionally filtered by category or tag."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name, e.g. blog or news")),
		mcp.WithString("category", mcp.Description("Only entries in this category")),
		mcp.WithString("tag", mcp.Description("Only entries with this tag")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("read_entry",
		mcp.WithDescription("Read one entry including its Markdown body."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Entry slug")),
	), s.readEntry)

	s.mcp.AddTool(mcp.NewTool("similar_entries",
		mcp.WithDescription("Entries sharing categories and tags with the given entry, best matches first."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Entry slug")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 3)")),
	), s.similarEntries)

	s.mcp.AddTool(mcp.NewTool("list_taxonomy",
		mcp.WithDescription("List the distinct categories or tags used in a collection."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("categories or tags")),
		mcp.WithString("collection", mcp.Description("Collection name (default blog)")),
	), s.listTaxonomy)

	if deps.Preview != nil {
		s.mcp.AddTool(mcp.NewTool("link_preview",
			mcp.WithDescription("Fetch a web page and return its title, description, image and site name."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http or https URL")),
		), s.linkPreview)
	}

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the Markdown post format. "+
			"Call this before drafting a post to ensure correct structure."),
	), s.getPostContract)

	if deps.Posts != nil {
		s.mcp.AddTool(mcp.NewTool("create_post",
			mcp.WithDescription("Create a blog post from a Markdown document with YAML frontmatter. "+
				"Content MUST follow the post format; read it first via get_post_contract "+
				"or the "+resourceURI+" resource."),
			mcp.WithString("slug", mcp.Required(), mcp.Description("Lowercase slug: letters, digits, hyphens")),
			mcp.WithString("content", mcp.Required(), mcp.Description("Markdown document with frontmatter")),
		), s.createPost)
	}

	if deps.Media != nil {
		s.mcp.AddTool(mcp.NewTool("upload_image",
			mcp.WithDescription("Upload an image given as a base64 data URI. Returns its public URL "+
				"and a Markdown image snippet."),
			mcp.WithString("data", mcp.Required(), mcp.Description("data:image/<type>;base64,<payload>")),
			mcp.WithString("alt", mcp.Description("Alt text for the Markdown snippet")),
		), s.uploadImage)
	}

	s.mcp.AddResource(
		mcp.NewResource(resourceURI, "Post Format",
			mcp.WithResourceDescription("Markdown frontmatter format that blog posts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	msg := apperr.Message(err)
	if d := apperr.Details(err); d != "" {
		msg += ": " + d
	}
	return mcp.NewToolResultError(msg), nil
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.deps.Index.Search(ctx, query, int(req.GetFloat("limit", 20)))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(results)
}

type entrySummary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Date       string   `json:"date,omitempty"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.deps.Catalog.Search(ctx, collection, content.Query{
		Category: req.GetString("category", ""),
		Tag:      req.GetString("tag", ""),
	})
	if err != nil {
		return errorResult(err)
	}
	out := make([]entrySummary, 0, len(entries))
	for _, e := range entries {
		sum := entrySummary{ID: e.ID, Title: e.Title, URL: e.URL, Categories: e.Categories, Tags: e.Tags}
		if !e.Date.IsZero() {
			sum.Date = parser.FormatDate(e.Date)
		}
		out = append(out, sum)
	}
	return jsonResult(out)
}

func (s *Server) readEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.deps.Catalog.Entry(ctx, collection, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", collection, slug)), nil
	}
	return jsonResult(e)
}

func (s *Server) similarEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.deps.Catalog.SimilarTo(ctx, collection, slug, int(req.GetFloat("limit", 3)))
	if err != nil {
		return errorResult(err)
	}
	out := make([]entrySummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, entrySummary{ID: e.ID, Title: e.Title, URL: e.URL, Categories: e.Categories, Tags: e.Tags})
	}
	return jsonResult(out)
}

func (s *Server) listTaxonomy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	terms, err := s.deps.Catalog.Taxonomy(ctx, req.GetString("collection", "blog"), kind)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(terms)
}

func (s *Server) linkPreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	preview, err := s.deps.Preview.Preview(ctx, raw)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(preview)
}

func (s *Server) getPostContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) createPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := parser.Parse([]byte(doc))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !res.HasFrontmatter {
		return mcp.NewToolResultError("content must start with a YAML frontmatter block"), nil
	}
	fm := res.Frontmatter()
	post, err := s.deps.Posts.Create(ctx, slug, &fm, res.Body)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]string{"slug": post.Slug, "sha": post.SHA})
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      resourceURI,
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
