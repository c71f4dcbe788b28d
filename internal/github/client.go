// Package github publishes content by committing files to a GitHub
// repository and triggers site rebuilds through repository dispatch.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"

	"github.com/starford/furrow/internal/apperr"
)

// Config locates the repository and the folders content is written to.
type Config struct {
	Token          string
	Owner          string
	Repo           string
	Branch         string
	ContentPath    string
	ImagePath      string
	ImageURLPrefix string
	DispatchEvent  string
	APIURL         string
}

// File is a repository file. Content is empty in directory listings.
type File struct {
	Path    string
	Name    string
	SHA     string
	Content []byte
}

// Client wraps the GitHub contents and dispatch APIs.
type Client struct {
	api *gh.Client
	cfg Config
	now func() time.Time
}

// New creates a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, errors.New("github: owner and repo are required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.ContentPath == "" {
		cfg.ContentPath = "src/content/blog"
	}
	if cfg.ImagePath == "" {
		cfg.ImagePath = "public/blog"
	}
	if cfg.ImageURLPrefix == "" {
		cfg.ImageURLPrefix = "/blog"
	}
	if cfg.DispatchEvent == "" {
		cfg.DispatchEvent = "cms-update"
	}

	api := gh.NewClient(httpClient)
	if cfg.Token != "" {
		api = api.WithAuthToken(cfg.Token)
	}
	if cfg.APIURL != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: parse api url: %w", err)
		}
		api.BaseURL = u
	}
	return &Client{api: api, cfg: cfg, now: time.Now}, nil
}

// PostPath returns the repository path of the post with slug.
func (c *Client) PostPath(slug string) string {
	return path.Join(c.cfg.ContentPath, slug+".md")
}

// ListPosts lists the Markdown files in the content folder.
func (c *Client) ListPosts(ctx context.Context) ([]File, error) {
	_, dir, _, err := c.api.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, c.cfg.ContentPath,
		&gh.RepositoryContentGetOptions{Ref: c.cfg.Branch})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return []File{}, nil
		}
		return nil, mapError("list posts", err)
	}
	out := make([]File, 0, len(dir))
	for _, item := range dir {
		if item.GetType() != "file" || !strings.HasSuffix(item.GetName(), ".md") {
			continue
		}
		out = append(out, File{Path: item.GetPath(), Name: item.GetName(), SHA: item.GetSHA()})
	}
	return out, nil
}

// GetFile downloads one file. A missing file wraps apperr.ErrNotFound.
func (c *Client) GetFile(ctx context.Context, p string) (*File, error) {
	file, _, _, err := c.api.Repositories.GetContents(ctx, c.cfg.Owner, c.cfg.Repo, p,
		&gh.RepositoryContentGetOptions{Ref: c.cfg.Branch})
	if err != nil {
		return nil, mapError("get "+p, err)
	}
	if file == nil {
		return nil, fmt.Errorf("github: %s is a directory: %w", p, apperr.ErrNotFound)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("github: decode %s: %w", p, err)
	}
	return &File{Path: file.GetPath(), Name: file.GetName(), SHA: file.GetSHA(), Content: []byte(content)}, nil
}

// CreateFile commits a new file and returns its blob SHA.
func (c *Client) CreateFile(ctx context.Context, p, message string, content []byte) (string, error) {
	res, _, err := c.api.Repositories.CreateFile(ctx, c.cfg.Owner, c.cfg.Repo, p, &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
		Branch:  gh.String(c.cfg.Branch),
	})
	if err != nil {
		return "", mapError("create "+p, err)
	}
	return res.GetContent().GetSHA(), nil
}

// UpdateFile commits new content over the blob identified by sha.
func (c *Client) UpdateFile(ctx context.Context, p, message string, content []byte, sha string) (string, error) {
	res, _, err := c.api.Repositories.UpdateFile(ctx, c.cfg.Owner, c.cfg.Repo, p, &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
		SHA:     gh.String(sha),
		Branch:  gh.String(c.cfg.Branch),
	})
	if err != nil {
		return "", mapError("update "+p, err)
	}
	return res.GetContent().GetSHA(), nil
}

// DeleteFile commits the removal of the blob identified by sha.
func (c *Client) DeleteFile(ctx context.Context, p, message, sha string) error {
	_, _, err := c.api.Repositories.DeleteFile(ctx, c.cfg.Owner, c.cfg.Repo, p, &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		SHA:     gh.String(sha),
		Branch:  gh.String(c.cfg.Branch),
	})
	if err != nil {
		return mapError("delete "+p, err)
	}
	return nil
}

// UploadImage commits an image into the image folder and returns its
// public URL.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	p := path.Join(c.cfg.ImagePath, filename)
	if _, err := c.CreateFile(ctx, p, fmt.Sprintf("feat: Add blog image %s", filename), data); err != nil {
		return "", err
	}
	return strings.TrimSuffix(c.cfg.ImageURLPrefix, "/") + "/" + filename, nil
}

type dispatchPayload struct {
	Timestamp string `json:"timestamp"`
	Trigger   string `json:"trigger"`
}

// Dispatch fires the configured repository_dispatch event and returns the
// timestamp sent in its payload.
func (c *Client) Dispatch(ctx context.Context) (time.Time, error) {
	ts := c.now().UTC()
	raw, err := json.Marshal(dispatchPayload{Timestamp: ts.Format(time.RFC3339Nano), Trigger: "cms"})
	if err != nil {
		return time.Time{}, fmt.Errorf("github: encode payload: %w", err)
	}
	payload := json.RawMessage(raw)
	_, _, err = c.api.Repositories.Dispatch(ctx, c.cfg.Owner, c.cfg.Repo, gh.DispatchRequestOptions{
		EventType:     c.cfg.DispatchEvent,
		ClientPayload: &payload,
	})
	if err != nil {
		slog.Error("github: dispatch failed", "event", c.cfg.DispatchEvent, "error", err)
		var er *gh.ErrorResponse
		status := 0
		if errors.As(err, &er) && er.Response != nil {
			status = er.Response.StatusCode
		}
		return time.Time{}, apperr.Upstream("Failed to trigger sync", status, err)
	}
	return ts, nil
}

func isStatus(err error, code int) bool {
	var er *gh.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == code
}

// mapError translates API failures: 404 is not found, 409 and 422 are
// revision conflicts, anything else is an upstream failure.
func mapError(op string, err error) error {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("github: %s: %w", op, apperr.ErrNotFound)
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return fmt.Errorf("github: %s: %w", op, apperr.Conflict("Revision does not match the current file"))
		default:
			return apperr.Upstream("GitHub request failed", er.Response.StatusCode, err)
		}
	}
	return apperr.Upstream("GitHub request failed", 0, err)
}
