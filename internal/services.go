package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/furrow/internal/auth"
	"github.com/starford/furrow/internal/cms"
	"github.com/starford/furrow/internal/content"
	"github.com/starford/furrow/internal/docstore"
	"github.com/starford/furrow/internal/github"
	"github.com/starford/furrow/internal/index"
	"github.com/starford/furrow/internal/linkpreview"
	"github.com/starford/furrow/internal/media"
	"github.com/starford/furrow/internal/posts"
	"github.com/starford/furrow/internal/storage"
)

// services is the component graph shared by the HTTP server, the MCP
// server and the reindex command.
type services struct {
	store   *storage.FS
	docs    *docstore.Store
	db      *index.DB
	sources index.Sources
	catalog *content.Catalog
	posts   *posts.Service
	media   *media.Service
	preview *linkpreview.Fetcher
	cms     *cms.Service
	github  *github.Client // nil unless configured
	uploads *storage.FS    // nil unless uploads use the fs backend
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// newServices opens the stores and builds every service. notify receives
// post writes; it may be nil.
func newServices(cfg *Config, notify func(posts.Event)) (_ *services, err error) {
	s := &services{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if err := os.MkdirAll(cfg.Content.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	if s.store, err = storage.NewFS(cfg.Content.Dir); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if s.docs, err = docstore.Open(cfg.SQLite.Path); err != nil {
		return nil, fmt.Errorf("init docstore: %w", err)
	}
	if s.db, err = index.Open(cfg.SQLite.Path); err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	routes := content.Routes(cfg.Content.Routes)
	static := content.NewStaticSource(s.store, routes)
	dbSource := content.NewDBSource(s.docs, routes)
	s.sources = index.Sources{
		Files:       s.store,
		Static:      static,
		Docs:        dbSource,
		Collections: cfg.Content.Collections,
	}
	s.catalog = content.NewCatalog(cfg.Content.Collections, static, dbSource)
	s.cms = cms.NewService(s.docs, cfg.Content.Collections)

	if cfg.GitHub.Enabled() {
		s.github, err = github.New(github.Config{
			Token:          cfg.GitHub.Token,
			Owner:          cfg.GitHub.Owner,
			Repo:           cfg.GitHub.Repo,
			Branch:         cfg.GitHub.Branch,
			ContentPath:    cfg.GitHub.ContentPath,
			ImagePath:      cfg.GitHub.ImagePath,
			ImageURLPrefix: cfg.GitHub.ImageURLPrefix,
			DispatchEvent:  cfg.GitHub.DispatchEvent,
			APIURL:         cfg.GitHub.APIURL,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("init github: %w", err)
		}
	}

	var repo posts.Repository
	switch cfg.CMS.Backend {
	case BackendDatabase:
		repo = posts.NewDBRepository(s.docs, "cms/blog")
	case BackendGitHub:
		if s.github == nil {
			return nil, errors.New("github backend requires github configuration")
		}
		repo = posts.NewGitHubRepository(s.github)
	default:
		repo = posts.NewFSRepository(s.store, "blog")
	}
	s.posts = posts.NewService(repo, notify)

	var uploader media.Uploader
	switch cfg.Uploads.Backend {
	case BackendGitHub:
		if s.github == nil {
			return nil, errors.New("github uploads require github configuration")
		}
		uploader = media.NewGitHubUploader(s.github)
	default:
		if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create uploads dir: %w", err)
		}
		if s.uploads, err = storage.NewFS(cfg.Uploads.Dir); err != nil {
			return nil, fmt.Errorf("init uploads: %w", err)
		}
		uploader = media.NewFSUploader(s.uploads, cfg.Uploads.URLPrefix)
	}
	s.media = media.NewService(media.Config{
		MaxBytes:  cfg.Uploads.MaxBytes,
		MaxWidth:  cfg.Uploads.MaxWidth,
		MaxPixels: cfg.Uploads.MaxPixels,
	}, uploader)

	s.preview = linkpreview.NewFetcher(linkpreview.Config{
		Timeout:           cfg.LinkPreview.Timeout,
		UserAgent:         cfg.LinkPreview.UserAgent,
		MaxBodyBytes:      cfg.LinkPreview.MaxBodyBytes,
		AllowPrivateHosts: cfg.LinkPreview.AllowPrivateHosts,
	}, nil)

	return s, nil
}

func newAuth(cfg *Config) (*auth.Service, error) {
	users := make([]auth.Credential, 0, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		users = append(users, auth.Credential{
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Role:         u.Role,
		})
	}
	return auth.New(auth.Config{
		Secret:       cfg.Auth.JWTSecret,
		TTL:          cfg.Auth.TokenTTL,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.CookieSecure(),
		APIKey:       cfg.Auth.APIKey,
		Users:        users,
	})
}

// Close releases the databases.
func (s *services) Close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.docs != nil {
		errs = append(errs, s.docs.Close())
	}
	return errors.Join(errs...)
}
