package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/furrow/internal/models"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends.
const (
	BackendFS       = "fs"
	BackendDatabase = "database"
	BackendGitHub   = "github"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Content     ContentConfig     `yaml:"content"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Auth        AuthConfig        `yaml:"auth"`
	CMS         CMSConfig         `yaml:"cms"`
	GitHub      GitHubConfig      `yaml:"github"`
	LinkPreview LinkPreviewConfig `yaml:"link_preview"`
	Uploads     UploadsConfig     `yaml:"uploads"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Content.Validate(); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.CMS.Validate(); err != nil {
		return fmt.Errorf("cms: %w", err)
	}
	if err := c.LinkPreview.Validate(); err != nil {
		return fmt.Errorf("link_preview: %w", err)
	}
	if err := c.Uploads.Validate(); err != nil {
		return fmt.Errorf("uploads: %w", err)
	}
	if c.CMS.Backend == BackendGitHub || c.Uploads.Backend == BackendGitHub {
		if err := c.GitHub.Validate(); err != nil {
			return fmt.Errorf("github: %w", err)
		}
	}
	return nil
}

// CookieSecure reports whether the session cookie is marked Secure.
// Production always uses secure cookies.
func (c *Config) CookieSecure() bool {
	return c.Auth.CookieSecure || c.App.Env == EnvProduction
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	Env      string     `yaml:"env"`
	HTTP     HTTPConfig `yaml:"http"`
	CORS     CORSConfig `yaml:"cors"`
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites those
	// headers; otherwise clients can pick their own address and dodge the
	// login limiter.
	TrustProxy bool `yaml:"trust_proxy"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Env == "" {
		c.Env = EnvDevelopment
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Env, validation.In(EnvDevelopment, EnvProduction)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ContentConfig locates the static content collections.
type ContentConfig struct {
	Dir         string            `yaml:"dir"`
	Collections []string          `yaml:"collections"`
	Routes      map[string]string `yaml:"routes"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Collections, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration. The document store and
// the search index share the file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// UserConfig is one account allowed to sign in.
type UserConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

// Validate validates the user entry.
func (c UserConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.PasswordHash, validation.Required),
		validation.Field(&c.Role, validation.In(models.RoleAdmin, models.RoleEditor)),
	)
}

// AuthConfig holds session token and login configuration.
//
// LoginRate is the number of login attempts allowed per minute per client
// IP; zero disables the limit.
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
	APIKey       string        `yaml:"api_key"`
	Users        []UserConfig  `yaml:"users"`
	LoginRate    int           `yaml:"login_rate"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.TokenTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.LoginRate, validation.Min(0)),
		validation.Field(&c.Users),
	)
}

// CMSConfig selects where the posts resource is stored.
type CMSConfig struct {
	Backend string `yaml:"backend"`
}

// Validate validates the CMS configuration.
func (c *CMSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFS, BackendDatabase, BackendGitHub)),
	)
}

// GitHubConfig locates the repository the site is built from. A token
// also enables POST /api/cms/sync.
type GitHubConfig struct {
	Token          string `yaml:"token"`
	Owner          string `yaml:"owner"`
	Repo           string `yaml:"repo"`
	Branch         string `yaml:"branch"`
	ContentPath    string `yaml:"content_path"`
	ImagePath      string `yaml:"image_path"`
	ImageURLPrefix string `yaml:"image_url_prefix"`
	DispatchEvent  string `yaml:"dispatch_event"`
	APIURL         string `yaml:"api_url"`
}

// Enabled reports whether the repository is configured.
func (c *GitHubConfig) Enabled() bool {
	return c.Token != "" && c.Owner != "" && c.Repo != ""
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
	)
}

// LinkPreviewConfig controls outbound page fetches.
type LinkPreviewConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	AllowPrivateHosts bool          `yaml:"allow_private_hosts"`
}

// Validate validates the link preview configuration.
func (c *LinkPreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxBodyBytes, validation.Min(int64(0))),
	)
}

// UploadsConfig controls image uploads. With the fs backend files land in
// Dir and are served under URLPrefix.
type UploadsConfig struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	URLPrefix string `yaml:"url_prefix"`
	MaxBytes  int64  `yaml:"max_bytes"`
	MaxWidth  int    `yaml:"max_width"`
	MaxPixels int    `yaml:"max_pixels"`
}

// Validate validates the uploads configuration.
func (c *UploadsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFS, BackendGitHub)),
		validation.Field(&c.Dir, validation.When(c.Backend == BackendFS, validation.Required)),
		validation.Field(&c.URLPrefix, validation.When(c.Backend == BackendFS, validation.Required)),
		validation.Field(&c.MaxBytes, validation.Min(int64(0))),
		validation.Field(&c.MaxWidth, validation.Min(0)),
		validation.Field(&c.MaxPixels, validation.Min(0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Env:      EnvDevelopment,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Dir:         "./content",
			Collections: []string{"blog", "news"},
			Routes:      map[string]string{"blog": "agritech", "news": "news"},
		},
		SQLite: SQLiteConfig{
			Path: "./furrow.db",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			CookieName: "auth-token",
			LoginRate:  10,
		},
		CMS: CMSConfig{
			Backend: BackendFS,
		},
		GitHub: GitHubConfig{
			Branch:        "main",
			DispatchEvent: "cms-update",
		},
		LinkPreview: LinkPreviewConfig{
			Timeout: 10 * time.Second,
		},
		Uploads: UploadsConfig{
			Backend:   BackendFS,
			Dir:       "./uploads",
			URLPrefix: "/uploads",
			MaxBytes:  5 << 20,
			MaxWidth:  1600,
			MaxPixels: 40_000_000,
		},
	}
}
