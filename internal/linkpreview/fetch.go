package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/models"
)

// Defaults applied by NewFetcher to zero Config fields.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (compatible; Furrow-LinkPreview/1.0)"
	DefaultMaxBodyBytes = 2 << 20
	maxRedirects        = 5
)

// Caller-facing messages.
const (
	MsgInvalidURL    = "Invalid URL provided"
	MsgInvalidFormat = "Invalid URL format"
	MsgScheme        = "Only HTTP/HTTPS URLs are supported"
	MsgPrivate       = "Access to private networks is not allowed"
	MsgNetwork       = "Network error while fetching URL"
)

// Config controls outbound fetches.
type Config struct {
	Timeout           time.Duration
	UserAgent         string
	MaxBodyBytes      int64
	AllowPrivateHosts bool
}

// Fetcher downloads pages and extracts their previews.
type Fetcher struct {
	cfg    Config
	client *http.Client
	lookup func(ctx context.Context, host string) ([]net.IP, error)
}

// NewFetcher creates a Fetcher. A nil client gets a default one; redirects
// are always re-checked against the host policy.
func NewFetcher(cfg Config, client *http.Client) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	f := &Fetcher{
		cfg: cfg,
		lookup: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
	}
	if client == nil {
		client = &http.Client{}
	} else {
		c := *client
		client = &c
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects (max %d)", maxRedirects)
		}
		return f.checkHost(req.Context(), req.URL.Hostname())
	}
	f.client = client
	return f
}

// Normalize trims raw and prefixes https:// when it carries no scheme.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") && !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return s
}

// Preview fetches rawURL and extracts its preview. Failures are
// *apperr.Error values: invalid input, forbidden host, or upstream failure
// carrying the remote status.
func (f *Fetcher) Preview(ctx context.Context, rawURL string) (*models.LinkPreview, error) {
	target := Normalize(rawURL)
	if target == "" {
		return nil, apperr.Invalid(MsgInvalidURL)
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil, apperr.Invalid(MsgInvalidFormat)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperr.Invalid(MsgScheme)
	}
	if err := f.checkHost(ctx, u.Hostname()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperr.Invalid(MsgInvalidFormat)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		slog.Warn("linkpreview: fetch failed", "url", target, "error", err)
		return nil, apperr.Upstream(MsgNetwork, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Upstream(
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			resp.StatusCode, nil)
	}

	// Unknown charsets fall back to a sniffed encoding; an error here means
	// the body itself could not be read.
	body, err := charset.NewReader(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, apperr.Upstream(MsgNetwork, 0, err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperr.Upstream(MsgNetwork, 0, err)
	}

	p := Extract(string(data), target)
	return &p, nil
}

// checkHost rejects loopback, private, link-local and metadata addresses
// unless private hosts are allowed.
func (f *Fetcher) checkHost(ctx context.Context, host string) error {
	if f.cfg.AllowPrivateHosts {
		return nil
	}
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if h == "localhost" || strings.HasSuffix(h, ".localhost") || h == "metadata.google.internal" {
		return apperr.Forbidden(MsgPrivate)
	}
	ips := []net.IP{net.ParseIP(h)}
	if ips[0] == nil {
		resolved, err := f.lookup(ctx, h)
		if err != nil || len(resolved) == 0 {
			return nil //nolint:nilerr // let the client report DNS failures
		}
		ips = resolved
	}
	for _, ip := range ips {
		if blockedIP(ip) {
			return apperr.Forbidden(MsgPrivate)
		}
	}
	return nil
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast()
}
