// Package linkpreview builds link previews from Open Graph, Twitter Card and
// plain meta tags of a fetched page.
package linkpreview

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/starford/furrow/internal/models"
)

var (
	titleRe = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	spaceRe = regexp.MustCompile(`\s+`)

	metaMu    sync.Mutex
	metaCache = map[string][2]*regexp.Regexp{}
)

// Extract builds a preview of the page at pageURL from its HTML. Each field
// takes the first of og:*, twitter:* and the generic tag that is present;
// title and siteName fall back to the host name. Malformed markup yields
// whatever matched.
func Extract(doc, pageURL string) models.LinkPreview {
	u, err := url.Parse(pageURL)
	host := ""
	if err == nil {
		host = u.Hostname()
	}
	p := models.LinkPreview{
		URL:      pageURL,
		Title:    host,
		SiteName: host,
	}
	if u != nil && u.Scheme != "" && host != "" {
		p.Favicon = u.Scheme + "://" + host + "/favicon.ico"
	}

	if m := titleRe.FindStringSubmatch(doc); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			p.Title = t
		}
	}
	if t := first(meta(doc, "og:title"), meta(doc, "twitter:title")); t != "" {
		p.Title = t
	}
	p.Description = first(meta(doc, "og:description"), meta(doc, "twitter:description"), meta(doc, "description"))
	if img := first(meta(doc, "og:image"), meta(doc, "twitter:image")); img != "" {
		p.Image = resolve(u, img)
	}
	if s := meta(doc, "og:site_name"); s != "" {
		p.SiteName = s
	}

	p.Title = clean(p.Title)
	p.Description = clean(p.Description)
	p.SiteName = clean(p.SiteName)
	return p
}

// meta returns the content of the <meta> tag whose property or name is prop.
// Attributes may appear in either order.
func meta(doc, prop string) string {
	for _, re := range metaPatterns(prop) {
		if m := re.FindStringSubmatch(doc); m != nil {
			return m[1]
		}
	}
	return ""
}

func metaPatterns(prop string) [2]*regexp.Regexp {
	metaMu.Lock()
	defer metaMu.Unlock()
	if res, ok := metaCache[prop]; ok {
		return res
	}
	q := regexp.QuoteMeta(prop)
	res := [2]*regexp.Regexp{
		regexp.MustCompile(`(?i)<meta[^>]+(?:property|name)=["']` + q + `["'][^>]+content=["']([^"']+)["']`),
		regexp.MustCompile(`(?i)<meta[^>]+content=["']([^"']+)["'][^>]+(?:property|name)=["']` + q + `["']`),
	}
	metaCache[prop] = res
	return res
}

func resolve(base *url.URL, ref string) string {
	if strings.HasPrefix(ref, "http") || base == nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func clean(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(html.UnescapeString(s), " "))
}
