// Package models defines the domain types shared across furrow packages.
package models

import "time"

// Entry is one content item (blog post, news item, page) with its
// frontmatter metadata and Markdown body.
type Entry struct {
	ID              string    `json:"id"`
	Collection      string    `json:"collection"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Date            time.Time `json:"date,omitempty"`
	Image           string    `json:"image,omitempty"`
	ImageAlt        string    `json:"imageAlt,omitempty"`
	Authors         []string  `json:"authors"`
	Categories      []string  `json:"categories"`
	Tags            []string  `json:"tags"`
	Draft           bool      `json:"draft"`
	Complexity      int       `json:"complexity"`
	AutoDescription bool      `json:"autodescription"`
	HideToc         bool      `json:"hideToc,omitempty"`
	Body            string    `json:"body,omitempty"`
	URL             string    `json:"url,omitempty"`

	// News-only fields.
	Priority     int       `json:"priority,omitempty"`
	Featured     bool      `json:"featured,omitempty"`
	ExternalLink string    `json:"externalLink,omitempty"`
	Source       string    `json:"source,omitempty"`
	Views        int       `json:"views,omitempty"`
	PublishedAt  time.Time `json:"publishedAt,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

// HasCategory reports whether the entry lists category c.
func (e *Entry) HasCategory(c string) bool { return contains(e.Categories, c) }

// HasTag reports whether the entry lists tag t.
func (e *Entry) HasTag(t string) bool { return contains(e.Tags, t) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Frontmatter is the metadata block written ahead of a post body.
type Frontmatter struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Date        string   `json:"date" yaml:"date"`
	Image       string   `json:"image,omitempty" yaml:"image,omitempty"`
	Authors     []string `json:"authors" yaml:"authors"`
	Categories  []string `json:"categories" yaml:"categories"`
	Tags        []string `json:"tags" yaml:"tags"`
	Draft       bool     `json:"draft" yaml:"draft"`
}

// Post is a blog post as exposed by the posts resource. SHA is the
// revision token callers must echo back on update and delete.
type Post struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Image       string   `json:"image,omitempty"`
	Authors     []string `json:"authors"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	Draft       bool     `json:"draft"`
	Content     string   `json:"content"`
	SHA         string   `json:"sha,omitempty"`
}

// Frontmatter returns the metadata half of the post.
func (p *Post) Frontmatter() Frontmatter {
	return Frontmatter{
		Title:       p.Title,
		Description: p.Description,
		Date:        p.Date,
		Image:       p.Image,
		Authors:     p.Authors,
		Categories:  p.Categories,
		Tags:        p.Tags,
		Draft:       p.Draft,
	}
}

// NewPost assembles a Post from its frontmatter and body.
func NewPost(slug string, fm Frontmatter, content, sha string) *Post {
	return &Post{
		Slug:        slug,
		Title:       fm.Title,
		Description: fm.Description,
		Date:        fm.Date,
		Image:       fm.Image,
		Authors:     nonNil(fm.Authors),
		Categories:  nonNil(fm.Categories),
		Tags:        nonNil(fm.Tags),
		Draft:       fm.Draft,
		Content:     content,
		SHA:         sha,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// LinkPreview is summary metadata extracted from a fetched web page.
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"siteName"`
	Favicon     string `json:"favicon"`
}

// Roles.
const (
	RoleAdmin   = "admin"
	RoleEditor  = "editor"
	RoleService = "service"
)

// User is an authenticated principal.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
