// Package parser reads and writes Markdown documents with YAML frontmatter.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"github.com/starford/furrow/internal/models"
)

// Meta is the union of frontmatter keys understood across collections.
type Meta struct {
	Title           string   `yaml:"title"`
	Slug            string   `yaml:"slug"`
	Description     string   `yaml:"description"`
	Date            string   `yaml:"date"`
	Image           string   `yaml:"image"`
	ImageAlt        string   `yaml:"imageAlt"`
	Authors         []string `yaml:"authors"`
	Categories      []string `yaml:"categories"`
	Tags            []string `yaml:"tags"`
	Draft           bool     `yaml:"draft"`
	Complexity      int      `yaml:"complexity"`
	AutoDescription *bool    `yaml:"autodescription"`
	HideToc         bool     `yaml:"hideToc"`
	Priority        int      `yaml:"priority"`
	Featured        bool     `yaml:"featured"`
	ExternalLink    string   `yaml:"externalLink"`
	Source          string   `yaml:"source"`
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Meta Meta
	// HasFrontmatter is false when the document had no block or the block
	// was not valid YAML; Meta is then zero apart from the derived title.
	HasFrontmatter bool
	Body           string
	Title          string
}

// Parse splits frontmatter from body. Invalid YAML falls back to treating
// the whole input as body.
func Parse(data []byte) (*Result, error) {
	var meta Meta
	rest, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	res := &Result{}
	switch {
	case err != nil:
		res.Body = string(data)
	default:
		res.Meta = meta
		res.Body = strings.TrimLeft(string(rest), "\r\n")
		res.HasFrontmatter = len(rest) != len(data)
	}
	res.Title = deriveTitle(res.Meta.Title, res.Body)
	return res, nil
}

// Entry converts parsed output into a content entry. slug and collection
// come from the file location; a frontmatter slug overrides the former.
func (r *Result) Entry(collection, slug string) models.Entry {
	m := r.Meta
	if m.Slug != "" {
		slug = m.Slug
	}
	e := models.Entry{
		ID:              collection + "/" + slug,
		Collection:      collection,
		Slug:            slug,
		Title:           r.Title,
		Description:     m.Description,
		Image:           m.Image,
		ImageAlt:        m.ImageAlt,
		Authors:         nonNil(m.Authors),
		Categories:      nonNil(m.Categories),
		Tags:            nonNil(m.Tags),
		Draft:           m.Draft,
		Complexity:      m.Complexity,
		AutoDescription: m.AutoDescription == nil || *m.AutoDescription,
		HideToc:         m.HideToc,
		Body:            r.Body,
		Priority:        m.Priority,
		Featured:        m.Featured,
		ExternalLink:    m.ExternalLink,
		Source:          m.Source,
	}
	if e.Complexity == 0 {
		e.Complexity = 1
	}
	if t, err := ParseDate(m.Date); err == nil {
		e.Date = t
	}
	return e
}

// Frontmatter returns the post-level metadata subset.
func (r *Result) Frontmatter() models.Frontmatter {
	return models.Frontmatter{
		Title:       r.Title,
		Description: r.Meta.Description,
		Date:        r.Meta.Date,
		Image:       r.Meta.Image,
		Authors:     nonNil(r.Meta.Authors),
		Categories:  nonNil(r.Meta.Categories),
		Tags:        nonNil(r.Meta.Tags),
		Draft:       r.Meta.Draft,
	}
}

// Render serialises frontmatter and body into a Markdown document.
func Render(fm models.Frontmatter, body string) ([]byte, error) {
	fm.Authors = nonNil(fm.Authors)
	fm.Categories = nonNil(fm.Categories)
	fm.Tags = nonNil(fm.Tags)

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	buf.WriteString("---\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts the date spellings found in frontmatter and the CMS.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("parser: empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parser: unrecognised date %q", s)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// deriveTitle returns the frontmatter title if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(title, body string) string {
	if title != "" {
		return title
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
