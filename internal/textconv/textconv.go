// Package textconv holds the string helpers used when presenting content:
// slugs, Markdown rendering, plain-text excerpts and label humanising.
package textconv

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)

	tagRe        = regexp.MustCompile(`</?[^>]+(>|$)`)
	blankLinesRe = regexp.MustCompile(`[\r\n]\s*[\r\n]`)
	wordStartRe  = regexp.MustCompile(`(^\w)|(\s\w)`)
	paragraphRe  = regexp.MustCompile(`^<p>(.*)</p>\n?$`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", `"`,
		"&#39;", "'",
	)

	// Cut points in preference order.
	truncatePoints = []*regexp.Regexp{
		regexp.MustCompile(`[。！？]`),
		regexp.MustCompile(`[、，]`),
		regexp.MustCompile(`[；：]`),
		regexp.MustCompile(`[．]`),
		regexp.MustCompile(`\s+`),
	}
)

// Slugify converts s into a URL slug. It returns "" when nothing usable
// remains.
func Slugify(s string) string {
	out, err := slug.Normalize(s)
	if err != nil {
		return ""
	}
	return out
}

// IsSlug reports whether s is already a normalised slug.
func IsSlug(s string) bool {
	return slug.IsValid(s)
}

// Markdownify renders Markdown to HTML. With block=false a single wrapping
// paragraph is removed so the result can be embedded inline.
func Markdownify(content string, block bool) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return content
	}
	out := buf.String()
	if !block {
		if m := paragraphRe.FindStringSubmatch(out); m != nil && !strings.Contains(m[1], "<p>") {
			return m[1]
		}
		return strings.TrimRight(out, "\n")
	}
	return out
}

// Plainify renders Markdown and strips it down to text.
func Plainify(content string) string {
	html := Markdownify(content, true)
	text := tagRe.ReplaceAllString(html, "")
	text = blankLinesRe.ReplaceAllString(text, "")
	return entityReplacer.Replace(text)
}

// SmartTruncate returns a plain-text excerpt of at most maxLength runes,
// preferring to cut after sentence punctuation and never mid-word when
// most of the budget is used.
func SmartTruncate(content string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 200
	}
	plain := []rune(Plainify(content))
	if len(plain) <= maxLength {
		return strings.TrimSpace(string(plain))
	}

	truncated := string(plain[:maxLength])
	for _, re := range truncatePoints {
		locs := re.FindAllStringIndex(truncated, -1)
		if len(locs) == 0 {
			continue
		}
		last := locs[len(locs)-1]
		// Position in runes of the match start.
		runeIdx := utf8.RuneCountInString(truncated[:last[0]])
		if runeIdx < maxLength-10 {
			truncated = string(plain[:runeIdx+1])
			break
		}
	}

	if utf8.RuneCountInString(truncated) < len(plain) {
		if i := strings.LastIndex(truncated, " "); i >= 0 && utf8.RuneCountInString(truncated[:i]) > maxLength*8/10 {
			truncated = truncated[:i]
		}
	}
	return strings.TrimSpace(truncated)
}

// UpperHumanize turns "soil-health" into "Soil Health".
func UpperHumanize(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), "-", " ")
	return wordStartRe.ReplaceAllStringFunc(s, strings.ToUpper)
}
