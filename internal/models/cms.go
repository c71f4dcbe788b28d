package models

// CMSPost is the document stored for a blog or news post in the document
// store. Dates are kept as strings the way editors submit them.
type CMSPost struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Body        string   `json:"body"`
	Date        string   `json:"date"`
	Image       string   `json:"image,omitempty"`
	Authors     []string `json:"authors"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	Draft       bool     `json:"draft"`
	Slug        string   `json:"slug"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`

	Priority     int    `json:"priority,omitempty"`
	Featured     bool   `json:"featured,omitempty"`
	ExternalLink string `json:"externalLink,omitempty"`
	Source       string `json:"source,omitempty"`
	Views        int    `json:"views,omitempty"`
	PublishedAt  string `json:"publishedAt,omitempty"`
}

// Page is a singleton CMS document such as the about or home page.
type Page map[string]any
