package models

// Source is one web source collected during research.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Content string `json:"content,omitempty"` // full extracted text, when available
	Query   string `json:"query,omitempty"`   // the search query that found it
}
