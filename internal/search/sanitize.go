package search

import "regexp"

// Extracted page content can carry embedded images and data URIs that the
// model APIs reject as media. Strip them before the content is prompted.
var (
	markdownImageRE = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	dataURIRE       = regexp.MustCompile(`data:[a-zA-Z0-9/+.-]+;base64,[A-Za-z0-9+/=]+`)
)

func sanitizeContent(s string) string {
	s = markdownImageRE.ReplaceAllString(s, "")
	s = dataURIRE.ReplaceAllString(s, "")
	return s
}
