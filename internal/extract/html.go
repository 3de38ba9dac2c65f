package extract

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// extractHTML strips every tag, and the bodies of script and style elements,
// then unescapes entities so names like "João D&#39;Ávila" match detection.
func extractHTML(src string) string {
	return html.UnescapeString(strictPolicy.Sanitize(src))
}
