// internal/app/system/normalize/normalize.go
package normalize

import (
	"strings"

	"github.com/dalemusser/huddle/internal/app/system/htmlsanitize"
)

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name, strips any markup, and collapses runs of
// whitespace. Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(htmlsanitize.StripTags(s)), " ")
}

// Kind trims and lowercases a group kind.
func Kind(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
