// Package htmlsanitize removes markup from user-entered text such as
// group and account names.
package htmlsanitize

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// strict drops every element; script and style bodies are dropped too.
var strict = bluemonday.StrictPolicy()

// StripTags returns s with all HTML removed. Entities that the policy
// escapes are decoded again so plain text like "Tom & Jerry" survives.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(strict.Sanitize(s))
}
