package events

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag; the policy is safe for concurrent use.
var strict = bluemonday.StrictPolicy()

// maxSanitizePasses bounds the unescape/sanitize loop for nested encodings.
const maxSanitizePasses = 5

// Sanitize strips markup from free text supplied by external senders. Entity
// encoded markup is decoded and stripped as well, so the result is always
// bluemonday output: HTML-safe text with <, >, & and quotes escaped.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	out := strict.Sanitize(s)
	for range maxSanitizePasses {
		next := strict.Sanitize(html.UnescapeString(out))
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}
