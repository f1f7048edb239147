// Package filetype maps MIME types to display categories and formats sizes
// for presentation.
package filetype

import (
	"strings"
)

// Category is the display category of a file, used to pick an icon.
type Category string

// Categories returned by Classify. Every input maps to exactly one of these.
const (
	Image       Category = "image"
	PDF         Category = "pdf"
	Text        Category = "text"
	Spreadsheet Category = "spreadsheet"
	Code        Category = "code"
	Archive     Category = "archive"
	Default     Category = "default"
)

// Categories lists every category in classification priority order.
var Categories = []Category{Image, PDF, Text, Spreadsheet, Archive, Code, Default}

// rule is one entry of the ordered classification table.
type rule struct {
	name     string
	match    func(mime string) bool
	category Category
}

func prefix(p string) func(string) bool {
	return func(m string) bool { return strings.HasPrefix(m, p) }
}

func exact(s string) func(string) bool {
	return func(m string) bool { return m == s }
}

func containsAny(subs ...string) func(string) bool {
	return func(m string) bool {
		for _, s := range subs {
			if strings.Contains(m, s) {
				return true
			}
		}
		return false
	}
}

// rules are evaluated first-match-wins. text/ precedes the code heuristics,
// so text/x-python classifies as text.
var rules = []rule{
	{"image prefix", prefix("image/"), Image},
	{"pdf", exact("application/pdf"), PDF},
	{"text prefix", prefix("text/"), Text},
	{"spreadsheet", containsAny("spreadsheet", "excel"), Spreadsheet},
	{"archive", containsAny("zip", "rar", "tar", "7z"), Archive},
	{"code", containsAny(
		"python", "javascript", "typescript", "java", "c++", "c-header",
		"go", "rust", "ruby", "php", "shellscript",
	), Code},
}

// Classify returns the display category for a MIME type. Parameters such as
// charset are ignored and matching is case-insensitive. Unknown or empty
// input yields Default.
func Classify(mime string) Category {
	m := normalize(mime)
	if m == "" {
		return Default
	}
	for _, r := range rules {
		if r.match(m) {
			return r.category
		}
	}
	return Default
}

// normalize lowercases a MIME type and strips its parameters.
func normalize(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// Label returns a human readable name for the category.
func (c Category) Label() string {
	switch c {
	case Image:
		return "Image"
	case PDF:
		return "PDF"
	case Text:
		return "Text"
	case Spreadsheet:
		return "Spreadsheet"
	case Code:
		return "Code"
	case Archive:
		return "Archive"
	default:
		return "File"
	}
}

// Icon returns a short glyph for terminal rendering.
func (c Category) Icon() string {
	switch c {
	case Image:
		return "IMG"
	case PDF:
		return "PDF"
	case Text:
		return "TXT"
	case Spreadsheet:
		return "XLS"
	case Code:
		return "</>"
	case Archive:
		return "ZIP"
	default:
		return "---"
	}
}
