package generate

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxTitleRunes       = 200
	MaxDescriptionRunes = 500
)

var (
	titleLabels       = []string{"title", "العنوان", "عنوان"}
	descriptionLabels = []string{"description", "الوصف", "وصف"}
)

// parseCompletion extracts the labeled title and description lines. Lines
// following a label without a label of their own continue that field.
func parseCompletion(text string) (title, description string) {
	var cur *string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, val, ok := splitLabel(line)
		switch {
		case ok && matchLabel(key, titleLabels):
			title, cur = val, &title
		case ok && matchLabel(key, descriptionLabels):
			description, cur = val, &description
		case cur != nil:
			*cur += " " + line
		}
	}
	return title, description
}

func splitLabel(line string) (key, val string, ok bool) {
	i := strings.IndexAny(line, ":：")
	if i < 0 {
		return "", "", false
	}
	_, w := utf8.DecodeRuneInString(line[i:])
	key = strings.Trim(line[:i], " *#_-`")
	return key, strings.TrimSpace(line[i+w:]), true
}

func matchLabel(key string, labels []string) bool {
	for _, l := range labels {
		if strings.EqualFold(key, l) {
			return true
		}
	}
	return false
}

// sanitize removes control characters and markup emphasis, collapses
// whitespace and truncates to max runes.
func sanitize(s string, limit int) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, "*\"'`«»“” ")
	return truncateRunes(s, limit)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit]))
}
