package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayTitle turns an archive path into a human-readable title for logs
// and tables: the extension is dropped, separator runs collapse to single
// spaces, and the result is title-cased. An unusable name yields
// "Untitled Archive".
func DisplayTitle(archivePath string) string {
	if archivePath == "" {
		return "Untitled Archive"
	}
	base := filepath.Base(archivePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled Archive"
	}
	return cases.Title(language.Und).String(title)
}
