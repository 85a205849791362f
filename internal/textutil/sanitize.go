package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
)

// FallbackStem names the output video when sanitizing an archive name leaves
// nothing usable.
const FallbackStem = "output_video_sequence"

// OutputStem derives the output video base name from an archive path: the
// extension is dropped and every character outside letters, digits,
// underscore, whitespace, dot, and hyphen is removed. Whitespace is trimmed
// and an empty result falls back to FallbackStem so the encoder always has
// a target name.
func OutputStem(archivePath string) string {
	base := filepath.Base(archivePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	b.Grow(len(stem))
	for _, r := range stem {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-':
			b.WriteRune(r)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return FallbackStem
	}
	return out
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
