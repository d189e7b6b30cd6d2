package session

import (
	"strings"

	"github.com/rivo/uniseg"
)

const (
	titleMaxGraphemes = 40
	titleMinTokens    = 4
	titleEllipsis     = "…"
)

// DeriveTitle computes a session label from its first user input. Inputs with
// three or fewer whitespace-separated tokens yield no title, which keeps
// trivial sessions out of listings. Titles longer than 40 characters are cut
// at a grapheme boundary and marked with an ellipsis.
func DeriveTitle(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if len(strings.Fields(trimmed)) < titleMinTokens {
		return "", false
	}

	var (
		builder strings.Builder
		count   int
	)
	graphemes := uniseg.NewGraphemes(trimmed)
	for graphemes.Next() {
		if count == titleMaxGraphemes {
			return builder.String() + titleEllipsis, true
		}
		builder.WriteString(graphemes.Str())
		count++
	}
	return builder.String(), true
}
