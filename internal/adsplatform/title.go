package adsplatform

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// TitleKey normalises a media name for library matching: NFC, case folded,
// surrounding whitespace trimmed. Two names with the same key are the same asset.
func TitleKey(title string) string {
	return strings.TrimSpace(cases.Fold().String(norm.NFC.String(title)))
}
