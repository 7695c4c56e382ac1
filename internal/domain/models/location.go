package models

import (
	"github.com/gosimple/slug"
	"strings"
)

// NormalizeLocation folds a free-text place name so "Visby", " visby " and "VISBY!" compare equal.
// Letters are transliterated to ASCII, so "Tromsø" and "Tromso" match too.
func NormalizeLocation(name string) string {
	return strings.ReplaceAll(slug.Make(name), "-", "")
}
