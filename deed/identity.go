package deed

import (
	"path/filepath"
	"strings"
)

// DocumentIDFromFilename derives the stable document identifier from an
// input filename: the base name with its extension removed and internal
// whitespace collapsed to underscores. The same filename always yields
// the same identifier.
func DocumentIDFromFilename(name string) string {
	var base = filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	base = strings.TrimSpace(base)
	return strings.Join(strings.Fields(base), "_")
}

// IsPDF classifies an input path by extension.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
