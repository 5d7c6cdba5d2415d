// Package export serialises a segment list into downloadable documents:
// an .xlsx workbook and a .pptx slide deck.
package export

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	spreadsheetSuffix = "_seo_structured_data.xlsx"
	slidesSuffix      = "_seo_presentation.pptx"
)

// Content types of the produced files.
const (
	SpreadsheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	SlidesContentType      = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// SafeName reduces domain to characters valid in file names on every
// common filesystem. Ordinary host names pass through unchanged.
func SafeName(domain string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(domain) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "site"
	}
	return name
}

// SpreadsheetFilename returns "{domain}_seo_structured_data.xlsx".
func SpreadsheetFilename(domain string) string {
	return SafeName(domain) + spreadsheetSuffix
}

// SlidesFilename returns "{domain}_seo_presentation.pptx".
func SlidesFilename(domain string) string {
	return SafeName(domain) + slidesSuffix
}

// saveAtomic writes via a temp file in dir and renames it into place.
func saveAtomic(dir, name string, write func(f *os.File) error) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
