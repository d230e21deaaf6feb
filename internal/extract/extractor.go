// Package extract turns uploaded regulation files into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions that have no extractor.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// SupportedExtensions lists the extensions ExtractBytes understands.
var SupportedExtensions = []string{".pdf", ".docx", ".xlsx", ".odt", ".ods", ".odp", ".md", ".markdown", ".txt", ""}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractNamed extracts text from content using the extension of the display name.
// Names without an extension are treated as plain text.
func (e *Extractor) ExtractNamed(name string, content []byte) (string, error) {
	return e.ExtractBytes(content, nameExt(name))
}

// nameExt is filepath.Ext, except that a suffix that does not look like a file
// extension ("Law No. 3 of 2024", "Perpres_No.16_2018") is part of the title.
// An extension starts with a letter and holds only ASCII letters and digits.
func nameExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		return ""
	}
	for i, r := range ext[1:] {
		letter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		digit := r >= '0' && r <= '9'
		if !letter && (i == 0 || !digit) {
			return ""
		}
	}
	return ext
}

// ExtractBytes extracts text from content based on ext (with leading dot, any case).
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".odt", ".ods", ".odp":
		return extractOpenDocument(content)
	case ".md", ".markdown":
		return extractMarkdown(content)
	case ".txt", "":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Supported reports whether a file name has an extension ExtractBytes understands.
func Supported(name string) bool {
	ext := strings.ToLower(nameExt(name))
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}
