package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

type docType int

const (
	typeUnknown docType = iota
	typePDF
	typeOffice
)

const errorDetailMaxChars = 300

func getDocType(docPath string) docType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return typePDF
	case ".docx", ".odt", ".rtf", ".txt", ".md":
		return typeOffice
	default:
		return typeUnknown
	}
}

// SupportedExtension reports whether the converter can handle this file name.
// The upload endpoint uses it to reject unsupported formats before queueing.
func SupportedExtension(fileName string) bool {
	return getDocType(fileName) != typeUnknown
}

func extractText(path string, contentType docType) ([]rawPage, error) {
	switch contentType {
	case typePDF:
		return extractPDF(path)
	case typeOffice:
		return extractOfficeText(path)
	default:
		return nil, fmt.Errorf("unsupported content type")
	}
}

// pagesToMarkdown joins extracted pages under page-number headings. The
// chunker recognizes these headings and carries the page number onto every
// chunk of the section.
func pagesToMarkdown(pages []rawPage) string {
	var b strings.Builder
	for _, page := range pages {
		fmt.Fprintf(&b, "## Page %d\n\n%s\n\n", page.Number, page.Content)
	}
	return b.String()
}

// truncateDetail clips an error message before it lands on a status record:
// extraction errors can embed whole file paths and parser dumps.
func truncateDetail(detail string) string {
	runes := []rune(detail)
	if len(runes) <= errorDetailMaxChars {
		return detail
	}
	return string(runes[:errorDetailMaxChars]) + "..."
}
