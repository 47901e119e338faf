package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
	"github.com/raggio-engine/raggio/internal/config"
	"github.com/raggio-engine/raggio/internal/domain/docModel"
)

type docType int

const (
	typeUnknown docType = iota
	typePDF
	typeOffice
	typePlain
)

func getDocType(docPath string) docType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return typePDF
	case ".docx", ".rtf", ".odt":
		return typeOffice
	case ".txt", ".md", ".markdown":
		return typePlain
	default:
		return typeUnknown
	}
}

// ExtractFile pulls the plain text out of an uploaded document.
func ExtractFile(path string) (string, error) {
	switch getDocType(path) {
	case typePDF:
		return extractPDF(path)
	case typeOffice:
		return extractOffice(path)
	case typePlain:
		return extractPlain(path)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", docModel.ErrValidation, filepath.Ext(path))
	}
}

func extractPDF(path string) (string, error) {
	logger.Debug("extractPDF", "attempting extraction", path)
	f, err := pdf.Open(path)
	if err != nil {
		logger.Error("failed opening of pdf file", "error", err)
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// keep going, a single broken page should not sink the document
			logger.Error("error parsing page content", "page", i, "error", err)
			continue
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n\n"), nil
}

// extractOffice reads a .odt, .docx or .rtf file and returns the content as a string
func extractOffice(path string) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		logger.Error("error extracting content from doc", "error", err)
		return "", fmt.Errorf("failed to extract document: %w", err)
	}
	return text, nil
}

func extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(config.ExtractionTimeout):
		logger.Error("pageExtract", "timeout", config.ExtractionTimeout)
		return "", errors.New("timeout")
	}
}
