// Package source reads raw document content on behalf of the chat layer.
// The retrieval core itself never touches file pickers or paths.
package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mxbl/grimoire/internal/models"
)

// ReadFile loads a document from disk, extracting plain text from PDFs
// and passing other files through as-is. The document name is the base
// filename, which becomes the chunk source label on ingestion.
func ReadFile(path string) (models.SourceDocument, error) {
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := readPDF(path)
		if err != nil {
			return models.SourceDocument{}, err
		}
		return models.SourceDocument{Name: name, Content: text}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return models.SourceDocument{Name: name, Content: string(data)}, nil
}

func readPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("failed to read pdf text from %s: %w", path, err)
	}
	text := buf.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text extracted from %s", path)
	}
	return text, nil
}
