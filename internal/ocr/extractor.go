// Package ocr turns submitted document bytes into text for the document validator.
// The built-in extractor reads plain text and HTML; scanned images and PDFs need
// an external OCR service behind the same interface.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/claimlens/internal/extract"
	"github.com/ppiankov/claimlens/internal/model"
	"golang.org/x/net/html"
)

// Result is the extracted text with the extractor's confidence in [0,1]
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Extractor returns the text of a document
type Extractor interface {
	Extract(ctx context.Context, content []byte, filename string) (Result, error)
}

// Extraction methods
const (
	MethodPlain = "plain"
	MethodHTML  = "html"
)

const (
	plainConfidence = 1.0
	htmlConfidence  = 0.95
)

// TextExtractor handles UTF-8 plain text and HTML documents
type TextExtractor struct{}

// NewTextExtractor creates the built-in extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract sniffs the media type and extracts text. Other media types
// return model.ErrUnsupportedMedia.
func (e *TextExtractor) Extract(ctx context.Context, content []byte, filename string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return Result{}, fmt.Errorf("extract %s: %w", filename, model.ErrEmptyInput)
	}

	switch mediaType := DetectMediaType(content, filename); mediaType {
	case "text/html":
		return extractHTML(content)
	case "text/plain":
		if !utf8.Valid(content) {
			return Result{}, fmt.Errorf("extract %s: invalid UTF-8: %w", filename, model.ErrUnsupportedMedia)
		}
		text := strings.TrimSpace(strings.ReplaceAll(string(content), "\r\n", "\n"))
		return Result{Text: text, Confidence: plainConfidence, Method: MethodPlain}, nil
	default:
		return Result{}, fmt.Errorf("extract %s (%s): %w", filename, mediaType, model.ErrUnsupportedMedia)
	}
}

func extractHTML(content []byte) (Result, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	return Result{Text: extract.VisibleText(doc), Confidence: htmlConfidence, Method: MethodHTML}, nil
}

// DetectMediaType returns the bare media type of a document. The filename
// extension wins for text formats that sniffing cannot tell apart.
func DetectMediaType(content []byte, filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm", ".xhtml":
		return "text/html"
	case ".txt", ".text", ".csv", ".md":
		return "text/plain"
	}

	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(content))
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}
