// Package extract turns uploaded documents into plain text for anonymization.
//
// Supported kinds are plain text (txt, md, csv), HTML, PDF and DOCX. Legacy
// Word (.doc) is recognized but rejected with ErrUnsupportedFormat.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/codes"

	letheotel "github.com/dativo-io/lethe/internal/otel"
)

var tracer = letheotel.Tracer("github.com/dativo-io/lethe/internal/extract")

var (
	// ErrUnsupportedFormat is returned for extensions Lethe cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrTooLarge is returned when a document exceeds the size limit.
	ErrTooLarge = errors.New("document exceeds size limit")
)

// Kind is a document format, named after its file extension.
type Kind string

// Document kinds.
const (
	KindText     Kind = "txt"
	KindMarkdown Kind = "md"
	KindCSV      Kind = "csv"
	KindHTML     Kind = "html"
	KindPDF      Kind = "pdf"
	KindDOCX     Kind = "docx"
	KindDOC      Kind = "doc"
)

// DefaultMaxMB is the size limit used when none is configured.
const DefaultMaxMB = 10

// SupportedKinds lists the kinds ExtractBytes can read, in display order.
func SupportedKinds() []Kind {
	return []Kind{KindText, KindMarkdown, KindCSV, KindHTML, KindPDF, KindDOCX}
}

// KindFromPath resolves the document kind from the file extension.
func KindFromPath(path string) (Kind, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "txt", "text":
		return KindText, nil
	case "md", "markdown":
		return KindMarkdown, nil
	case "csv":
		return KindCSV, nil
	case "html", "htm":
		return KindHTML, nil
	case "pdf":
		return KindPDF, nil
	case "docx":
		return KindDOCX, nil
	case "doc":
		return KindDOC, nil
	}
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, filepath.Base(path))
	}
	return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
}

// Extractor extracts text content from documents.
type Extractor struct {
	maxSize int64 // max document size in bytes
}

// NewExtractor creates an extractor with a size limit in megabytes.
// A non-positive limit selects DefaultMaxMB.
func NewExtractor(maxSizeMB int) *Extractor {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxMB
	}
	return &Extractor{
		maxSize: int64(maxSizeMB) * 1024 * 1024,
	}
}

// MaxSize returns the size limit in bytes.
func (e *Extractor) MaxSize() int64 { return e.maxSize }

// ExtractFile reads the document at path and extracts its text. The kind is
// taken from the extension.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	kind, err := KindFromPath(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file %s: %w", path, err)
	}
	if info.Size() > e.maxSize {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, info.Size(), e.maxSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file %s: %w", path, err)
	}
	return e.ExtractBytes(ctx, content, kind)
}

// ExtractBytes extracts text from an in-memory document of the given kind.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte, kind Kind) (string, error) {
	_, span := tracer.Start(ctx, "extract.document")
	defer span.End()
	span.SetAttributes(
		letheotel.AttrDocumentKind.String(string(kind)),
		letheotel.AttrDocumentBytes.Int(len(data)),
	)

	if int64(len(data)) > e.maxSize {
		span.SetStatus(codes.Error, "too large")
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), e.maxSize)
	}

	var (
		text string
		err  error
	)
	switch kind {
	case KindText, KindMarkdown, KindCSV:
		text = DecodeText(data)
	case KindHTML:
		text = extractHTML(DecodeText(data))
	case KindPDF:
		text, err = extractPDF(data)
	case KindDOCX:
		text, err = extractDOCX(data)
	case KindDOC:
		err = fmt.Errorf("%w: legacy .doc files must be converted to .docx", ErrUnsupportedFormat)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, kind)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return "", err
	}
	return text, nil
}
