// Package loader turns resume files into plain text segments.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize is the upload ceiling applied before loading.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// Format is a supported document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ErrFileTooLarge is returned by CheckSize.
var ErrFileTooLarge = errors.New("file exceeds the size limit")

// UnsupportedFormatError reports an extension the loader does not read.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "unsupported file type: no extension"
	}
	return fmt.Sprintf("unsupported file type: %s", e.Ext)
}

// LoadError wraps any failure while reading a supported document.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("error loading document %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Detect maps a file name to its format by extension, ignoring case.
func Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	default:
		return "", &UnsupportedFormatError{Ext: ext}
	}
}

// CheckSize rejects inputs above max. A max of zero or less disables the check.
func CheckSize(size, max int64) error {
	if max > 0 && size > max {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, size, max)
	}
	return nil
}

// Loader reads documents from the local filesystem.
type Loader struct {
	Logger *slog.Logger
}

// New returns a Loader with default settings.
func New() *Loader {
	return &Loader{Logger: slog.Default()}
}

// Load returns the document's text as ordered segments: one per PDF page,
// one for a DOCX body.
func (l *Loader) Load(ctx context.Context, path string) ([]string, error) {
	format, err := Detect(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var segments []string
	switch format {
	case FormatPDF:
		segments, err = l.loadPDF(ctx, path)
	case FormatDOCX:
		segments, err = loadDOCX(path)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	l.logger().Debug("Document loaded.", "path", path, "format", string(format), "segments", len(segments))
	return segments, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Join concatenates segments into the text handed to the pipeline.
func Join(segments []string) string {
	return strings.Join(segments, "\n")
}
