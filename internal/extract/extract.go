// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tinote/tinote/internal/model"
)

// Sentinel errors for extraction.
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtractionFailed  = errors.New("document extraction failed")
)

// UnsupportedFormatError names the extension that could not be handled.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return "unsupported document format: missing extension"
	}
	return fmt.Sprintf("unsupported document format: %s", e.Extension)
}

// Is reports ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExtractFile classifies filename by extension and extracts its text.
func ExtractFile(data []byte, filename string) (string, error) {
	kind, ok := model.ClassifyDocument(filename)
	if !ok {
		return "", &UnsupportedFormatError{Extension: model.Extension(filename)}
	}
	return Extract(data, kind)
}

// Extract returns the text of a document of the given kind. A document that
// cannot be parsed, or that parses to no text, fails with ErrExtractionFailed.
func Extract(data []byte, kind model.DocumentKind) (string, error) {
	var (
		text string
		err  error
	)

	switch kind {
	case model.DocumentPDF:
		text, err = extractPDF(data)
	case model.DocumentWord:
		text, err = extractDOCX(data)
	case model.DocumentPlainText:
		text, err = decodeText(data)
	default:
		return "", &UnsupportedFormatError{Extension: kind.String()}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtractionFailed, kind, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s contains no text", ErrExtractionFailed, kind)
	}
	return text, nil
}

func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", errors.New("text is not valid UTF-8")
	}
	return string(data), nil
}

// Truncate cuts text to max runes and appends marker when it was longer.
// A non-positive max leaves text unchanged.
func Truncate(text string, max int, marker string) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + marker
}
