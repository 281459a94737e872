package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// maxDocumentXML bounds the decompressed body part.
const maxDocumentXML = 64 << 20

// extractDOCX reads word/document.xml and returns its paragraphs joined with
// newlines. Legacy binary .doc files are not zip archives and fail here.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open word archive: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("word archive has no document body")
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open document body: %w", err)
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(io.LimitReader(rc, maxDocumentXML))
	if err != nil {
		return "", fmt.Errorf("parse document body: %w", err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

// readParagraphs collects the text runs of each w:p element. Text boxes nest
// a w:p inside a run of the outer one, so open paragraphs are kept on a stack
// and each is emitted when it closes, inner before outer.
func readParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		open       []*strings.Builder
		inText     bool
	)

	top := func() *strings.Builder {
		if len(open) == 0 {
			return nil
		}
		return open[len(open)-1]
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText = true
			case "tab":
				if b := top(); b != nil {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if b := top(); b != nil {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if b := top(); b != nil {
					paragraphs = append(paragraphs, b.String())
					open = open[:len(open)-1]
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if b := top(); inText && b != nil {
				b.Write(t)
			}
		}
	}

	return paragraphs, nil
}
