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

const docxBodyPart = "word/document.xml"

// maxDocxPartSize bounds the decompressed body part.
const maxDocxPartSize = 64 << 20

// extractDOCX reads the main document part of an OOXML package and returns
// its paragraphs separated by newlines. Table cells are paragraphs too.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading DOCX: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("reading DOCX: %s not found", docxBodyPart)
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("reading DOCX: %w", err)
	}
	defer rc.Close()

	return docxText(io.LimitReader(rc, maxDocxPartSize))
}

// docxText walks WordprocessingML and collects w:t runs.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b         strings.Builder
		inText    bool
		inTabs    bool // w:tabs holds tab stop definitions, not tab characters
		paragraph bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing DOCX body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if paragraph {
					b.WriteByte('\n')
				}
				paragraph = true
			case "t":
				inText = true
			case "tabs":
				inTabs = true
			case "tab":
				if !inTabs {
					b.WriteByte('\t')
				}
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "tabs":
				inTabs = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
