package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/docrelay/docrelay/internal/faults"
)

// docx files are zip containers; the body text lives in word/document.xml.
const docxDocumentEntry = "word/document.xml"

// TextFromDocx reads the body text of a .docx file. Paragraphs become
// newline-separated lines so label-per-line field patterns keep working.
func TextFromDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w: %v", path, faults.ErrMalformedInput, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxDocumentEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open docx entry %s: %w", path, err)
		}
		defer rc.Close()
		return textFromDocumentXML(rc)
	}
	return "", fmt.Errorf("docx %s has no %s: %w", path, docxDocumentEntry, faults.ErrMalformedInput)
}

// textFromDocumentXML walks the WordprocessingML stream collecting text runs.
// Paragraph ends (w:p), tabs (w:tab) and breaks (w:br, w:cr) are mapped onto
// plain whitespace.
func textFromDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document xml: %w: %v", faults.ErrMalformedInput, err)
		}

		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			switch t.Name.Local {
			case "tab":
				b.WriteByte(' ')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}
