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

const odfContentPath = "content.xml"

// extractOpenDocument extracts text from .odt, .ods and .odp bytes. All three are
// ZIPs with a content.xml whose <text:p> and <text:h> elements carry the text;
// each one becomes its own paragraph.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: not a zip: %w", err)
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == odfContentPath {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", odfContentPath)
	}
	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: open %s: %w", body.Name, err)
	}
	defer rc.Close()

	var (
		out   strings.Builder
		para  strings.Builder
		depth int
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("extract OpenDocument: parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p", "h":
				depth++
			case "tab":
				para.WriteByte('\t')
			case "s":
				para.WriteByte(' ')
			case "line-break":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local != "p" && t.Name.Local != "h" {
				continue
			}
			depth--
			if depth > 0 {
				continue
			}
			if line := strings.TrimSpace(para.String()); line != "" {
				out.WriteString(line)
				out.WriteString("\n\n")
			}
			para.Reset()
		case xml.CharData:
			if depth > 0 {
				para.Write(t)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}
