// Package export serializes report bundles to spreadsheet and word
// processing documents, in memory.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/concession-cli/internal/dates"
	"github.com/sells-group/concession-cli/internal/model"
)

// Format selects the output document type.
type Format string

// Supported formats.
const (
	FormatXLSX Format = "xlsx"
	FormatDOCX Format = "docx"
)

// Media types of the supported formats.
const (
	MediaTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Formats lists every supported format.
var Formats = []Format{FormatXLSX, FormatDOCX}

// ParseFormat resolves a case-insensitive format name. A leading dot is
// accepted so file extensions parse too.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatDOCX:
		return FormatDOCX, nil
	default:
		return "", eris.Errorf("export: unsupported format %q (want xlsx or docx)", s)
	}
}

// Payload is a serialized document.
type Payload struct {
	Data      []byte
	MediaType string
	Extension string
}

// Filename returns base with the payload extension.
func (p Payload) Filename(base string) string {
	return base + "." + p.Extension
}

// Write serializes bundle in the requested format.
func Write(bundle model.Bundle, format Format) (Payload, error) {
	switch format {
	case FormatXLSX:
		data, err := writeXLSX(bundle)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Data: data, MediaType: MediaTypeXLSX, Extension: string(FormatXLSX)}, nil
	case FormatDOCX:
		data, err := writeDOCX(bundle)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Data: data, MediaType: MediaTypeDOCX, Extension: string(FormatDOCX)}, nil
	default:
		return Payload{}, eris.Errorf("export: unsupported format %q", format)
	}
}

// cellText renders a projected value; nil renders empty.
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return dates.Format(t)
	default:
		return fmt.Sprint(t)
	}
}
