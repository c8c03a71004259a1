package table

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/concession-cli/internal/textenc"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a delimited text table whose first row is the header.
// A zero delimiter is sniffed from the header line (',' or ';').
func readCSV(data []byte, delimiter rune) (grid, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = textenc.DecodeBytes(data, nil)

	if delimiter == 0 {
		delimiter = sniffDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow ragged rows

	var g grid
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return grid{}, eris.Wrap(err, "csv: read row")
		}

		if first {
			first = false
			g.header = normalizeHeader(record)
			continue
		}

		cells := make([]any, len(record))
		for i, field := range record {
			cells[i] = field
		}
		g.rows = append(g.rows, cells)
	}

	if first {
		return grid{}, eris.New("csv: no header row")
	}

	return g, nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, which is what French-locale spreadsheet exports produce.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
