package export

import (
	"bytes"
	"embed"
	"io/fs"

	docx "github.com/fumiama/go-docx"
	"github.com/rotisserie/eris"

	"github.com/sells-group/concession-cli/internal/model"
)

// NoDataText is written in place of a section table without rows or columns.
const NoDataText = "Aucune donnée disponible."

const (
	headingStyle = "Heading2"
	tableStyle   = "TableGrid"
	stylesPart   = "word/styles.xml"

	// Usable A4 width with 2cm margins, in twentieths of a point.
	textWidth  = 9638
	pageWidth  = 11906
	pageHeight = 16838
	pageMargin = 1134
)

//go:embed styles.xml
var stylesFS embed.FS

// reportTemplate serves the library's default package parts with our
// styles part in place of its own, so Heading2 and TableGrid resolve.
type reportTemplate struct{}

func (reportTemplate) Open(name string) (fs.File, error) {
	if name == stylesPart {
		return stylesFS.Open("styles.xml")
	}
	return docx.TemplateXMLFS.Open("xml/default/" + name)
}

func addTable(doc *docx.Docx, tbl model.Table) {
	widths := make([]int64, len(tbl.Columns))
	for i := range widths {
		widths[i] = int64(textWidth / len(tbl.Columns))
	}
	t := doc.AddTableTwips(make([]int64, len(tbl.Records)+1), widths, 0, nil)
	t.TableProperties.Style = &docx.WTableStyle{Val: tableStyle}

	for c, col := range tbl.Columns {
		t.TableRows[0].TableCells[c].AddParagraph().AddText(col).Bold()
	}
	for r, rec := range tbl.Records {
		for c, col := range tbl.Columns {
			p := t.TableRows[r+1].TableCells[c].AddParagraph()
			if text := cellText(rec[col]); text != "" {
				p.AddText(text)
			}
		}
	}
}

// writeDOCX renders per section a Heading2 paragraph with the raw title,
// then a grid table or the no-data paragraph, then a blank paragraph.
func writeDOCX(bundle model.Bundle) ([]byte, error) {
	doc := docx.New().UseTemplate("", docx.DefaultTemplateFilesList, reportTemplate{})

	for _, sec := range bundle {
		doc.AddParagraph().Style(headingStyle).AddText(sec.Title)
		if sec.Table.Empty() {
			doc.AddParagraph().AddText(NoDataText)
		} else {
			addTable(doc, sec.Table)
		}
		doc.AddParagraph()
	}

	doc.Document.Body.Items = append(doc.Document.Body.Items, &docx.SectPr{
		PgSz:  &docx.PgSz{W: pageWidth, H: pageHeight},
		PgMar: &docx.PgMar{Top: pageMargin, Right: pageMargin, Bottom: pageMargin, Left: pageMargin},
	})

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, eris.Wrap(err, "export: write docx")
	}
	return buf.Bytes(), nil
}
