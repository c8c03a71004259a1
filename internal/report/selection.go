package report

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Choice is the set of columns picked for one section, in display order.
type Choice struct {
	Section SectionID `json:"section" validate:"required"`
	Columns []string  `json:"columns"`
}

// Selection is the ordered list of sections the caller wants to see.
type Selection []Choice

// DefaultSelection selects every column of every section.
func DefaultSelection(c Catalog) Selection {
	sel := make(Selection, 0, len(c.Sections))
	for _, s := range c.Sections {
		sel = append(sel, Choice{Section: s.ID, Columns: append([]string(nil), s.Columns...)})
	}
	return sel
}

// ParseSelection parses flags of the form "id" (every column of the
// section) or "id=colA,colB". Unknown section ids are an error.
func ParseSelection(c Catalog, items []string) (Selection, error) {
	if len(items) == 0 {
		return DefaultSelection(c), nil
	}

	sel := make(Selection, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, cols, hasCols := strings.Cut(item, "=")
		sec, ok := c.Lookup(SectionID(strings.TrimSpace(id)))
		if !ok {
			return nil, eris.Errorf("report: unknown section %q (known: %s)", id, joinIDs(c.IDs()))
		}

		choice := Choice{Section: sec.ID}
		if !hasCols {
			choice.Columns = append([]string(nil), sec.Columns...)
		} else {
			for _, col := range strings.Split(cols, ",") {
				if col = strings.TrimSpace(col); col != "" {
					choice.Columns = append(choice.Columns, col)
				}
			}
		}
		sel = append(sel, choice)
	}
	return sel, nil
}

// Resolve validates sel against the catalog and drops columns the section
// does not declare. Dropped names are returned for logging.
func (sel Selection) Resolve(c Catalog) (Selection, []string, error) {
	out := make(Selection, 0, len(sel))
	var dropped []string
	for _, ch := range sel {
		sec, ok := c.Lookup(ch.Section)
		if !ok {
			return nil, nil, eris.Errorf("report: unknown section %q (known: %s)", ch.Section, joinIDs(c.IDs()))
		}
		kept := Choice{Section: sec.ID}
		for _, col := range ch.Columns {
			if sec.Has(col) {
				kept.Columns = append(kept.Columns, col)
			} else {
				dropped = append(dropped, string(sec.ID)+"."+col)
			}
		}
		out = append(out, kept)
	}
	return out, dropped, nil
}

func joinIDs(ids []SectionID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, ", ")
}
