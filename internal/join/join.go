// Package join pairs block geometries with their attribute records under the
// active company filter and builds the per-feature display payload.
package join

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/concession-cli/internal/dates"
	"github.com/sells-group/concession-cli/internal/model"
)

// AllCompanies is the filter value that keeps every record.
const AllCompanies = "Tous"

// Popup is the display payload of one joined block.
type Popup struct {
	Block         string `json:"block"`
	Company       string `json:"company"`
	Phase         string `json:"phase"`
	SignatureDate string `json:"signature_date"`
	EffectiveDate string `json:"effective_date"`
	PhaseStart    string `json:"phase_start"`
	PhaseEnd      string `json:"phase_end"`
	Comment       string `json:"comment"`
}

// Pair is a feature joined with the first record carrying its name.
type Pair struct {
	Feature model.Feature
	Record  model.Record
	Popup   Popup
}

// View is the result of one join. It is derived data and never cached.
type View struct {
	// Company is the filter the view was built with.
	Company string
	// Records are the records kept by the filter, in table order.
	Records []model.Record
	// Names are the distinct block names of Records, in first-seen order.
	Names []string
	// Pairs holds one entry per joined feature, in feature order.
	Pairs []Pair
	// Unmatched counts loaded features whose name is not among Names.
	Unmatched int

	center    [2]float64
	hasCenter bool
}

// Empty reports that no feature survived the join. This is a valid state
// the caller renders as an informational message (model.ErrJoinEmpty).
func (v View) Empty() bool { return len(v.Pairs) == 0 }

// Center returns the map centre computed over every loaded feature. ok is
// false when no feature had a usable geometry.
func (v View) Center() (lon, lat float64, ok bool) {
	return v.center[0], v.center[1], v.hasCenter
}

// IsAll reports whether company selects every record.
func IsAll(company string) bool {
	c := strings.TrimSpace(company)
	return c == "" || c == AllCompanies
}

// FilterRecords returns the records of tbl whose company column equals
// company exactly. IsAll(company) keeps everything.
func FilterRecords(tbl model.Table, schema model.Schema, company string) []model.Record {
	if IsAll(company) {
		return append([]model.Record(nil), tbl.Records...)
	}
	var out []model.Record
	for _, r := range tbl.Records {
		if r.Text(schema.CompanyColumn) == company {
			out = append(out, r)
		}
	}
	return out
}

// FilterTable is FilterRecords keeping the table schema.
func FilterTable(tbl model.Table, schema model.Schema, company string) model.Table {
	return model.Table{Columns: tbl.Columns, Records: FilterRecords(tbl, schema, company)}
}

// Build joins features against the records of tbl kept by company.
//
// A feature is kept when its name equals the name of a kept record. Each
// name is emitted once, for its first feature, and paired with the first
// record of that name. Records without geometry only appear in Records.
func Build(tbl model.Table, features model.FeatureSet, schema model.Schema, company string) View {
	log := zap.L().With(zap.String("component", "join"))

	v := View{
		Company: company,
		Records: FilterRecords(tbl, schema, company),
	}

	first := make(map[string]model.Record, len(v.Records))
	for _, r := range v.Records {
		name := r.Text(schema.NameColumn)
		if name == "" {
			continue
		}
		if _, seen := first[name]; seen {
			continue
		}
		first[name] = r
		v.Names = append(v.Names, name)
	}

	emitted := make(map[string]bool, len(first))
	var duplicates int
	for _, f := range features.Features {
		rec, ok := first[f.Name]
		if !ok {
			v.Unmatched++
			continue
		}
		if emitted[f.Name] {
			duplicates++
			continue
		}
		emitted[f.Name] = true
		v.Pairs = append(v.Pairs, Pair{
			Feature: f,
			Record:  rec,
			Popup:   NewPopup(rec, schema),
		})
	}

	if c, ok := meanCentroid(features.Features); ok {
		v.center, v.hasCenter = c, true
	}

	log.Debug("join: built view",
		zap.String("company", company),
		zap.Int("records", len(v.Records)),
		zap.Int("features", features.Len()),
		zap.Int("joined", len(v.Pairs)),
		zap.Int("unmatched", v.Unmatched),
		zap.Int("duplicate_features", duplicates),
	)
	if v.Empty() {
		log.Info("join: "+model.ErrJoinEmpty.Error(), zap.String("company", company))
	}

	return v
}

// NewPopup builds the display payload of rec. Every field falls back to
// dates.Placeholder when absent.
func NewPopup(rec model.Record, schema model.Schema) Popup {
	return Popup{
		Block:         text(rec, schema.NameColumn),
		Company:       text(rec, schema.CompanyColumn),
		Phase:         text(rec, schema.PhaseColumn),
		SignatureDate: dates.FormatValue(rec[schema.SignatureColumn]),
		EffectiveDate: dates.FormatValue(rec[schema.EffectiveColumn]),
		PhaseStart:    dates.FormatValue(rec[schema.PhaseStartColumn]),
		PhaseEnd:      dates.FormatValue(rec[schema.PhaseEndColumn]),
		Comment:       text(rec, schema.CommentColumn),
	}
}

func text(rec model.Record, col string) string {
	s := strings.TrimSpace(rec.Text(col))
	if s == "" {
		return dates.Placeholder
	}
	return s
}
