package join

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection converts the joined pairs to GeoJSON features. Each
// feature carries the popup fields and a "tooltip" property holding the
// block name.
func (v View) FeatureCollection() *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(v.Pairs))}
	for i, p := range v.Pairs {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.Itoa(i),
			Geometry: p.Feature.Geometry,
			Properties: map[string]interface{}{
				"tooltip":        p.Feature.Name,
				"block":          p.Popup.Block,
				"company":        p.Popup.Company,
				"phase":          p.Popup.Phase,
				"signature_date": p.Popup.SignatureDate,
				"effective_date": p.Popup.EffectiveDate,
				"phase_start":    p.Popup.PhaseStart,
				"phase_end":      p.Popup.PhaseEnd,
				"comment":        p.Popup.Comment,
			},
		})
	}
	return fc
}

// GeoJSON encodes the view as a GeoJSON FeatureCollection.
func (v View) GeoJSON() ([]byte, error) {
	data, err := json.Marshal(v.FeatureCollection())
	if err != nil {
		return nil, eris.Wrap(err, "join: encode geojson")
	}
	return data, nil
}
