package geometry

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/sells-group/concession-cli/internal/model"
	"github.com/sells-group/concession-cli/internal/textenc"
)

// readShapefile parses every feature of the shapefile at shpPath. nameField
// selects the attribute holding the block name (case-insensitive).
func readShapefile(shpPath, nameField string) ([]model.Feature, int, error) {
	if err := normalizeSidecars(shpPath); err != nil {
		return nil, 0, err
	}
	if sidecar(shpPath, ".dbf") == "" {
		return nil, 0, eris.Errorf("geometry: %s has no .dbf attribute file", shpPath)
	}

	enc := codePage(shpPath)

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "geometry: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name list and locate the name field.
	fields := reader.Fields()
	names := make([]string, len(fields))
	nameIdx := -1
	for i, f := range fields {
		names[i] = textenc.Normalize(textenc.Decode(strings.TrimRight(f.String(), "\x00"), enc))
		if nameIdx < 0 && strings.EqualFold(names[i], nameField) {
			nameIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, 0, eris.Errorf("geometry: name field %q not found (fields: %s)", nameField, strings.Join(names, ", "))
	}

	var (
		features []model.Feature
		skipped  int
	)
	for reader.Next() {
		_, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			attrs[name] = strings.TrimSpace(textenc.Decode(val, enc))
		}

		features = append(features, model.Feature{
			Name:       attrs[names[nameIdx]],
			Geometry:   g,
			Attributes: attrs,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "geometry: read shapes")
	}

	if skipped > 0 {
		zap.L().Debug("geometry: skipped shapefile records",
			zap.String("shapefile", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return features, skipped, nil
}

// codePage reads the .cpg sidecar. Returns nil (UTF-8 with Windows-1252
// fallback) when the sidecar is absent or unknown.
func codePage(shpPath string) encoding.Encoding {
	path := sidecar(shpPath, ".cpg")
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	enc, ok := textenc.ForCodePage(string(data))
	if !ok {
		zap.L().Warn("geometry: unknown code page, assuming UTF-8",
			zap.String("cpg", strings.TrimSpace(string(data))),
		)
		return nil
	}
	return enc
}
