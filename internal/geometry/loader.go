// Package geometry loads block polygons from a zipped shapefile.
package geometry

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/concession-cli/internal/model"
)

// Options configures the geometry loader.
type Options struct {
	// ScratchDir is the parent of the per-call extraction directory.
	// Empty uses the system temp directory.
	ScratchDir string
	// NameField is the shapefile attribute holding the block name.
	NameField string
}

// DefaultOptions returns options reading the name from the "Nom" field.
func DefaultOptions() Options {
	return Options{NameField: model.ColName}
}

// Load reads the zip archive at path. See LoadBytes.
func Load(path string, opts Options) (model.FeatureSet, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return model.FeatureSet{}, model.NewLoadError(path, eris.Wrap(err, "geometry: open archive"))
	}
	defer r.Close() //nolint:errcheck

	return load(filepath.Base(path), &r.Reader, opts)
}

// LoadBytes extracts the zip archive in data to a private scratch directory,
// finds the first .shp file at any depth and parses all of its features.
// The scratch directory is removed before returning.
//
// Returns *model.NoGeometryFoundError when the archive holds no .shp file and
// *model.LoadError for any other failure.
func LoadBytes(name string, data []byte, opts Options) (model.FeatureSet, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return model.FeatureSet{}, model.NewLoadError(name, eris.Wrap(err, "geometry: open archive"))
	}
	return load(name, r, opts)
}

func load(name string, r *zip.Reader, opts Options) (model.FeatureSet, error) {
	log := zap.L().With(zap.String("component", "geometry.loader"), zap.String("archive", name))

	if opts.NameField == "" {
		opts.NameField = model.ColName
	}

	scratch, err := os.MkdirTemp(opts.ScratchDir, "concession-shapes-*")
	if err != nil {
		return model.FeatureSet{}, model.NewLoadError(name, eris.Wrap(err, "geometry: create scratch dir"))
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			log.Warn("geometry: failed to remove scratch dir", zap.String("dir", scratch), zap.Error(rmErr))
		}
	}()

	files, err := extractZIP(r, scratch)
	if err != nil {
		return model.FeatureSet{}, model.NewLoadError(name, err)
	}

	found, err := findShapefiles(scratch)
	if err != nil {
		return model.FeatureSet{}, model.NewLoadError(name, err)
	}
	if len(found) == 0 {
		return model.FeatureSet{}, &model.NoGeometryFoundError{Archive: name}
	}

	shpPath := found[0]
	rel, _ := filepath.Rel(scratch, shpPath)
	rel = filepath.ToSlash(rel)
	if len(found) > 1 {
		others := make([]string, 0, len(found)-1)
		for _, p := range found[1:] {
			o, _ := filepath.Rel(scratch, p)
			others = append(others, filepath.ToSlash(o))
		}
		log.Warn("geometry: archive holds several shapefiles, using the first found",
			zap.String("using", rel),
			zap.Strings("ignored", others),
		)
	}

	features, skipped, err := readShapefile(shpPath, opts.NameField)
	if err != nil {
		return model.FeatureSet{}, model.NewLoadError(name, err)
	}

	log.Debug("geometry: loaded",
		zap.Int("files", files),
		zap.String("shapefile", rel),
		zap.Int("features", len(features)),
		zap.Int("skipped", skipped),
	)

	return model.FeatureSet{Source: rel, Features: features, Skipped: skipped}, nil
}
