package model

import "github.com/twpayne/go-geom"

// Feature is one block polygon read from the geometry archive.
type Feature struct {
	Name       string
	Geometry   geom.T
	Attributes map[string]string
}

// FeatureSet is the immutable result of one geometry load.
type FeatureSet struct {
	// Source is the shapefile path relative to the archive root.
	Source   string
	Features []Feature
	// Skipped counts null or malformed shapes that were not loaded.
	Skipped int
}

// Len returns the number of features.
func (fs FeatureSet) Len() int { return len(fs.Features) }
