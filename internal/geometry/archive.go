package geometry

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// extractZIP extracts every entry of r below destDir and returns the number
// of files written.
func extractZIP(r *zip.Reader, destDir string) (int, error) {
	var n int
	for _, f := range r.File {
		written, err := extractZIPEntry(f, destDir)
		if err != nil {
			return n, err
		}
		if written {
			n++
		}
	}
	return n, nil
}

// extractZIPEntry extracts a single entry. Directories are created but not
// counted.
func extractZIPEntry(f *zip.File, destDir string) (bool, error) {
	// Sanitize against zip slip
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return false, eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return false, eris.Wrap(err, "zip: create directory")
		}
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return false, eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return false, eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return false, eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return false, eris.Wrapf(err, "zip: write %s", f.Name)
	}

	return true, nil
}

// findShapefiles walks root and returns every .shp file in walk order.
// macOS resource forks (__MACOSX/, ._*) are ignored.
func findShapefiles(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "__MACOSX" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), "._") {
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".shp") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "geometry: walk archive")
	}
	return found, nil
}

// sidecar returns the path of the file next to shpPath with extension ext,
// matched case-insensitively. Returns "" when absent.
func sidecar(shpPath, ext string) string {
	dir := filepath.Dir(shpPath)
	base := strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		if strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), base) {
			return filepath.Join(dir, name)
		}
	}
	return ""
}

// normalizeSidecars renames the .dbf and .shx sidecars to the exact base
// name and lower-case extension that the shapefile reader looks for.
func normalizeSidecars(shpPath string) error {
	stem := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".dbf", ".shx"} {
		found := sidecar(shpPath, ext)
		want := stem + ext
		if found == "" || found == want {
			continue
		}
		if err := os.Rename(found, want); err != nil {
			return eris.Wrapf(err, "geometry: rename %s", filepath.Base(found))
		}
	}
	return nil
}
