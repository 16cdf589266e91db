package build

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
)

// ReadLocal returns the bytes of one local XML file.
func ReadLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.NotFound, "build.read", err)
		}
		return nil, apperr.Wrap(apperr.IOFailed, "build.read", err)
	}
	return data, nil
}

// WalkDirectory lists the XML files directly under dir, sorted
// lexicographically so batch order is deterministic. Both .xml and the
// .nxml extension PMC uses for bulk dumps are accepted.
func WalkDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.NotFound, "build.walk", err)
		}
		return nil, apperr.Wrap(apperr.IOFailed, "build.walk", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".xml" || ext == ".nxml" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// pmcidFromFilename pulls a numeric PMCID out of names like
// "PMC7181753.xml"; returns "" when the name has no usable digits.
func pmcidFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if len(base) > 3 && strings.EqualFold(base[:3], "PMC") {
		base = base[3:]
	}
	for _, r := range base {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if base == "" {
		return ""
	}
	return base
}
