// Package scanner discovers importable statement files in a directory.
package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fintally/fintally/internal/registry"
)

// statementExts are the extensions worth probing. Everything else in an
// exports directory (PDFs, screenshots) is skipped without opening.
var statementExts = map[string]bool{
	".csv": true,
	".ofx": true,
	".qfx": true,
}

// File is one discovered statement file.
type File struct {
	Path   string
	Parser string // parser name, or "" when no parser recognizes it
}

// Scan walks dir recursively and probes each candidate file against the
// registry. Results are sorted by path so batch imports are deterministic.
func Scan(dir string, reg *registry.Registry) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !statementExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		f := File{Path: path}
		if p, err := reg.Detect(path); err == nil {
			f.Parser = p.Name()
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Recognized filters scan results down to files some parser claims.
func Recognized(files []File) []File {
	var out []File
	for _, f := range files {
		if f.Parser != "" {
			out = append(out, f)
		}
	}
	return out
}
