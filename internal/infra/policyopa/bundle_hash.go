package policyopa

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ComputeBundleHashFromPath hashes the rego and data files under bundlePath
// in path order, so the same bundle content always yields the same hash.
func ComputeBundleHashFromPath(bundlePath string) (string, error) {
	return ComputeBundleHashFromFS(os.DirFS(bundlePath), ".")
}

func ComputeBundleHashFromFS(fsys fs.FS, root string) (string, error) {
	var lines []string
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." {
			return nil
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if strings.HasPrefix(base, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") || !isPolicyFile(base) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		lines = append(lines, filepath.ToSlash(path)+" "+sha256Hex(data))
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(lines)
	return sha256Hex([]byte(strings.Join(lines, "\n"))), nil
}

func isPolicyFile(base string) bool {
	return base == "data.json" || strings.HasSuffix(base, ".rego")
}
