package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"apiregistry/internal/domain"

	"github.com/BurntSushi/toml"
)

//go:embed catalog.toml
var defaultCatalog string

type catalogFile struct {
	Services []domain.CatalogEntry `toml:"services"`
}

// Default returns the catalog compiled into the binary.
func Default() ([]domain.CatalogEntry, error) {
	return Parse(defaultCatalog)
}

// Load reads a TOML catalog from path, or the default catalog when path is empty.
func Load(path string) ([]domain.CatalogEntry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read catalog %s: %v", domain.ErrConfig, path, err)
	}
	entries, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Parse rejects keys the catalog format does not define.
func Parse(data string) ([]domain.CatalogEntry, error) {
	var file catalogFile
	meta, err := toml.Decode(data, &file)
	if err != nil {
		return nil, fmt.Errorf("%w: parse catalog: %v", domain.ErrConfig, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("%w: unknown catalog keys: %s", domain.ErrConfig, strings.Join(keys, ", "))
	}
	return file.Services, nil
}
