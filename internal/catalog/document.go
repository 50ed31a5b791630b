package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var errNotInterfaceDocument = errors.New("document has no swagger or openapi field")

type interfaceDocument struct {
	Swagger string `yaml:"swagger"`
	OpenAPI string `yaml:"openapi"`
	Info    struct {
		Version string `yaml:"version"`
	} `yaml:"info"`
}

// DocumentVerifier checks that each catalog path points at a readable
// Swagger or OpenAPI document, YAML or JSON.
type DocumentVerifier struct {
	root string
}

func NewDocumentVerifier(root string) *DocumentVerifier {
	return &DocumentVerifier{root: root}
}

// Verify skips remote documents; only local paths are read.
func (v *DocumentVerifier) Verify(ctx context.Context, documentPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.Contains(documentPath, "://") {
		return nil
	}
	path := documentPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	return checkDocument(data)
}

func checkDocument(data []byte) error {
	var doc interfaceDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if strings.TrimSpace(doc.Swagger) == "" && strings.TrimSpace(doc.OpenAPI) == "" {
		return errNotInterfaceDocument
	}
	version := strings.TrimSpace(doc.Info.Version)
	if version == "" {
		return errors.New("document info.version is missing")
	}
	parts := strings.Split(version, ".")
	if len(parts) > 3 {
		return fmt.Errorf("document info.version %q has more than 3 components", version)
	}
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("document info.version %q has an empty component", version)
		}
	}
	return nil
}
