package sqlite

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
)

// SeedFile is the YAML layout accepted by Seed:
//
//	databases:
//	  - name: default
//	    templates: [GitHub Repository]
//	    elements:
//	      - name: cobra
//	        template: GitHub Repository
//	        attributes:
//	          Owner: spf13
//	          Repository: cobra
type SeedFile struct {
	Databases []SeedDatabase `yaml:"databases"`
}

type SeedDatabase struct {
	Name      string        `yaml:"name"`
	Templates []string      `yaml:"templates"`
	Elements  []SeedElement `yaml:"elements"`
}

type SeedElement struct {
	Name       string         `yaml:"name"`
	Template   string         `yaml:"template"`
	Attributes map[string]any `yaml:"attributes"`
}

// Seed imports a seed file into the store and returns the number of
// elements written. Existing elements get their attributes replaced.
func Seed(ctx context.Context, s *Store, r io.Reader) (int, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}

	n := 0
	for _, db := range f.Databases {
		if db.Name == "" {
			return n, fmt.Errorf("seed database without name")
		}
		dbID, err := s.EnsureDatabase(ctx, db.Name)
		if err != nil {
			return n, err
		}
		for _, tpl := range db.Templates {
			if _, err := s.EnsureTemplate(ctx, dbID, tpl); err != nil {
				return n, err
			}
		}
		for _, el := range db.Elements {
			if el.Name == "" || el.Template == "" {
				return n, fmt.Errorf("database %s: element needs name and template", db.Name)
			}
			attrs := make(map[string]asset.Value, len(el.Attributes))
			for k, raw := range el.Attributes {
				v, err := asset.FromAny(raw)
				if err != nil {
					return n, fmt.Errorf("element %s attribute %s: %w", el.Name, k, err)
				}
				attrs[k] = v
			}
			if _, err := s.PutElement(ctx, db.Name, el.Template, el.Name, attrs); err != nil {
				return n, err
			}
			n++
		}
		s.log.Info("seeded catalog database", zap.String("database", db.Name), zap.Int("elements", len(db.Elements)))
	}
	return n, nil
}
