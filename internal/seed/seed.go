// Package seed holds the normative texts indexed before the document library,
// so the assistant can answer the most common questions on a fresh install.
package seed

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

//go:embed documenti.yaml
var builtin []byte

type dataset struct {
	Documents []entry `yaml:"documents"`
}

type entry struct {
	Name string `yaml:"name"`
	Text string `yaml:"text"`
}

// Documents returns the built-in seed dataset.
func Documents() ([]domain.SourceDocument, error) {
	return Parse(builtin)
}

// Parse decodes a seed dataset. Entries need a name and a non-blank text;
// names must be unique so citations stay unambiguous.
func Parse(raw []byte) ([]domain.SourceDocument, error) {
	var ds dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse seed dataset", err)
	}

	seen := make(map[string]struct{}, len(ds.Documents))
	docs := make([]domain.SourceDocument, 0, len(ds.Documents))
	for i, e := range ds.Documents {
		name := strings.TrimSpace(e.Name)
		if name == "" || strings.TrimSpace(e.Text) == "" {
			return nil, domain.WrapError(domain.ErrConfiguration, "parse seed dataset", fmt.Errorf("entry %d needs name and text", i))
		}
		if _, dup := seen[name]; dup {
			return nil, domain.WrapError(domain.ErrConfiguration, "parse seed dataset", fmt.Errorf("duplicate entry %q", name))
		}
		seen[name] = struct{}{}
		docs = append(docs, domain.SourceDocument{
			Filename: name,
			Type:     domain.DocumentTypeInline,
			Text:     e.Text,
		})
	}
	return docs, nil
}
