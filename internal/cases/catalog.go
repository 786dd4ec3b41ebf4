package cases

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"analisis-mcp/internal/rules"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed casos.yaml
var defaultCatalog []byte

type catalogFile struct {
	Version int            `yaml:"version"`
	Casos   []CatalogEntry `yaml:"casos"`
}

// FileCatalog serves case templates parsed from a YAML document. Entries are
// grouped per module and keep their file order.
type FileCatalog struct {
	byModule map[string][]CatalogEntry
}

// LoadCatalog reads a YAML catalog from path. An empty path selects the
// catalog compiled into the binary.
func LoadCatalog(path string) (*FileCatalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("entries", cat.Len()).Msg("Loaded case catalog")
	return cat, nil
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*FileCatalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse case catalog: %w", err)
	}

	cat := &FileCatalog{byModule: make(map[string][]CatalogEntry)}
	for i, entry := range doc.Casos {
		if entry.ID == "" || entry.Modulo == "" {
			return nil, fmt.Errorf("case catalog entry %d: id and modulo are required", i)
		}
		rule, err := rules.Parse(entry.Regla)
		if err != nil {
			// A bad rule disables the entry instead of rejecting the catalog.
			log.Warn().Err(err).Str("caso", entry.ID).Msg("Case rule unreadable, entry will never match")
		}
		entry.Regla = rule
		cat.byModule[entry.Modulo] = append(cat.byModule[entry.Modulo], entry)
	}
	return cat, nil
}

// ListCasos returns the entries for module in catalog order.
func (c *FileCatalog) ListCasos(_ context.Context, module string) ([]CatalogEntry, error) {
	entries := c.byModule[module]
	out := make([]CatalogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Len returns the total number of entries.
func (c *FileCatalog) Len() int {
	n := 0
	for _, entries := range c.byModule {
		n += len(entries)
	}
	return n
}

// All returns every entry, grouped by module in narrative order. Entries of
// modules outside Modules come last.
func (c *FileCatalog) All() []CatalogEntry {
	var out []CatalogEntry
	seen := make(map[string]bool, len(Modules))
	for _, m := range Modules {
		seen[m] = true
		out = append(out, c.byModule[m]...)
	}
	var extra []string
	for m := range c.byModule {
		if !seen[m] {
			extra = append(extra, m)
		}
	}
	sort.Strings(extra)
	for _, m := range extra {
		out = append(out, c.byModule[m]...)
	}
	return out
}
