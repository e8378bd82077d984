package suggest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
)

// CatalogKey is one attribute key entry of a catalog file.
type CatalogKey struct {
	Key      string `yaml:"key"`
	DataType string `yaml:"dataType"`
	Type     string `yaml:"type"`
	IsColumn bool   `yaml:"isColumn"`
}

// Catalog is a static Source loaded from YAML:
//
//	keys:
//	  logs:
//	    - {key: service.name, dataType: string, type: resource}
//	values:
//	  logs:
//	    service.name: [api, web]
//
// Matching is a case-insensitive substring match on the search text.
type Catalog struct {
	KeysBySource   map[queryir.DataSource][]CatalogKey          `yaml:"keys"`
	ValuesBySource map[queryir.DataSource]map[string][]yaml.Node `yaml:"values"`
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes catalog YAML. Unknown fields and data sources are
// rejected; value lists must hold scalars.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for ds := range c.KeysBySource {
		if !ds.Valid() {
			return nil, fmt.Errorf("catalog: unknown data source %q", ds)
		}
	}
	for ds, byKey := range c.ValuesBySource {
		if !ds.Valid() {
			return nil, fmt.Errorf("catalog: unknown data source %q", ds)
		}
		for key, nodes := range byKey {
			for _, n := range nodes {
				if n.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("catalog: %s value of %q at line %d is not a scalar", ds, key, n.Line)
				}
			}
		}
	}
	return &c, nil
}

// Keys implements Source.
func (c *Catalog) Keys(ctx context.Context, req Request) ([]queryir.AttributeKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	search := Fold(req.SearchText)
	out := []queryir.AttributeKey{}
	for _, k := range c.KeysBySource[req.DataSource] {
		if !strings.Contains(Fold(k.Key), search) {
			continue
		}
		out = append(out, queryir.AttributeKey{
			Key:      k.Key,
			DataType: queryir.DataType(k.DataType),
			Type:     queryir.FieldContext(k.Type),
			IsColumn: k.IsColumn,
		}.WithComposedID())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Values implements Source.
func (c *Catalog) Values(ctx context.Context, req Request) ([]ir.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	search := Fold(req.SearchText)
	out := []ir.Value{}
	for _, n := range c.ValuesBySource[req.DataSource][req.Key] {
		if !strings.Contains(Fold(n.Value), search) {
			continue
		}
		out = append(out, scalarValue(n))
	}
	return out, nil
}

func scalarValue(n yaml.Node) ir.Value {
	var v any
	if err := n.Decode(&v); err != nil {
		return ir.String(n.Value)
	}
	val, err := ir.FromAny(v)
	if err != nil {
		return ir.String(n.Value)
	}
	return val
}
