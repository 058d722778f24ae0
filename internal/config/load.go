package config

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Load reads a columns document from disk. YAML and JSON are both accepted
// (JSON is a YAML subset, so one decoder covers the .yaml/.yml/.json
// configs in the wild). A missing or empty file is a fatal error.
func Load(path string, mode Mode, log *zap.Logger) (*ColumnsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cc, err := Parse(data, mode, log)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cc, nil
}

// Parse decodes a columns document. It walks the raw node tree instead of
// unmarshaling into plain maps because two orders in the document are
// semantic and Go maps would lose both: the declaration order of columns
// (output column order) and the step order of mapping-shaped pipelines.
func Parse(data []byte, mode Mode, log *zap.Logger) (*ColumnsConfig, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, shapeErrf("config", "empty document")
	}
	doc := deref(root.Content[0])
	if doc.Kind != yaml.MappingNode {
		return nil, shapeErrf("config", "top-level mapping required")
	}

	var meta Metadata
	var columns []*ColumnConfig

	for i := 0; i < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		val := deref(doc.Content[i+1])

		switch key {
		case "name", "description", "author", "date":
			var s string
			if err := val.Decode(&s); err != nil {
				return nil, shapeErrf("metadata."+key, "%v", err)
			}
			switch key {
			case "name":
				meta.Name = s
			case "description":
				meta.Description = s
			case "author":
				meta.Author = s
			case "date":
				meta.Date = s
			}

		case "columns":
			if val.Kind != yaml.MappingNode {
				return nil, shapeErrf("columns", "must be a mapping of column name to column spec")
			}
			for j := 0; j < len(val.Content); j += 2 {
				name := val.Content[j].Value
				spec, err := nodeToSpec(deref(val.Content[j+1]), "columns."+name)
				if err != nil {
					return nil, err
				}
				col, err := NewColumnConfig(name, spec, log)
				if err != nil {
					return nil, err
				}
				columns = append(columns, col)
			}
		}
	}

	return New(meta, columns, mode, log)
}

// FromDocument assembles a ColumnsConfig from an already-decoded document
// mapping. Plain maps carry no declaration order, so columns are taken in
// sorted name order; prefer Parse/Load when order matters.
func FromDocument(docMap map[string]any, mode Mode, log *zap.Logger) (*ColumnsConfig, error) {
	if log == nil {
		log = zap.NewNop()
	}

	meta := Metadata{
		Name:        stringField(docMap, "name"),
		Description: stringField(docMap, "description"),
		Author:      stringField(docMap, "author"),
		Date:        stringField(docMap, "date"),
	}

	rawCols, _ := docMap["columns"].(map[string]any)
	names := make([]string, 0, len(rawCols))
	for name := range rawCols {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]*ColumnConfig, 0, len(names))
	for _, name := range names {
		spec, ok := rawCols[name].(map[string]any)
		if !ok {
			return nil, shapeErrf("columns."+name, "column entry must be a mapping")
		}
		col, err := NewColumnConfig(name, spec, log)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	return New(meta, columns, mode, log)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func nodeToSpec(n *yaml.Node, path string) (map[string]any, error) {
	if n.Kind != yaml.MappingNode {
		return nil, shapeErrf(path, "column entry must be a mapping")
	}
	spec := make(map[string]any, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		key := n.Content[i].Value
		val := deref(n.Content[i+1])

		if key == "reviews" || key == "normalization" {
			p, err := nodeToPipeline(val, path+"."+key)
			if err != nil {
				return nil, err
			}
			spec[key] = p
			continue
		}

		var v any
		if err := val.Decode(&v); err != nil {
			return nil, shapeErrf(path+"."+key, "%v", err)
		}
		spec[key] = v
	}
	return spec, nil
}

// nodeToPipeline reads a pipeline field in any of its document shapes,
// preserving step order:
//
//	normalization: text_stressed          # bare method
//	normalization:                        # legacy mapping, document order
//	  text: {strip: both}
//	  numeric: {dtype: Float64}
//	normalization:                        # step list
//	  - text_stressed
//	  - numeric: {dtype: Float64}
func nodeToPipeline(n *yaml.Node, path string) (any, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		var s string
		if err := n.Decode(&s); err != nil {
			return nil, shapeErrf(path, "%v", err)
		}
		return s, nil

	case yaml.MappingNode:
		steps := make([]RawStep, 0, len(n.Content)/2)
		for i := 0; i < len(n.Content); i += 2 {
			method := n.Content[i].Value
			params, err := nodeToParams(deref(n.Content[i+1]), path+"."+method)
			if err != nil {
				return nil, err
			}
			steps = append(steps, RawStep{Method: method, Params: params})
		}
		return steps, nil

	case yaml.SequenceNode:
		steps := make([]RawStep, 0, len(n.Content))
		for _, item := range n.Content {
			item = deref(item)
			switch item.Kind {
			case yaml.ScalarNode:
				var s string
				if err := item.Decode(&s); err != nil {
					return nil, shapeErrf(path, "%v", err)
				}
				steps = append(steps, RawStep{Method: s})
			case yaml.MappingNode:
				if len(item.Content) != 2 {
					return nil, shapeErrf(path, "a step list entry must be a single method: params mapping")
				}
				method := item.Content[0].Value
				params, err := nodeToParams(deref(item.Content[1]), path+"."+method)
				if err != nil {
					return nil, err
				}
				steps = append(steps, RawStep{Method: method, Params: params})
			default:
				return nil, shapeErrf(path, "unsupported step entry")
			}
		}
		return steps, nil
	}

	return nil, shapeErrf(path, "unsupported pipeline shape")
}

// nodeToParams decodes a step's parameter node. Anything that is not a
// mapping counts as "no parameters", matching the historic leniency.
func nodeToParams(n *yaml.Node, path string) (map[string]any, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nil
	}
	var m map[string]any
	if err := n.Decode(&m); err != nil {
		return nil, shapeErrf(path, "%v", err)
	}
	return m, nil
}

// deref follows YAML anchors so aliased nodes read like their targets.
func deref(n *yaml.Node) *yaml.Node {
	if n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		return n.Alias
	}
	return n
}
