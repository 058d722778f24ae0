package config

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Mode selects how alias conflicts are handled while building the index.
type Mode int

const (
	// Permissive keeps the first column that claims an alias and logs later
	// claims. This is the default and matches how historic documents were
	// interpreted; ValidateAliases still reports every conflict as data.
	Permissive Mode = iota

	// Strict turns duplicate column names and alias conflicts into load
	// errors.
	Strict
)

// Metadata identifies a columns document. All four fields are required.
type Metadata struct {
	Name        string
	Description string
	Author      string
	Date        string
}

// ColumnsConfig is the ordered collection of column configurations for one
// document, with an alias index for lookups. Declaration order is
// significant: it defines the output column order of a normalization run.
// Instances are read-only after construction.
type ColumnsConfig struct {
	Meta Metadata

	mode    Mode
	columns []*ColumnConfig
	index   map[string]*ColumnConfig
}

// StepGroup is one entry of the execution plan: a pipeline step and every
// column whose pipeline contains that exact step.
type StepGroup struct {
	Spec    CallSpec
	Columns []string
}

// PipelineGroup batches columns that share a byte-identical full pipeline.
type PipelineGroup struct {
	Pipeline []CallSpec
	Columns  []string
}

// New assembles a ColumnsConfig from metadata and already-built columns.
//
// Errors:
//   - any blank metadata field
//   - an empty column list
//   - in Strict mode, duplicate names or alias conflicts
func New(meta Metadata, columns []*ColumnConfig, mode Mode, log *zap.Logger) (*ColumnsConfig, error) {
	if log == nil {
		log = zap.NewNop()
	}

	for _, f := range []struct{ name, val string }{
		{"name", meta.Name},
		{"description", meta.Description},
		{"author", meta.Author},
		{"date", meta.Date},
	} {
		if f.val == "" {
			return nil, shapeErrf("metadata."+f.name, "required field is missing")
		}
	}
	if len(columns) == 0 {
		return nil, shapeErrf("columns", "at least one column is required")
	}

	cc := &ColumnsConfig{
		Meta:    meta,
		mode:    mode,
		columns: columns,
		index:   make(map[string]*ColumnConfig),
	}

	// First claimant wins; the declaration order of columns and the sorted
	// order of each alias set make the index deterministic.
	for _, col := range columns {
		for _, alias := range sortedAliases(col) {
			owner, taken := cc.index[alias]
			if !taken {
				cc.index[alias] = col
				continue
			}
			if owner == col {
				continue
			}
			if mode == Strict {
				return nil, shapeErrf("columns."+col.Name,
					"alias %q already claimed by column %q", alias, owner.Name)
			}
			log.Warn("alias already claimed, keeping first owner",
				zap.String("alias", alias),
				zap.String("owner", owner.Name),
				zap.String("dropped", col.Name))
		}
	}
	return cc, nil
}

func sortedAliases(col *ColumnConfig) []string {
	out := make([]string, 0, len(col.Aliases))
	out = append(out, col.Name)
	rest := make([]string, 0, len(col.Aliases))
	for a := range col.Aliases {
		if a != col.Name {
			rest = append(rest, a)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Get returns the column registered under key, which may be a primary name
// or any alias. Unknown keys return a *KeyError.
func (cc *ColumnsConfig) Get(key string) (*ColumnConfig, error) {
	if col, ok := cc.index[key]; ok {
		return col, nil
	}
	return nil, &KeyError{Key: key}
}

// Has reports whether key addresses any column, by name or alias.
func (cc *ColumnsConfig) Has(key string) bool {
	_, ok := cc.index[key]
	return ok
}

// Len returns the number of primary columns (aliases do not count).
func (cc *ColumnsConfig) Len() int { return len(cc.columns) }

// Names returns the primary column names in declaration order.
func (cc *ColumnsConfig) Names() []string {
	out := make([]string, len(cc.columns))
	for i, col := range cc.columns {
		out[i] = col.Name
	}
	return out
}

// Columns returns the column configurations in declaration order. The
// returned slice is a copy; the elements are shared and must be treated as
// read-only.
func (cc *ColumnsConfig) Columns() []*ColumnConfig {
	return append([]*ColumnConfig(nil), cc.columns...)
}

// ValidateAliases reports duplicate primary names and aliases claimed by
// more than one column as human-readable issue strings. It never fails;
// callers decide whether issues are fatal.
func (cc *ColumnsConfig) ValidateAliases() []string {
	var issues []string

	seen := map[string]bool{}
	reported := map[string]bool{}
	for _, col := range cc.columns {
		if seen[col.Name] && !reported[col.Name] {
			issues = append(issues, fmt.Sprintf("duplicate column name %q", col.Name))
			reported[col.Name] = true
		}
		seen[col.Name] = true
	}

	owners := map[string][]string{}
	for _, col := range cc.columns {
		for _, alias := range sortedAliases(col) {
			owners[alias] = append(owners[alias], col.Name)
		}
	}
	aliases := make([]string, 0, len(owners))
	for a := range owners {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, a := range aliases {
		names := owners[a]
		if len(names) < 2 {
			continue
		}
		issues = append(issues, fmt.Sprintf("alias %q claimed by columns %v", a, names))
	}
	return issues
}

// IsValid reports whether ValidateAliases finds nothing.
func (cc *ColumnsConfig) IsValid() bool { return len(cc.ValidateAliases()) == 0 }

// GroupByNormalization computes the execution plan: columns are scanned in
// declaration order, each pipeline step in the column's own order, and
// columns sharing an identical step land in one group. Group order follows
// first appearance. A column with K steps contributes to exactly K groups.
func (cc *ColumnsConfig) GroupByNormalization() []StepGroup {
	var plan []StepGroup
	byHash := map[string]int{}

	for _, col := range cc.columns {
		for _, step := range col.Normalization {
			h := step.Hash()
			i, ok := byHash[h]
			if !ok {
				i = len(plan)
				byHash[h] = i
				plan = append(plan, StepGroup{Spec: step})
			}
			plan[i].Columns = append(plan[i].Columns, col.Name)
		}
	}
	return plan
}

// GroupByNormalizationPipeline batches columns whose entire ordered pipeline
// is identical. Columns without a pipeline group together under an empty
// Pipeline. Group order follows first appearance.
func (cc *ColumnsConfig) GroupByNormalizationPipeline() []PipelineGroup {
	var groups []PipelineGroup
	byKey := map[string]int{}

	for _, col := range cc.columns {
		key := pipelineKey(col.Normalization)
		i, ok := byKey[key]
		if !ok {
			i = len(groups)
			byKey[key] = i
			groups = append(groups, PipelineGroup{Pipeline: col.Normalization})
		}
		groups[i].Columns = append(groups[i].Columns, col.Name)
	}
	return groups
}

func pipelineKey(steps []CallSpec) string {
	if len(steps) == 0 {
		return "None"
	}
	key := ""
	for i, cs := range steps {
		if i > 0 {
			key += " | "
		}
		key += cs.Hash()
	}
	return key
}

// NAValuesByColumn projects the configured missing-value markers, keyed by
// primary column name. Columns without markers are absent.
func (cc *ColumnsConfig) NAValuesByColumn() map[string][]any {
	out := map[string][]any{}
	for _, col := range cc.columns {
		if len(col.NAValues) > 0 {
			out[col.Name] = col.NAValues
		}
	}
	return out
}

// FillNAByColumn projects the configured fill values, keyed by primary
// column name. Columns without a fill value are absent.
func (cc *ColumnsConfig) FillNAByColumn() map[string]any {
	out := map[string]any{}
	for _, col := range cc.columns {
		if col.FillNA != nil {
			out[col.Name] = col.FillNA
		}
	}
	return out
}

// ToDict serializes the whole document back to plain maps. Note that a Go
// map carries no column order; use the declaration order from Names when
// rendering to a file.
func (cc *ColumnsConfig) ToDict() map[string]any {
	cols := make(map[string]any, len(cc.columns))
	for _, col := range cc.columns {
		cols[col.Name] = col.ToDict()
	}
	return map[string]any{
		"name":        cc.Meta.Name,
		"description": cc.Meta.Description,
		"author":      cc.Meta.Author,
		"date":        cc.Meta.Date,
		"columns":     cols,
	}
}
