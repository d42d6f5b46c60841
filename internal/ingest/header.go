package ingest

import "strings"

// Column aliases accepted in evidence and score tables, after normalization.
var (
	sourceAliases       = []string{"source", "from", "cause"}
	targetAliases       = []string{"target", "to", "effect_node"}
	rawAliases          = []string{"raw_support_value", "raw_support", "support", "weight", "score", "strength", "p_value"}
	categoryAliases     = []string{"producer_category", "category"}
	nameAliases         = []string{"producer_name", "producer", "algorithm"}
	edgeAliases         = []string{"edge", "causal_edge"}
	pathAliases         = []string{"path", "mediation_path"}
	significanceAliases = []string{"significance", "significance_probability", "probability", "prob"}
	significantAliases  = []string{"significant", "is_significant"}
	effectAliases       = []string{"effect", "indirect_effect", "indirect_effect_mean", "effect_mean"}
)

// paramSuffix marks per-method support-growth columns in parameter tables.
const paramSuffix = "_s_param"

// normalizeHeader lowercases a column name and folds '-' and spaces to '_'.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("-", "_", " ", "_").Replace(h)
	return h
}

// columns indexes a header row by normalized name.
type columns map[string]int

func newColumns(header []string) columns {
	c := make(columns, len(header))
	for i, h := range header {
		n := normalizeHeader(h)
		if _, dup := c[n]; !dup {
			c[n] = i
		}
	}
	return c
}

// find returns the index of the first alias present, or -1.
func (c columns) find(aliases []string) int {
	for _, a := range aliases {
		if i, ok := c[a]; ok {
			return i
		}
	}
	return -1
}

// cell returns row[i] trimmed, or "" when i is out of range or negative.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
