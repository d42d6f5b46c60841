package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// EdgeKey identifies a directed candidate edge. (A,B) and (B,A) are distinct.
type EdgeKey struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// String renders the key as "source->target".
func (k EdgeKey) String() string {
	return k.Source + "->" + k.Target
}

// ParseEdgeKey parses "source->target" (or the arrow form "source→target").
func ParseEdgeKey(s string) (EdgeKey, error) {
	nodes := SplitPath(s)
	if len(nodes) != 2 {
		return EdgeKey{}, eris.Errorf("model: invalid edge key %q", s)
	}
	return EdgeKey{Source: nodes[0], Target: nodes[1]}, nil
}

// SplitPath splits a path written with "->" or "→" separators into trimmed
// node names. Empty segments are dropped.
func SplitPath(s string) []string {
	s = strings.ReplaceAll(s, "→", "->")
	parts := strings.Split(s, "->")
	nodes := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nodes = append(nodes, p)
		}
	}
	return nodes
}

// ProducerCategory is the algorithm family a producer belongs to.
type ProducerCategory string

const (
	CategoryConstraintBased   ProducerCategory = "constraint_based"
	CategoryScoreBased        ProducerCategory = "score_based"
	CategoryEquivalenceSearch ProducerCategory = "equivalence_search"
	CategoryTreeStructured    ProducerCategory = "tree_structured"
	CategoryExpertGuided      ProducerCategory = "expert_guided"
)

// Categories lists every declared producer category in canonical order.
var Categories = []ProducerCategory{
	CategoryConstraintBased,
	CategoryScoreBased,
	CategoryEquivalenceSearch,
	CategoryTreeStructured,
	CategoryExpertGuided,
}

// Valid reports whether c is a declared category.
func (c ProducerCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// EvidenceRow is one producer's observation of an edge after normalization.
type EvidenceRow struct {
	Edge      EdgeKey           `json:"edge"`
	Producer  string            `json:"producer"`
	Category  ProducerCategory  `json:"category"`
	Raw       string            `json:"raw,omitempty"`
	Support   float64           `json:"support"`
	Validated bool              `json:"validated"`
	Line      int               `json:"line"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ProducerState is the load outcome of one producer table.
type ProducerState string

const (
	ProducerLoaded    ProducerState = "loaded"
	ProducerMissing   ProducerState = "missing"
	ProducerMalformed ProducerState = "malformed"
)

// ProducerStatus reports how a producer table was ingested.
type ProducerStatus struct {
	Producer     string           `json:"producer"`
	Category     ProducerCategory `json:"category"`
	Location     string           `json:"location"`
	State        ProducerState    `json:"state"`
	RowsRead     int              `json:"rows_read"`
	RowsAccepted int              `json:"rows_accepted"`
	RowsRejected int              `json:"rows_rejected"`
	Duplicates   int              `json:"duplicates"`
	Error        string           `json:"error,omitempty"`
}
