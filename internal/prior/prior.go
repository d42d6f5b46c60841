// Package prior holds the category-pair tables used when an edge lacks
// direct evidence: how plausible a directed relation between two entity
// categories is, and how likely such a relation is to be mediated.
package prior

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

// PairWeight assigns a weight to a directed category pair.
type PairWeight struct {
	Source string  `yaml:"source"`
	Target string  `yaml:"target"`
	Weight float64 `yaml:"weight"`
}

// Table is the injectable prior configuration.
type Table struct {
	// Aliases maps raw entity prefixes to canonical category names.
	Aliases             map[string]string `yaml:"aliases"`
	Plausibility        []PairWeight      `yaml:"plausibility"`
	Mediation           []PairWeight      `yaml:"mediation"`
	DefaultPlausibility float64           `yaml:"default_plausibility"`
	DefaultMediation    float64           `yaml:"default_mediation"`

	separator    string
	plausibility map[[2]string]float64
	mediation    map[[2]string]float64
}

// Default returns the clinical prior table: diseases, drugs, and lab tests.
func Default() *Table {
	t := &Table{
		Aliases: map[string]string{
			"疾病": "disease",
			"药物": "drug",
			"检验": "lab",
		},
		Plausibility: []PairWeight{
			{Source: "disease", Target: "drug", Weight: 0.95},
			{Source: "disease", Target: "lab", Weight: 0.90},
			{Source: "lab", Target: "disease", Weight: 0.85},
			{Source: "drug", Target: "lab", Weight: 0.80},
			{Source: "lab", Target: "drug", Weight: 0.70},
			{Source: "drug", Target: "disease", Weight: 0.60},
		},
		Mediation: []PairWeight{
			{Source: "disease", Target: "drug", Weight: 0.9},
			{Source: "lab", Target: "disease", Weight: 0.7},
			{Source: "disease", Target: "lab", Weight: 0.7},
			{Source: "lab", Target: "drug", Weight: 0.6},
		},
		DefaultPlausibility: 0.5,
		DefaultMediation:    0.4,
	}
	t.index("_")
	return t
}

// LoadFile reads a YAML prior table. Omitted sections keep the defaults.
func LoadFile(path, separator string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prior: read file %s", path)
	}

	def := Default()
	t := &Table{DefaultPlausibility: -1, DefaultMediation: -1}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, eris.Wrapf(err, "prior: parse yaml %s", path)
	}

	if t.Aliases == nil {
		t.Aliases = def.Aliases
	}
	if t.Plausibility == nil {
		t.Plausibility = def.Plausibility
	}
	if t.Mediation == nil {
		t.Mediation = def.Mediation
	}
	if t.DefaultPlausibility < 0 {
		t.DefaultPlausibility = def.DefaultPlausibility
	}
	if t.DefaultMediation < 0 {
		t.DefaultMediation = def.DefaultMediation
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.index(separator)
	return t, nil
}

// Validate checks every weight lies in [0,1].
func (t *Table) Validate() error {
	var errs []string
	check := func(name string, w float64) {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Sprintf("%s weight %g outside [0,1]", name, w))
		}
	}
	for _, p := range t.Plausibility {
		check("plausibility "+p.Source+"->"+p.Target, p.Weight)
	}
	for _, p := range t.Mediation {
		check("mediation "+p.Source+"->"+p.Target, p.Weight)
	}
	check("default_plausibility", t.DefaultPlausibility)
	check("default_mediation", t.DefaultMediation)

	if len(errs) > 0 {
		return resilience.NewConfigurationError(
			eris.Errorf("prior: validation failed: %s", strings.Join(errs, "; ")), errs...)
	}
	return nil
}

// WithSeparator returns t re-indexed for a different entity separator.
func (t *Table) WithSeparator(sep string) *Table {
	t.index(sep)
	return t
}

func (t *Table) index(sep string) {
	t.separator = sep
	t.plausibility = make(map[[2]string]float64, len(t.Plausibility))
	for _, p := range t.Plausibility {
		t.plausibility[[2]string{p.Source, p.Target}] = p.Weight
	}
	t.mediation = make(map[[2]string]float64, len(t.Mediation))
	for _, p := range t.Mediation {
		t.mediation[[2]string{p.Source, p.Target}] = p.Weight
	}
}

// Category returns the canonical category of an entity: the prefix before
// the separator, resolved through Aliases. Entities without a separator have
// no category.
func (t *Table) Category(entity string) string {
	prefix, _, found := strings.Cut(entity, t.separator)
	if !found || prefix == "" {
		return ""
	}
	if canon, ok := t.Aliases[prefix]; ok {
		return canon
	}
	return strings.ToLower(prefix)
}

// PairPlausibility returns the domain plausibility of k's category pair.
func (t *Table) PairPlausibility(k model.EdgeKey) float64 {
	if w, ok := t.plausibility[t.pair(k)]; ok {
		return w
	}
	return t.DefaultPlausibility
}

// MediationPrior returns the prior likelihood that k's category pair is a
// mediated relation.
func (t *Table) MediationPrior(k model.EdgeKey) float64 {
	if w, ok := t.mediation[t.pair(k)]; ok {
		return w
	}
	return t.DefaultMediation
}

func (t *Table) pair(k model.EdgeKey) [2]string {
	return [2]string{t.Category(k.Source), t.Category(k.Target)}
}
