package matching

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// UnknownBranch is returned for an empty branch name.
const UnknownBranch = "Unknown"

// Mapping pairs a lower-case substring key with the canonical branch name it selects.
type Mapping struct {
	Key       string `yaml:"key"`
	Canonical string `yaml:"canonical"`
}

// Normalizer reduces textual branch variants to one canonical name.
// The first table entry whose key occurs in the input wins, so the table is
// ordered from most to least specific. A Normalizer is immutable and safe for
// concurrent use.
type Normalizer struct {
	table []Mapping
}

// NewNormalizer builds a Normalizer over a copy of table. Keys are case-folded;
// entries with an empty key or canonical name are skipped.
func NewNormalizer(table []Mapping) *Normalizer {
	fold := cases.Fold()
	n := &Normalizer{table: make([]Mapping, 0, len(table))}
	for _, m := range table {
		key := strings.TrimSpace(fold.String(m.Key))
		canonical := strings.TrimSpace(m.Canonical)
		if key == "" || canonical == "" {
			continue
		}
		n.table = append(n.table, Mapping{Key: key, Canonical: canonical})
	}
	return n
}

// Normalize returns the canonical name for branch, UnknownBranch for an empty
// name, or branch unchanged when no key matches.
func (n *Normalizer) Normalize(branch string) string {
	folded := strings.TrimSpace(cases.Fold().String(branch))
	if folded == "" {
		return UnknownBranch
	}
	for _, m := range n.table {
		if strings.Contains(folded, m.Key) {
			return m.Canonical
		}
	}
	return branch
}

// Table returns a copy of the effective mapping table in match order.
func (n *Normalizer) Table() []Mapping {
	out := make([]Mapping, len(n.table))
	copy(out, n.table)
	return out
}

type mappingFile struct {
	Mappings []Mapping `yaml:"mappings"`
}

// LoadMappings decodes an ordered mapping table from YAML:
//
//	mappings:
//	  - key: computer science and engineering
//	    canonical: Computer Science and Engineering
func LoadMappings(r io.Reader) ([]Mapping, error) {
	var f mappingFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode branch mappings: %w", err)
	}
	if len(f.Mappings) == 0 {
		return nil, fmt.Errorf("decode branch mappings: no mappings defined")
	}
	for i, m := range f.Mappings {
		if strings.TrimSpace(m.Key) == "" || strings.TrimSpace(m.Canonical) == "" {
			return nil, fmt.Errorf("decode branch mappings: entry %d needs both key and canonical", i+1)
		}
	}
	return f.Mappings, nil
}

// LoadMappingsFile reads a YAML mapping table from path.
func LoadMappingsFile(path string) ([]Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open branch mappings: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadMappings(f)
}

// DefaultMappings returns the built-in table. Full names precede their
// shorter prefixes, and bare abbreviations come last because they occur
// inside many unrelated words.
func DefaultMappings() []Mapping {
	const (
		aids     = "Artificial Intelligence and Data Science"
		cse      = "Computer Science and Engineering"
		comp     = "Computer Engineering"
		it       = "Information Technology"
		entc     = "Electronics and Telecommunication Engineering"
		ece      = "Electronics and Communication Engineering"
		elex     = "Electronics Engineering"
		instCtrl = "Instrumentation and Control Engineering"
		biomed   = "Bio Medical Engineering"
		biotech  = "Bio Technology"
	)

	return []Mapping{
		{"artificial intelligence and data science", aids},
		{"ai and data science", aids},
		{"ai & data science", aids},
		{"artificial intelligence", aids},
		{"data science", "Data Science"},

		{"computer science and engineering", cse},
		{"computer science & engineering", cse},
		{"computer science", cse},
		{"computer engineering", comp},
		{"computer", comp},
		{"information technology", it},

		{"electronics and telecommunication engineering", entc},
		{"electronics and telecommunication", entc},
		{"electronics & telecommunication", entc},
		{"electronics and communication engineering", ece},
		{"electronics and communication", ece},
		{"electronics engineering", elex},
		{"electronics", elex},
		{"electrical engineering", "Electrical Engineering"},
		{"electrical", "Electrical Engineering"},

		{"instrumentation and control engineering", instCtrl},
		{"instrumentation and control", instCtrl},
		{"instrumentation", "Instrumentation Engineering"},

		{"automation and robotics", "Automation and Robotics"},
		{"robotics", "Robotics Engineering"},
		{"mechatronics", "Mechatronics Engineering"},
		{"mechanical", "Mechanical Engineering"},
		{"automobile", "Automobile Engineering"},
		{"aeronautical", "Aeronautical Engineering"},
		{"production", "Production Engineering"},
		{"industrial", "Industrial Engineering"},

		{"civil", "Civil Engineering"},
		{"petro chemical", "Petro Chemical Engineering"},
		{"chemical", "Chemical Engineering"},
		{"textile", "Textile Engineering"},
		{"mining", "Mining Engineering"},
		{"metallurgical", "Metallurgical Engineering"},
		{"metallurgy", "Metallurgical Engineering"},

		{"biomedical", biomed},
		{"bio medical", biomed},
		{"biotechnology", biotech},
		{"bio technology", biotech},
		{"physics", "Engineering Physics"},
		{"architecture", "Architecture"},
		{"paints", "Oil and Paints Technology"},

		{"extc", entc},
		{"ece", ece},
		{"cse", cse},
		{"comp", comp},
		{"cs", cse},
		{"it", it},
		{"ai", aids},
	}
}
