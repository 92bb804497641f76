package decomposer

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface check.
var _ orchestrator.Decomposer = (*RuleDecomposer)(nil)

// RuleFile is the YAML layout shared by the rule-based decomposer and router.
type RuleFile struct {
	Decompositions map[string][]string `yaml:"decompositions"`
	Routes         map[string]string   `yaml:"routes"`
}

// LoadRuleFile reads a rule file from path.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("decomposer: read rules: %w", err)
	}
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("decomposer: parse rules %s: %w", path, err)
	}
	return &rf, nil
}

// RuleDecomposer looks queries up in a fixed table. Unknown queries yield an
// empty decomposition.
type RuleDecomposer struct {
	rules map[string][]string
}

// NewRuleDecomposer creates a decomposer over rules. The map is copied.
func NewRuleDecomposer(rules map[string][]string) *RuleDecomposer {
	cp := make(map[string][]string, len(rules))
	for q, subs := range rules {
		cp[q] = append([]string(nil), subs...)
	}
	return &RuleDecomposer{rules: cp}
}

// Decompose returns a copy of the sub-queries registered for query.
func (d *RuleDecomposer) Decompose(_ context.Context, query string) ([]string, error) {
	subs, ok := d.rules[query]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), subs...), nil
}
