// Package assist provides the deterministic phase-content suggester: a
// keyword-matching template picker over embedded rules. There is no model and
// no network call; the same input always yields the same suggestion.
package assist

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// Rule matches input keywords to a canned suggestion.
type Rule struct {
	Keywords   []string `yaml:"keywords"`
	Suggestion string   `yaml:"suggestion"`
}

// Phase groups the rules for one authoring phase with its fallback.
type Phase struct {
	Fallback string `yaml:"fallback"`
	Rules    []Rule `yaml:"rules"`
}

// Suggester picks suggestions by phase and input text.
type Suggester struct {
	phases map[string]Phase
}

// NewSuggester parses the embedded template rules.
func NewSuggester() (*Suggester, error) {
	var phases map[string]Phase
	if err := yaml.Unmarshal(templatesYAML, &phases); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion templates: %w", err)
	}
	return &Suggester{phases: phases}, nil
}

// Phases lists the phases the suggester knows about.
func (s *Suggester) Phases() []string {
	names := make([]string, 0, len(s.phases))
	for name := range s.phases {
		names = append(names, name)
	}
	return names
}

// Suggest returns the first rule whose keyword appears in the input
// (case-insensitive), or the phase fallback. Unknown phases yield "".
func (s *Suggester) Suggest(phase, input string) string {
	p, ok := s.phases[phase]
	if !ok {
		return ""
	}

	needle := strings.ToLower(input)
	for _, rule := range p.Rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(needle, strings.ToLower(keyword)) {
				return rule.Suggestion
			}
		}
	}
	return p.Fallback
}
