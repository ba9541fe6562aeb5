// Package policy gates data sources by declared use case.
package policy

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/guttosm/twpulse/internal/fault"
)

// Data sources known to the gate.
const (
	SourceYahoo = "yahoo"
	SourceTWSE  = "twse"
)

//go:embed policy.yaml
var defaultPolicy []byte

type sourceRule struct {
	Terms    string   `yaml:"terms"`
	UseCases []string `yaml:"use_cases"`
}

// Policy is a static table of permitted (source, use case) pairs.
type Policy struct {
	Sources map[string]sourceRule `yaml:"sources"`
}

// Default returns the embedded policy table.
func Default() *Policy {
	p, err := Parse(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("policy: embedded table is invalid: %v", err))
	}
	return p
}

// Parse reads a policy table from YAML.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if len(p.Sources) == 0 {
		return nil, fmt.Errorf("parse policy: no sources")
	}
	return &p, nil
}

// Allowed reports whether source may be used for useCase.
func (p *Policy) Allowed(source, useCase string) bool {
	rule, ok := p.Sources[strings.ToLower(source)]
	return ok && slices.Contains(rule.UseCases, strings.ToLower(useCase))
}

// Check returns a policy error naming the first source that does not permit useCase.
func (p *Policy) Check(useCase string, sources ...string) error {
	for _, s := range sources {
		if !p.Allowed(s, useCase) {
			return fault.New(fault.KindPolicy, "policy.Check",
				"source %q does not permit use case %q (allowed: %s)", s, useCase, strings.Join(p.UseCases(s), ", "))
		}
	}
	return nil
}

// UseCases lists the use cases permitted for source, sorted.
func (p *Policy) UseCases(source string) []string {
	out := slices.Clone(p.Sources[strings.ToLower(source)].UseCases)
	sort.Strings(out)
	return out
}
