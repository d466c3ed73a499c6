package ratelimit

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy overrides the caller supplied budget for every endpoint under Pattern.
type Policy struct {
	Pattern     string        `yaml:"pattern" json:"pattern"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	Window      time.Duration `yaml:"window" json:"window"`
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if !strings.HasPrefix(p.Pattern, "/") {
		return fmt.Errorf("policy pattern %q must start with /", p.Pattern)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("policy %s: max_requests must be positive", p.Pattern)
	}
	if p.Window <= 0 {
		return fmt.Errorf("policy %s: window must be positive", p.Pattern)
	}
	return nil
}

// Matches reports whether endpoint falls under the policy pattern. A pattern
// matches itself and anything below it on a path segment boundary.
func (p Policy) Matches(endpoint string) bool {
	if !strings.HasPrefix(endpoint, p.Pattern) {
		return false
	}
	if len(endpoint) == len(p.Pattern) || strings.HasSuffix(p.Pattern, "/") {
		return true
	}
	return endpoint[len(p.Pattern)] == '/'
}

// DefaultPolicies is the built-in endpoint table. Patterns are full request
// paths under the gated /api/v1 group. Anything not listed falls back to the
// caller's default budget.
func DefaultPolicies() []Policy {
	return []Policy{
		{Pattern: "/api/v1/search", MaxRequests: 10, Window: time.Minute},
		{Pattern: "/api/v1/payments/create-intent", MaxRequests: 5, Window: time.Minute},
		{Pattern: "/api/v1/payments/confirm", MaxRequests: 3, Window: time.Minute},
		{Pattern: "/api/v1/compare", MaxRequests: 20, Window: time.Minute},
	}
}

type policyFile struct {
	Policies []Policy `yaml:"policies"`
}

// LoadPolicies reads a YAML policy table:
//
//	policies:
//	  - pattern: /api/v1/search
//	    max_requests: 10
//	    window: 60s
func LoadPolicies(path string) ([]Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Policies))
	for _, p := range f.Policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.Pattern]; dup {
			return nil, fmt.Errorf("duplicate policy pattern %s", p.Pattern)
		}
		seen[p.Pattern] = struct{}{}
	}
	return f.Policies, nil
}

// sortPolicies orders longest pattern first so the most specific policy wins.
func sortPolicies(ps []Policy) []Policy {
	out := append([]Policy(nil), ps...)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Pattern) > len(out[j].Pattern)
	})
	return out
}
