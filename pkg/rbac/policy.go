package rbac

import (
	"fmt"
	"path"
	"strings"

	"github.com/platinummonkey/classroom/pkg/auth"
)

// Access is the protection class of a route
type Access string

const (
	// AccessPublic permits every caller, anonymous included
	AccessPublic Access = "public"
	// AccessAuthenticated requires any principal
	AccessAuthenticated Access = "authenticated"
	// AccessRoleRestricted requires a principal holding Rule.Role
	AccessRoleRestricted Access = "role_restricted"
)

// Valid reports whether a is a known access class
func (a Access) Valid() bool {
	switch a {
	case AccessPublic, AccessAuthenticated, AccessRoleRestricted:
		return true
	}
	return false
}

// Rule classifies the routes matching Pattern
type Rule struct {
	// Pattern is an absolute path. With Prefix it also matches every path below it.
	Pattern string `yaml:"pattern"`
	Prefix  bool   `yaml:"prefix,omitempty"`
	// Methods limits the rule to these HTTP methods; empty matches all
	Methods []string  `yaml:"methods,omitempty"`
	Access  Access    `yaml:"access"`
	Role    auth.Role `yaml:"role,omitempty"`
}

// Validate checks that the rule is well formed
func (r Rule) Validate() error {
	if !strings.HasPrefix(r.Pattern, "/") {
		return fmt.Errorf("rule pattern %q must start with /", r.Pattern)
	}
	if !r.Access.Valid() {
		return fmt.Errorf("rule %q: unknown access %q", r.Pattern, r.Access)
	}
	if r.Access == AccessRoleRestricted && !r.Role.Valid() {
		return fmt.Errorf("rule %q: role_restricted needs a valid role, got %q", r.Pattern, r.Role)
	}
	if r.Access != AccessRoleRestricted && r.Role != "" {
		return fmt.Errorf("rule %q: role is only allowed with role_restricted", r.Pattern)
	}
	return nil
}

func (r Rule) matchesMethod(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func (r Rule) matchesPath(p string) bool {
	if !r.Prefix {
		return p == r.Pattern
	}
	if strings.HasPrefix(p, r.Pattern) {
		return true
	}
	// "/admin/" also covers "/admin"
	trimmed := strings.TrimSuffix(r.Pattern, "/")
	return trimmed != "" && p == trimmed
}

// Evaluate applies a single rule to a principal: nil, ErrUnauthenticated or ErrForbidden
func Evaluate(rule Rule, principal *auth.Principal) error {
	if rule.Access == AccessPublic {
		return nil
	}
	if principal == nil {
		return auth.ErrUnauthenticated
	}
	if rule.Access == AccessRoleRestricted && !principal.HasRole(rule.Role) {
		return auth.ErrForbidden
	}
	return nil
}

// RequireRole returns the rule a handler can Evaluate to demand role
func RequireRole(role auth.Role) Rule {
	return Rule{Pattern: "/", Prefix: true, Access: AccessRoleRestricted, Role: role}
}

// Policy maps routes to access classes. It is immutable after construction
// and safe for concurrent use.
type Policy struct {
	rules    []Rule
	fallback Rule
}

// NewPolicy builds a policy. Routes matched by no rule require authentication.
func NewPolicy(rules ...Rule) (*Policy, error) {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Policy{
		rules:    copied,
		fallback: Rule{Pattern: "/", Prefix: true, Access: AccessAuthenticated},
	}, nil
}

// DefaultRules are the built-in route classes
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/auth/login", Access: AccessPublic},
		{Pattern: "/auth/register", Access: AccessPublic},
		{Pattern: "/healthz", Access: AccessPublic},
		{Pattern: "/readyz", Access: AccessPublic},
		{Pattern: "/admin/", Prefix: true, Access: AccessRoleRestricted, Role: auth.RoleAdmin},
		{Pattern: "/student/", Prefix: true, Access: AccessRoleRestricted, Role: auth.RoleStudent},
	}
}

// DefaultPolicy returns the built-in policy: login, registration entry and
// health probes are public, /admin/ needs ADMIN, /student/ needs STUDENT and
// everything else needs any authenticated principal
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRules()...)
	if err != nil {
		panic(err)
	}
	return p
}

// Rules returns a copy of the configured rules in evaluation order
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Classify returns the rule governing method and path. An exact match beats
// any prefix match, a longer pattern beats a shorter one, a method-specific
// rule beats a generic one, and on a full tie the earlier rule wins.
func (p *Policy) Classify(method, urlPath string) Rule {
	cleaned := cleanPath(urlPath)

	best := -1
	var bestScore [3]int
	for i, r := range p.rules {
		if !r.matchesMethod(method) || !r.matchesPath(cleaned) {
			continue
		}
		score := [3]int{0, len(r.Pattern), 0}
		if !r.Prefix {
			score[0] = 1
		}
		if len(r.Methods) > 0 {
			score[2] = 1
		}
		if best < 0 || better(score, bestScore) {
			best = i
			bestScore = score
		}
	}

	if best < 0 {
		return p.fallback
	}
	return p.rules[best]
}

func better(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// Authorize decides whether principal (nil when anonymous) may call method on path
func (p *Policy) Authorize(method, urlPath string, principal *auth.Principal) error {
	return Evaluate(p.Classify(method, urlPath), principal)
}

// cleanPath resolves dot segments so "/public/../admin/x" is classified as "/admin/x"
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}
