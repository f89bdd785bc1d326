package rbac

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/classroom/pkg/auth"
)

// policyFile is the on-disk policy format:
//
//	rules:
//	  - pattern: /reports/
//	    prefix: true
//	    access: role_restricted
//	    role: ADMIN
//	  - pattern: /auth/register
//	    access: authenticated
type policyFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParsePolicy builds a policy from YAML. The file's rules are evaluated
// ahead of DefaultRules, so on an equal match they take precedence.
func ParsePolicy(data []byte) (*Policy, error) {
	var pf policyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	for i := range pf.Rules {
		if pf.Rules[i].Role != "" {
			role, err := auth.ParseRole(string(pf.Rules[i].Role))
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", pf.Rules[i].Pattern, err)
			}
			pf.Rules[i].Role = role
		}
	}

	return NewPolicy(append(pf.Rules, DefaultRules()...)...)
}

// LoadPolicyFile reads a YAML policy file. An empty path yields DefaultPolicy.
func LoadPolicyFile(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}
