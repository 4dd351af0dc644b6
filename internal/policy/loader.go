package policy

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

func LoadFromFile(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

func Validate(d *Document) error {
	if strings.TrimSpace(d.APIVersion) == "" {
		return fmt.Errorf("policy: apiVersion missing")
	}
	if strings.TrimSpace(d.Kind) == "" {
		return fmt.Errorf("policy: kind missing")
	}

	subjectNames := map[string]struct{}{}
	for _, s := range d.Subjects {
		if s.Name == "" || s.Match.Kind == "" {
			return fmt.Errorf("policy: subject missing fields")
		}
		switch s.Match.Kind {
		case MatchUser:
			if s.Match.Name == "" {
				return fmt.Errorf("policy: subject %q matches kind user without a name", s.Name)
			}
		case MatchAnonymous, MatchAny:
		default:
			return fmt.Errorf("policy: subject %q has unknown match kind %q", s.Name, s.Match.Kind)
		}
		if _, ok := subjectNames[s.Name]; ok {
			return fmt.Errorf("policy: duplicate subject name %q", s.Name)
		}
		subjectNames[s.Name] = struct{}{}
	}

	roleNames := map[string]struct{}{}
	for _, r := range d.Roles {
		if r.Name == "" {
			return fmt.Errorf("policy: role name missing")
		}
		if _, ok := roleNames[r.Name]; ok {
			return fmt.Errorf("policy: duplicate role name %q", r.Name)
		}
		roleNames[r.Name] = struct{}{}

		for i, rule := range r.Rules {
			if err := validateRule(rule); err != nil {
				return fmt.Errorf("policy: role %q rule %d: %w", r.Name, i, err)
			}
		}
	}

	for _, b := range d.Bindings {
		if _, ok := subjectNames[b.Subject]; !ok {
			return fmt.Errorf("policy: binding references unknown subject %q", b.Subject)
		}
		for _, rn := range b.Roles {
			if _, ok := roleNames[rn]; !ok {
				return fmt.Errorf("policy: binding references unknown role %q", rn)
			}
		}
	}

	return nil
}

func validateRule(r Rule) error {
	if len(r.Actions) == 0 {
		return fmt.Errorf("actions missing")
	}
	if len(r.Subjects) == 0 {
		return fmt.Errorf("subjects missing")
	}
	for _, p := range append(append([]string{}, r.Actions...), r.Subjects...) {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("empty pattern")
		}
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	for attr, v := range r.Conditions {
		if strings.TrimSpace(attr) == "" {
			return fmt.Errorf("empty condition attribute")
		}
		if err := validateConditionValue(v); err != nil {
			return fmt.Errorf("condition %q: %w", attr, err)
		}
	}
	return nil
}

func validateConditionValue(v any) error {
	switch x := v.(type) {
	case nil, string, bool, int, int64, float64:
		return nil
	case []any:
		for _, item := range x {
			if _, isList := item.([]any); isList {
				return fmt.Errorf("nested lists are not supported")
			}
			if err := validateConditionValue(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}
