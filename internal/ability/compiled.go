package ability

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/policy"
	"github.com/timgst1/adminguard/internal/store"
)

type CompiledPolicy struct {
	subjects []compiledSubject

	//subjectAlias -> roleNames
	rolesBySubject map[string][]string

	//roleName -> rules in definition order
	rulesByRole map[string][]compiledRule
}

type compiledSubject struct {
	alias string
	kind  string
	name  string
}

type compiledRule struct {
	role  string
	index int

	actions  []pattern
	subjects []pattern

	conditions map[string]any
	inverted   bool
}

type pattern struct {
	raw string
	g   glob.Glob
}

func Compile(doc *policy.Document) (*CompiledPolicy, error) {
	if doc == nil {
		return nil, errors.New("policy document is nil")
	}

	cp := &CompiledPolicy{
		rolesBySubject: map[string][]string{},
		rulesByRole:    map[string][]compiledRule{},
	}

	for _, s := range doc.Subjects {
		cp.subjects = append(cp.subjects, compiledSubject{
			alias: s.Name,
			kind:  strings.TrimSpace(s.Match.Kind),
			name:  strings.TrimSpace(s.Match.Name),
		})
	}

	for _, r := range doc.Roles {
		rules := make([]compiledRule, 0, len(r.Rules))
		for i, rule := range r.Rules {
			cr := compiledRule{
				role:       r.Name,
				index:      i,
				conditions: rule.Conditions,
				inverted:   rule.Inverted,
			}
			var err error
			if cr.actions, err = compilePatterns(rule.Actions); err != nil {
				return nil, fmt.Errorf("policy: role %q rule %d: %w", r.Name, i, err)
			}
			if cr.subjects, err = compilePatterns(rule.Subjects); err != nil {
				return nil, fmt.Errorf("policy: role %q rule %d: %w", r.Name, i, err)
			}
			rules = append(rules, cr)
		}
		cp.rulesByRole[r.Name] = rules
	}

	for _, b := range doc.Bindings {
		cp.rolesBySubject[b.Subject] = append(cp.rolesBySubject[b.Subject], b.Roles...)
	}

	return cp, nil
}

func compilePatterns(raw []string) ([]pattern, error) {
	out := make([]pattern, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, pattern{raw: p, g: g})
	}
	return out, nil
}

// rulesFor returns the rules that apply to u, lowest precedence first.
func (cp *CompiledPolicy) rulesFor(u *authn.User) []compiledRule {
	var out []compiledRule
	seen := map[string]bool{}
	for _, s := range cp.subjects {
		if !s.matches(u) {
			continue
		}
		for _, rn := range cp.rolesBySubject[s.alias] {
			if seen[rn] {
				continue
			}
			seen[rn] = true
			out = append(out, cp.rulesByRole[rn]...)
		}
	}
	return out
}

func (s compiledSubject) matches(u *authn.User) bool {
	switch s.kind {
	case policy.MatchAny:
		return true
	case policy.MatchAnonymous:
		return u == nil
	case policy.MatchUser:
		return u != nil && u.ID == s.name
	default:
		return false
	}
}

func (r compiledRule) hasConditions() bool { return len(r.conditions) > 0 }

func (r compiledRule) reason() string {
	verb := "can"
	if r.inverted {
		verb = "cannot"
	}
	return fmt.Sprintf("role=%s rule=%d %s", r.role, r.index, verb)
}

func (r compiledRule) matchesAction(action string) bool {
	candidates := append([]string{action}, Aliases[action]...)
	for _, p := range r.actions {
		if p.raw == ManageAction {
			return true
		}
		for _, c := range candidates {
			if p.g.Match(c) {
				return true
			}
		}
	}
	return false
}

func (r compiledRule) matchesSubject(name string) bool {
	for _, p := range r.subjects {
		if p.raw == AllSubjects {
			return true
		}
		if name != "" && p.g.Match(name) {
			return true
		}
	}
	return false
}

// bind resolves $user placeholders. The returned expression is False when a
// placeholder cannot be resolved, and attrs only carries scalar values.
func (r compiledRule) bind(u *authn.User) (cond store.Expr, attrs map[string]any) {
	cond = store.True()
	attrs = map[string]any{}

	keys := make([]string, 0, len(r.conditions))
	for k := range r.conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resolved := true
	for _, k := range keys {
		switch v := r.conditions[k].(type) {
		case []any:
			vals := make([]any, 0, len(v))
			for _, item := range v {
				if rv, ok := resolve(item, u); ok {
					vals = append(vals, rv)
				}
			}
			cond = store.And(cond, store.In(k, vals))
		default:
			rv, ok := resolve(v, u)
			if !ok {
				resolved = false
				continue
			}
			cond = store.And(cond, store.Eq(k, rv))
			attrs[k] = rv
		}
	}
	if !resolved {
		return store.False(), nil
	}
	return cond, attrs
}

const userPlaceholder = "$user."

func resolve(v any, u *authn.User) (any, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, userPlaceholder) {
		return v, true
	}
	return u.Attr(strings.TrimPrefix(s, userPlaceholder))
}
