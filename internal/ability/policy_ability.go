package ability

import (
	"fmt"

	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/store"
)

// PolicyAbility is the Ability of one user under a compiled policy. Later
// rules take precedence over earlier ones.
type PolicyAbility struct {
	rules []boundRule
}

type boundRule struct {
	compiledRule
	cond  store.Expr
	attrs map[string]any
}

// AbilityFor binds the policy to u. u may be nil.
func (cp *CompiledPolicy) AbilityFor(u *authn.User) *PolicyAbility {
	a := &PolicyAbility{}
	for _, r := range cp.rulesFor(u) {
		cond, attrs := r.bind(u)
		a.rules = append(a.rules, boundRule{compiledRule: r, cond: cond, attrs: attrs})
	}
	return a
}

// relevant returns the rules for action on the named subject, lowest
// precedence first.
func (a *PolicyAbility) relevant(action model.Action, subject string) []boundRule {
	var out []boundRule
	for _, r := range a.rules {
		if r.matchesAction(string(action)) && r.matchesSubject(subject) {
			out = append(out, r)
		}
	}
	return out
}

// Explain evaluates action on subject and reports the deciding rule.
func (a *PolicyAbility) Explain(action model.Action, subject model.Subject) Decision {
	if action == "" {
		return Deny("empty action")
	}
	name := model.SubjectName(subject)
	if name == "" {
		return Deny("unknown subject")
	}

	rules := a.relevant(action, name)
	rec, isRecord := subject.(model.Record)
	for i := len(rules) - 1; i >= 0; i-- {
		r := rules[i]
		if !r.hasConditions() {
			return decide(r)
		}
		if isRecord {
			if r.cond.Match(rec) {
				return decide(r)
			}
			continue
		}
		// class level: a conditional can is enough, a conditional cannot
		// does not rule out every instance
		if !r.inverted {
			return decide(r)
		}
	}
	return Deny("no matching rule")
}

func decide(r boundRule) Decision {
	if r.inverted {
		return Deny(r.reason())
	}
	return Allow(r.reason())
}

func (a *PolicyAbility) Can(action model.Action, subject model.Subject) bool {
	d := a.Explain(action, subject)
	recordCheck(action, d)
	return d.Allowed
}

func (a *PolicyAbility) AuthorizeOrFail(action model.Action, subject model.Subject) error {
	if a.Can(action, subject) {
		return nil
	}
	return Denied(action, subject)
}

func (a *PolicyAbility) AccessibleBy(m *model.Model, action model.Action) (*store.Scope, error) {
	if m == nil {
		return nil, fmt.Errorf("ability: accessible_by needs a model")
	}
	return store.NewScope(m, fold(a.relevant(action, m.Name))), nil
}

// fold turns rules (lowest precedence first) into one condition: each rule
// wraps the condition built from the rules it overrides.
func fold(rules []boundRule) store.Expr {
	expr := store.False()
	for _, r := range rules {
		switch {
		case !r.hasConditions() && !r.inverted:
			expr = store.True()
		case !r.hasConditions():
			expr = store.False()
		case !r.inverted:
			expr = store.Or(r.cond, expr)
		default:
			expr = store.And(store.Not(r.cond), expr)
		}
	}
	return expr
}

func (a *PolicyAbility) AttributesFor(action model.Action, m *model.Model) (map[string]any, error) {
	out := map[string]any{}
	if m == nil {
		return out, nil
	}
	for _, r := range a.relevant(action, m.Name) {
		if r.inverted {
			continue
		}
		for k, v := range r.attrs {
			out[k] = v
		}
	}
	return out, nil
}
