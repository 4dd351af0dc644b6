// Package acl provides an ability class backed by a casbin model and policy.
// Rules are (subject, object, action) triples without conditions, so records
// are authorized by their model and queries are all-or-nothing.
package acl

import (
	"github.com/casbin/casbin"
	"github.com/samber/oops"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/store"
)

// ClassName is the name the ACL ability is registered under.
const ClassName = "ACL"

// AnonymousSubject is the casbin subject used for requests without a user.
const AnonymousSubject = "anonymous"

type Enforcer struct {
	enforcer *casbin.Enforcer
}

// New takes paths to a casbin model file and a CSV policy file.
func New(modelPath, policyPath string) (*Enforcer, error) {
	e, err := casbin.NewEnforcerSafe(modelPath, policyPath)
	if err != nil {
		return nil, oops.Code("ACL_INVALID").With("model", modelPath).With("policy", policyPath).Wrap(err)
	}
	return &Enforcer{enforcer: e}, nil
}

// New is an ability.Factory.
func (e *Enforcer) New(u *authn.User) (ability.Ability, error) {
	sub := AnonymousSubject
	if u != nil {
		sub = u.ID
	}
	return &Ability{enforcer: e.enforcer, subject: sub}, nil
}

type Ability struct {
	enforcer *casbin.Enforcer
	subject  string
}

func (a *Ability) Can(action model.Action, subject model.Subject) bool {
	obj := model.SubjectName(subject)
	if action == "" || obj == "" {
		return false
	}
	candidates := append([]string{string(action)}, ability.Aliases[string(action)]...)
	for _, act := range candidates {
		ok, err := a.enforcer.EnforceSafe(a.subject, obj, act)
		if err == nil && ok {
			return true
		}
	}
	return false
}

func (a *Ability) AuthorizeOrFail(action model.Action, subject model.Subject) error {
	if a.Can(action, subject) {
		return nil
	}
	return ability.Denied(action, subject)
}

func (a *Ability) AccessibleBy(m *model.Model, action model.Action) (*store.Scope, error) {
	if m == nil {
		return nil, oops.Code("ACL_NO_MODEL").Errorf("accessible_by needs a model")
	}
	cond := store.False()
	if a.Can(action, m) {
		cond = store.True()
	}
	return store.NewScope(m, cond), nil
}

// AttributesFor is always empty, ACL rules carry no attribute values.
func (a *Ability) AttributesFor(action model.Action, m *model.Model) (map[string]any, error) {
	return map[string]any{}, nil
}
