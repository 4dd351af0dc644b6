// Package ability defines the permission contract the admin layer delegates
// to, and ships a YAML policy backed implementation of it.
package ability

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/store"
)

// Ability answers "may this user do X to Y" for one user.
type Ability interface {
	// AuthorizeOrFail returns an error wrapping ErrAccessDenied when denied.
	AuthorizeOrFail(action model.Action, subject model.Subject) error
	Can(action model.Action, subject model.Subject) bool
	// AccessibleBy narrows m's records to those action is permitted on.
	AccessibleBy(m *model.Model, action model.Action) (*store.Scope, error)
	// AttributesFor returns attribute values implied by the rules for
	// action on m, used to prefill new records. m may be nil.
	AttributesFor(action model.Action, m *model.Model) (map[string]any, error)
}

// Factory builds the Ability of a user. user is nil for anonymous access.
type Factory func(user *authn.User) (Ability, error)

// DefaultName is the ability class used when none is configured.
const DefaultName = "Ability"

// Registry resolves configured ability class names to factories.
type Registry map[string]Factory

func (r Registry) Resolve(name string) (Factory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	f, ok := r[name]
	if !ok || f == nil {
		return nil, Misconfigured(fmt.Errorf("ability class %q is not registered", name))
	}
	return f, nil
}

var (
	ErrAccessDenied  = errors.New("access denied")
	ErrConfiguration = errors.New("authorization misconfigured")
)

const (
	CodeAccessDenied  = "ACCESS_DENIED"
	CodeConfiguration = "CONFIGURATION"
)

func Denied(action model.Action, subject model.Subject) error {
	name := model.SubjectName(subject)
	return oops.
		Code(CodeAccessDenied).
		With("action", string(action)).
		With("subject", name).
		Wrapf(ErrAccessDenied, "not authorized to %s %s", action, name)
}

func Misconfigured(cause error) error {
	return oops.
		Code(CodeConfiguration).
		Wrap(fmt.Errorf("%w: %w", ErrConfiguration, cause))
}
