package authz

import (
	"context"
	"errors"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/authn"
)

// RequestContext is the per-request state the adapter works on. The ability
// is built on first use and reused for the rest of the request. It is not
// safe for concurrent use; each request owns its own RequestContext.
type RequestContext struct {
	ctx        context.Context
	methods    authn.Methods
	methodName string

	factory    ability.Factory
	current    ability.Ability
	currentErr error
	built      bool
}

// NewRequestContext resolves the current user through the method registered
// under methodName (authn.MethodCurrentUser when empty).
func NewRequestContext(ctx context.Context, methods authn.Methods, methodName string) *RequestContext {
	if methodName == "" {
		methodName = authn.MethodCurrentUser
	}
	return &RequestContext{ctx: ctx, methods: methods, methodName: methodName}
}

func (rc *RequestContext) Context() context.Context { return rc.ctx }

func (rc *RequestContext) bind(f ability.Factory) {
	rc.factory = f
	rc.current, rc.currentErr, rc.built = nil, nil, false
}

func (rc *RequestContext) CurrentUser() (*authn.User, error) {
	fn, err := rc.methods.Lookup(rc.methodName)
	if err != nil {
		return nil, ability.Misconfigured(err)
	}
	return fn(rc.ctx)
}

// CurrentAbility builds the ability once and returns the same instance (or
// the same error) on every later call.
func (rc *RequestContext) CurrentAbility() (ability.Ability, error) {
	if rc.built {
		return rc.current, rc.currentErr
	}
	rc.built = true
	rc.current, rc.currentErr = rc.buildAbility()
	return rc.current, rc.currentErr
}

func (rc *RequestContext) buildAbility() (ability.Ability, error) {
	if rc.factory == nil {
		return nil, ability.Misconfigured(errors.New("no ability class bound to the request"))
	}
	u, err := rc.CurrentUser()
	if err != nil {
		return nil, err
	}
	a, err := rc.factory(u)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ability.Misconfigured(errors.New("ability class returned no ability"))
	}
	return a, nil
}
