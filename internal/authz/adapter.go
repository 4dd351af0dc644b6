// Package authz translates admin actions into ability checks.
package authz

import (
	"errors"
	"reflect"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/store"
)

type Adapter struct {
	rc *RequestContext
}

// New binds factory to rc and checks that the current user may access the
// admin panel at all. A denial is returned as an error wrapping
// ability.ErrAccessDenied and no adapter is created.
func New(rc *RequestContext, factory ability.Factory) (*Adapter, error) {
	if rc == nil {
		return nil, ability.Misconfigured(errors.New("request context is nil"))
	}
	if factory == nil {
		return nil, ability.Misconfigured(errors.New("ability class is nil"))
	}
	rc.bind(factory)

	a, err := rc.CurrentAbility()
	if err != nil {
		return nil, err
	}
	if err := a.AuthorizeOrFail(model.ActionAccess, model.AdminPanel); err != nil {
		return nil, err
	}
	return &Adapter{rc: rc}, nil
}

func (ad *Adapter) RequestContext() *RequestContext { return ad.rc }

// Authorize is called by every admin action. action is the action name
// (create, bulk_delete, ...), am the model it applies to and obj the record
// when there is one. An empty action is a no-op.
func (ad *Adapter) Authorize(action model.Action, am model.AbstractModel, obj model.Record) error {
	if action == "" {
		return nil
	}
	a, err := ad.rc.CurrentAbility()
	if err != nil {
		return err
	}
	act, subject := Resolve(action, am, obj)
	return a.AuthorizeOrFail(act, subject)
}

// Authorized takes the same arguments as Authorize and reports the outcome
// instead of failing.
func (ad *Adapter) Authorized(action model.Action, am model.AbstractModel, obj model.Record) bool {
	if action == "" {
		return false
	}
	a, err := ad.rc.CurrentAbility()
	if err != nil {
		return false
	}
	act, subject := Resolve(action, am, obj)
	return a.Can(act, subject)
}

// Query returns am's records narrowed to those the user may perform action on.
func (ad *Adapter) Query(action model.Action, am model.AbstractModel) (*store.Scope, error) {
	a, err := ad.rc.CurrentAbility()
	if err != nil {
		return nil, err
	}
	return a.AccessibleBy(modelOf(am), action)
}

// AttributesFor returns the attributes a new record gets so that it matches
// what the user may create.
func (ad *Adapter) AttributesFor(action model.Action, am model.AbstractModel) (map[string]any, error) {
	a, err := ad.rc.CurrentAbility()
	if err != nil {
		return nil, err
	}
	return a.AttributesFor(action, modelOf(am))
}

// Resolve returns the (action, subject) pair Authorize and Authorized check:
// the record, else the model. With neither, the action name itself becomes
// the subject of a read check, which is how dashboard widgets are authorized.
// Typed nil arguments count as absent.
func Resolve(action model.Action, am model.AbstractModel, obj model.Record) (model.Action, model.Subject) {
	var subject model.Subject
	if !isNil(obj) {
		subject = obj
	} else if m := modelOf(am); m != nil {
		subject = m
	}
	if subject != nil {
		return action, subject
	}
	return model.ActionRead, model.Symbol(action)
}

func modelOf(am model.AbstractModel) *model.Model {
	if isNil(am) {
		return nil
	}
	return am.Model()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	}
	return false
}
