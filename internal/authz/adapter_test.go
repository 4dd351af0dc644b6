package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/authz"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/store"
)

type check struct {
	method  string
	action  model.Action
	subject model.Subject
}

// fakeAbility records every call and allows what allow says.
type fakeAbility struct {
	user  *authn.User
	calls []check
	allow func(model.Action, model.Subject) bool
	attrs map[string]any
}

func (f *fakeAbility) AuthorizeOrFail(action model.Action, subject model.Subject) error {
	f.calls = append(f.calls, check{"authorize", action, subject})
	if f.allow(action, subject) {
		return nil
	}
	return ability.Denied(action, subject)
}

func (f *fakeAbility) Can(action model.Action, subject model.Subject) bool {
	f.calls = append(f.calls, check{"can", action, subject})
	return f.allow(action, subject)
}

func (f *fakeAbility) AccessibleBy(m *model.Model, action model.Action) (*store.Scope, error) {
	f.calls = append(f.calls, check{"accessible_by", action, m})
	if m == nil {
		return nil, errors.New("no model")
	}
	return store.NewScope(m, store.Eq("author_id", f.user.ID)), nil
}

func (f *fakeAbility) AttributesFor(action model.Action, m *model.Model) (map[string]any, error) {
	f.calls = append(f.calls, check{"attributes_for", action, m})
	return f.attrs, nil
}

func (f *fakeAbility) last() check { return f.calls[len(f.calls)-1] }

var (
	postModel = &model.Model{Name: "Post", Table: "posts", PrimaryKey: "id", Columns: []string{"id", "author_id"}}
	postDesc  = model.NewDescriptor(postModel)
)

func allowAll(model.Action, model.Subject) bool { return true }

// factory returns an ability.Factory that hands out fakes and counts builds.
func factory(allow func(model.Action, model.Subject) bool, built *[]*fakeAbility) ability.Factory {
	return func(u *authn.User) (ability.Ability, error) {
		f := &fakeAbility{user: u, allow: allow, attrs: map[string]any{"author_id": "alice"}}
		*built = append(*built, f)
		return f, nil
	}
}

func requestFor(id string) *authz.RequestContext {
	ctx := context.Background()
	if id != "" {
		ctx = authn.WithUser(ctx, &authn.User{Kind: "bearer", ID: id})
	}
	return authz.NewRequestContext(ctx, authn.DefaultMethods(), "")
}

func newAdapter(t *testing.T, allow func(model.Action, model.Subject) bool) (*authz.Adapter, *fakeAbility) {
	t.Helper()
	var built []*fakeAbility
	ad, err := authz.New(requestFor("alice"), factory(allow, &built))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ad, built[0]
}

func TestNew_ChecksAdminPanelAccess(t *testing.T) {
	ad, f := newAdapter(t, allowAll)
	if ad == nil {
		t.Fatalf("expected adapter")
	}
	if len(f.calls) != 1 {
		t.Fatalf("expected exactly one startup check, got %d", len(f.calls))
	}
	want := check{"authorize", model.ActionAccess, model.AdminPanel}
	if f.calls[0] != want {
		t.Fatalf("expected %+v, got %+v", want, f.calls[0])
	}
	if f.user == nil || f.user.ID != "alice" {
		t.Fatalf("expected ability built for alice, got %+v", f.user)
	}
}

func TestNew_DeniedWithoutAccess(t *testing.T) {
	var built []*fakeAbility
	noPanel := func(a model.Action, s model.Subject) bool { return a != model.ActionAccess }

	ad, err := authz.New(requestFor("bob"), factory(noPanel, &built))
	if !errors.Is(err, ability.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if ad != nil {
		t.Fatalf("expected no adapter on denial")
	}
}

func TestNew_ConfigurationErrors(t *testing.T) {
	if _, err := authz.New(requestFor("alice"), nil); !errors.Is(err, ability.ErrConfiguration) {
		t.Fatalf("nil factory: expected ErrConfiguration, got %v", err)
	}

	var built []*fakeAbility
	rc := authz.NewRequestContext(context.Background(), authn.DefaultMethods(), "current_person")
	_, err := authz.New(rc, factory(allowAll, &built))
	if !errors.Is(err, ability.ErrConfiguration) || !errors.Is(err, authn.ErrUnknownMethod) {
		t.Fatalf("unknown method: expected ErrConfiguration wrapping ErrUnknownMethod, got %v", err)
	}
	if len(built) != 0 {
		t.Fatalf("expected no ability to be built")
	}

	broken := func(*authn.User) (ability.Ability, error) { return nil, nil }
	if _, err := authz.New(requestFor("alice"), broken); !errors.Is(err, ability.ErrConfiguration) {
		t.Fatalf("nil ability: expected ErrConfiguration, got %v", err)
	}
}

func TestNew_AnonymousUser(t *testing.T) {
	var built []*fakeAbility
	if _, err := authz.New(requestFor(""), factory(allowAll, &built)); err != nil {
		t.Fatalf("New: %v", err)
	}
	if built[0].user != nil {
		t.Fatalf("expected nil user for anonymous request")
	}
}

func TestCurrentAbility_Memoized(t *testing.T) {
	var built []*fakeAbility
	rc := requestFor("alice")
	ad, err := authz.New(rc, factory(allowAll, &built))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, _ := rc.CurrentAbility()
	second, _ := rc.CurrentAbility()
	if first != second {
		t.Fatalf("expected the same ability instance")
	}

	_ = ad.Authorize(model.ActionEdit, postDesc, nil)
	_ = ad.Authorized(model.ActionShow, postDesc, nil)
	_, _ = ad.Query(model.ActionIndex, postDesc)
	_, _ = ad.AttributesFor(model.ActionCreate, postDesc)

	if len(built) != 1 {
		t.Fatalf("expected ability to be built once, got %d", len(built))
	}
	if ad.RequestContext() != rc {
		t.Fatalf("expected adapter to keep its request context")
	}
}

func denyAll(model.Action, model.Subject) bool { return false }

func TestAuthorize_FalsyActionIsNoop(t *testing.T) {
	ad, f := newAdapter(t, allowAll)
	f.allow = denyAll
	before := len(f.calls)

	if err := ad.Authorize("", postDesc, nil); err != nil {
		t.Fatalf("expected no error for empty action, got %v", err)
	}
	if ad.Authorized("", postDesc, nil) {
		t.Fatalf("expected false for empty action")
	}
	if len(f.calls) != before {
		t.Fatalf("expected no ability calls for empty action")
	}
}

func TestResolve_RecordWinsOverModel(t *testing.T) {
	ad, f := newAdapter(t, allowAll)
	row := model.NewRow(postModel, map[string]any{"id": int64(7)})

	if err := ad.Authorize(model.ActionEdit, postDesc, row); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	want := check{"authorize", model.ActionEdit, row}
	if got := f.last(); got.method != want.method || got.action != want.action || got.subject != model.Subject(row) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	// record without model descriptor
	ad.Authorized(model.ActionShow, nil, row)
	if got := f.last(); got.action != model.ActionShow || got.subject != model.Subject(row) {
		t.Fatalf("expected (show, row), got %+v", got)
	}
}

func TestResolve_ModelWhenNoRecord(t *testing.T) {
	ad, f := newAdapter(t, allowAll)

	ad.Authorized(model.ActionNew, postDesc, nil)
	got := f.last()
	if got.action != model.ActionNew || got.subject != model.Subject(postModel) {
		t.Fatalf("expected (new, Post), got %+v", got)
	}
}

func TestResolve_DashboardFallback(t *testing.T) {
	ad, f := newAdapter(t, allowAll)

	if err := ad.Authorize("dashboard_widget_x", nil, nil); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	got := f.last()
	if got.action != model.ActionRead || got.subject != model.Subject(model.Symbol("dashboard_widget_x")) {
		t.Fatalf("expected (read, dashboard_widget_x), got %+v", got)
	}

	// a real CRUD action without a model is reinterpreted the same way
	ad.Authorized(model.ActionDestroy, nil, nil)
	got = f.last()
	if got.action != model.ActionRead || got.subject != model.Subject(model.Symbol("destroy")) {
		t.Fatalf("expected (read, destroy), got %+v", got)
	}
}

func TestResolve_TypedNilsAreAbsent(t *testing.T) {
	ad, f := newAdapter(t, allowAll)

	var desc *model.Descriptor
	var row *model.Row
	ad.Authorized(model.ActionDashboard, desc, row)
	got := f.last()
	if got.action != model.ActionRead || got.subject != model.Subject(model.Symbol("dashboard")) {
		t.Fatalf("expected (read, dashboard), got %+v", got)
	}
}

func TestAuthorize_PropagatesDenial(t *testing.T) {
	ad, f := newAdapter(t, allowAll)
	f.allow = denyAll

	err := ad.Authorize(model.ActionDestroy, postDesc, nil)
	if !errors.Is(err, ability.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestAuthorized_MirrorsCan(t *testing.T) {
	ad, f := newAdapter(t, allowAll)
	f.allow = func(a model.Action, s model.Subject) bool {
		return a == model.ActionShow
	}

	if !ad.Authorized(model.ActionShow, postDesc, nil) {
		t.Fatalf("expected show to be authorized")
	}
	if ad.Authorized(model.ActionDestroy, postDesc, nil) {
		t.Fatalf("expected destroy to be denied")
	}
	if got := f.last(); got.method != "can" {
		t.Fatalf("expected Authorized to use Can, got %s", got.method)
	}
}

func TestQuery_DelegatesToAbility(t *testing.T) {
	ad, f := newAdapter(t, allowAll)

	sc, err := ad.Query(model.ActionIndex, postDesc)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if sc.Model() != postModel {
		t.Fatalf("expected scope over Post")
	}
	got := f.last()
	if got.method != "accessible_by" || got.action != model.ActionIndex || got.subject != model.Subject(postModel) {
		t.Fatalf("unexpected call %+v", got)
	}

	if _, err := ad.Query(model.ActionIndex, nil); err == nil {
		t.Fatalf("expected ability error to propagate")
	}
}

func TestAttributesFor(t *testing.T) {
	ad, f := newAdapter(t, allowAll)

	attrs, err := ad.AttributesFor(model.ActionCreate, postDesc)
	if err != nil {
		t.Fatalf("AttributesFor: %v", err)
	}
	if attrs["author_id"] != "alice" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if got := f.last(); got.subject != model.Subject(postModel) {
		t.Fatalf("expected Post model, got %+v", got.subject)
	}

	_, _ = ad.AttributesFor(model.ActionCreate, nil)
	got := f.last()
	if m, ok := got.subject.(*model.Model); !ok || m != nil {
		t.Fatalf("expected nil model to be passed through, got %#v", got.subject)
	}
}

func TestResolvePairs(t *testing.T) {
	desc := model.NewDescriptor(postModel)
	row := model.NewRow(postModel, map[string]any{"id": int64(1)})
	var nilRow *model.Row

	tests := []struct {
		name        string
		am          model.AbstractModel
		obj         model.Record
		wantAction  model.Action
		wantSubject model.Subject
	}{
		{"record", desc, row, model.ActionEdit, row},
		{"model", desc, nil, model.ActionEdit, postModel},
		{"typed nil record", desc, nilRow, model.ActionEdit, postModel},
		{"neither", nil, nil, model.ActionRead, model.Symbol("edit")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, subject := authz.Resolve(model.ActionEdit, tt.am, tt.obj)
			if act != tt.wantAction || subject != tt.wantSubject {
				t.Fatalf("got (%s, %v), want (%s, %v)", act, subject, tt.wantAction, tt.wantSubject)
			}
		})
	}
}
