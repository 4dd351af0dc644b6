package ability_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/authn"
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/store"
)

func abilityFor(t *testing.T, id string) *ability.PolicyAbility {
	t.Helper()
	cp, err := ability.Compile(testDoc())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if id == "" {
		return cp.AbilityFor(nil)
	}
	return cp.AbilityFor(&authn.User{Kind: "bearer", ID: id})
}

func TestCan_AdminPanelAccess(t *testing.T) {
	if !abilityFor(t, "alice").Can(model.ActionAccess, model.AdminPanel) {
		t.Fatalf("expected alice to access the admin panel")
	}
	if abilityFor(t, "").Can(model.ActionAccess, model.AdminPanel) {
		t.Fatalf("expected anonymous access to be denied")
	}
	if abilityFor(t, "mallory").Can(model.ActionAccess, model.AdminPanel) {
		t.Fatalf("expected unknown user to be denied")
	}
}

func TestCan_ConditionsOnInstances(t *testing.T) {
	a := abilityFor(t, "alice")

	if !a.Can(model.ActionUpdate, post(1, "alice", "draft")) {
		t.Fatalf("expected alice to update her own post")
	}
	if a.Can(model.ActionUpdate, post(2, "bob", "draft")) {
		t.Fatalf("expected alice not to update bob's post")
	}
	if !a.Can(model.ActionEdit, post(1, "alice", "draft")) {
		t.Fatalf("expected edit to follow the update rule")
	}
}

func TestCan_LaterInvertedRuleWins(t *testing.T) {
	a := abilityFor(t, "alice")

	if !a.Can(model.ActionDestroy, post(1, "alice", "draft")) {
		t.Fatalf("expected alice to destroy her draft")
	}
	if a.Can(model.ActionDestroy, post(1, "alice", "published")) {
		t.Fatalf("expected published post to be protected")
	}
	if a.Can(model.ActionBulkDelete, post(1, "alice", "published")) {
		t.Fatalf("expected bulk_delete to follow the destroy rules")
	}
}

func TestCan_ClassLevelIgnoresConditions(t *testing.T) {
	a := abilityFor(t, "alice")

	if !a.Can(model.ActionUpdate, postModel) {
		t.Fatalf("expected class level update to be allowed by a conditional rule")
	}
	if !a.Can(model.ActionDestroy, postModel) {
		t.Fatalf("expected conditional cannot not to deny the whole class")
	}
	if !a.Can(model.ActionIndex, postModel) {
		t.Fatalf("expected index to follow the read rule")
	}
	if a.Can(model.ActionExport, &model.Model{Name: "User", Table: "users"}) {
		t.Fatalf("expected alice not to export users")
	}
}

func TestCan_Symbols(t *testing.T) {
	a := abilityFor(t, "alice")

	if !a.Can(model.ActionRead, model.Symbol("dashboard_stats")) {
		t.Fatalf("expected dashboard widget to be readable")
	}
	if a.Can(model.ActionRead, model.Symbol("stats_widget")) {
		t.Fatalf("expected unrelated symbol to be denied")
	}
	if !abilityFor(t, "bob").Can(model.ActionRead, model.Symbol("anything")) {
		t.Fatalf("expected read on all to include symbols")
	}
}

func TestCan_ManageAll(t *testing.T) {
	a := abilityFor(t, "root")
	for _, act := range []model.Action{model.ActionAccess, model.ActionDestroy, "custom_action"} {
		if !a.Can(act, postModel) {
			t.Fatalf("expected manage to cover %q", act)
		}
	}
}

func TestCan_EmptyActionOrSubject(t *testing.T) {
	a := abilityFor(t, "root")
	if a.Can("", postModel) {
		t.Fatalf("expected empty action to be denied")
	}
	if a.Can(model.ActionRead, nil) {
		t.Fatalf("expected nil subject to be denied")
	}
}

func TestAuthorizeOrFail(t *testing.T) {
	a := abilityFor(t, "bob")

	if err := a.AuthorizeOrFail(model.ActionShow, post(1, "alice", "draft")); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	err := a.AuthorizeOrFail(model.ActionDestroy, post(1, "alice", "draft"))
	if !errors.Is(err, ability.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		t.Fatalf("expected oops error, got %T", err)
	}
	if oopsErr.Code() != ability.CodeAccessDenied {
		t.Fatalf("expected code %s, got %v", ability.CodeAccessDenied, oopsErr.Code())
	}
	if oopsErr.Context()["subject"] != "Post" {
		t.Fatalf("expected subject Post in context, got %v", oopsErr.Context())
	}
}

func TestExplain_ReportsRule(t *testing.T) {
	d := abilityFor(t, "alice").Explain(model.ActionDestroy, post(1, "alice", "published"))
	if d.Allowed {
		t.Fatalf("expected deny")
	}
	if d.Reason != "role=author rule=3 cannot" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestAccessibleBy(t *testing.T) {
	a := abilityFor(t, "alice")

	sc, err := a.AccessibleBy(postModel, model.ActionDestroy)
	if err != nil {
		t.Fatalf("AccessibleBy: %v", err)
	}
	cases := []struct {
		row  *model.Row
		want bool
	}{
		{post(1, "alice", "draft"), true},
		{post(2, "alice", "published"), false},
		{post(3, "bob", "draft"), false},
	}
	for _, c := range cases {
		if got := sc.Matches(c.row); got != c.want {
			t.Fatalf("row %v: expected %v, got %v", c.row.ID(), c.want, got)
		}
		if got := a.Can(model.ActionDestroy, c.row); got != c.want {
			t.Fatalf("row %v: Can disagrees with scope", c.row.ID())
		}
	}

	sc, _ = abilityFor(t, "bob").AccessibleBy(postModel, model.ActionDestroy)
	if !sc.Empty() {
		t.Fatalf("expected empty scope for bob")
	}

	sc, _ = abilityFor(t, "root").AccessibleBy(postModel, model.ActionDestroy)
	if v, ok := store.IsConst(sc.Condition()); !ok || !v {
		t.Fatalf("expected unrestricted scope for root")
	}
}

func TestAccessibleBy_ListCondition(t *testing.T) {
	a := abilityFor(t, "")
	sc, err := a.AccessibleBy(postModel, model.ActionIndex)
	if err != nil {
		t.Fatalf("AccessibleBy: %v", err)
	}

	q, args, err := sc.SQL()
	if err != nil {
		t.Fatalf("SQL: %v", err)
	}
	want := `SELECT * FROM "posts" WHERE "status" IN (?,?) ORDER BY "id"`
	if q != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", q, want)
	}
	if len(args) != 2 || args[0] != "published" || args[1] != "featured" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestAccessibleBy_NilModel(t *testing.T) {
	if _, err := abilityFor(t, "root").AccessibleBy(nil, model.ActionIndex); err == nil {
		t.Fatalf("expected error for nil model")
	}
}

func TestAttributesFor(t *testing.T) {
	attrs, err := abilityFor(t, "alice").AttributesFor(model.ActionCreate, postModel)
	if err != nil {
		t.Fatalf("AttributesFor: %v", err)
	}
	if len(attrs) != 1 || attrs["author_id"] != "alice" {
		t.Fatalf("unexpected attributes %v", attrs)
	}

	attrs, _ = abilityFor(t, "alice").AttributesFor(model.ActionCreate, nil)
	if len(attrs) != 0 {
		t.Fatalf("expected no attributes without a model, got %v", attrs)
	}

	attrs, _ = abilityFor(t, "").AttributesFor(model.ActionIndex, postModel)
	if len(attrs) != 0 {
		t.Fatalf("expected list conditions to be skipped, got %v", attrs)
	}
}

func TestUnresolvedPlaceholderNeverMatches(t *testing.T) {
	doc := testDoc()
	doc.Subjects = append(doc.Subjects, policyAnyone())
	doc.Bindings = append(doc.Bindings, bindAnyone("author"))

	cp, err := ability.Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	a := cp.AbilityFor(nil)
	if a.Can(model.ActionUpdate, post(1, "", "draft")) {
		t.Fatalf("expected $user.id on anonymous user never to match")
	}
	attrs, _ := a.AttributesFor(model.ActionCreate, postModel)
	if len(attrs) != 0 {
		t.Fatalf("expected no attributes, got %v", attrs)
	}
}
