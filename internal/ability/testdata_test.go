package ability_test

import (
	"github.com/timgst1/adminguard/internal/model"
	"github.com/timgst1/adminguard/internal/policy"
)

var postModel = &model.Model{
	Name:       "Post",
	Table:      "posts",
	PrimaryKey: "id",
	Columns:    []string{"id", "title", "author_id", "status"},
}

func post(id int, author, status string) *model.Row {
	return model.NewRow(postModel, map[string]any{
		"id":        int64(id),
		"title":     "t",
		"author_id": author,
		"status":    status,
	})
}

func rule(actions, subjects []string, cond map[string]any, inverted bool) policy.Rule {
	return policy.Rule{Actions: actions, Subjects: subjects, Conditions: cond, Inverted: inverted}
}

func testDoc() *policy.Document {
	return &policy.Document{
		APIVersion: "adminguard/v1alpha1",
		Kind:       "AbilityPolicy",
		Subjects: []policy.Subject{
			{Name: "alice", Match: policy.Match{Kind: policy.MatchUser, Name: "alice"}},
			{Name: "bob", Match: policy.Match{Kind: policy.MatchUser, Name: "bob"}},
			{Name: "root", Match: policy.Match{Kind: policy.MatchUser, Name: "root"}},
			{Name: "guests", Match: policy.Match{Kind: policy.MatchAnonymous}},
		},
		Roles: []policy.Role{
			{Name: "panel", Rules: []policy.Rule{
				rule([]string{"access"}, []string{"rails_admin"}, nil, false),
			}},
			{Name: "reader", Rules: []policy.Rule{
				rule([]string{"read"}, []string{"all"}, nil, false),
			}},
			{Name: "author", Rules: []policy.Rule{
				rule([]string{"read"}, []string{"Post"}, nil, false),
				rule([]string{"create", "update"}, []string{"Post"}, map[string]any{"author_id": "$user.id"}, false),
				rule([]string{"destroy"}, []string{"Post"}, map[string]any{"author_id": "$user.id"}, false),
				rule([]string{"destroy"}, []string{"Post"}, map[string]any{"status": "published"}, true),
			}},
			{Name: "dash", Rules: []policy.Rule{
				rule([]string{"read"}, []string{"dashboard_*"}, nil, false),
			}},
			{Name: "admin", Rules: []policy.Rule{
				rule([]string{"manage"}, []string{"all"}, nil, false),
			}},
			{Name: "guest", Rules: []policy.Rule{
				rule([]string{"read"}, []string{"Post"}, map[string]any{"status": []any{"published", "featured"}}, false),
			}},
		},
		Bindings: []policy.Binding{
			{Subject: "alice", Roles: []string{"panel", "author", "dash"}},
			{Subject: "bob", Roles: []string{"panel", "reader"}},
			{Subject: "root", Roles: []string{"admin"}},
			{Subject: "guests", Roles: []string{"guest"}},
		},
	}
}

func policyAnyone() policy.Subject {
	return policy.Subject{Name: "anyone", Match: policy.Match{Kind: policy.MatchAny}}
}

func bindAnyone(roles ...string) policy.Binding {
	return policy.Binding{Subject: "anyone", Roles: roles}
}
