package model

import "strings"

type Action string

const (
	ActionAccess     Action = "access"
	ActionDashboard  Action = "dashboard"
	ActionIndex      Action = "index"
	ActionShow       Action = "show"
	ActionRead       Action = "read"
	ActionNew        Action = "new"
	ActionCreate     Action = "create"
	ActionEdit       Action = "edit"
	ActionUpdate     Action = "update"
	ActionDestroy    Action = "destroy"
	ActionDelete     Action = "delete"
	ActionBulkDelete Action = "bulk_delete"
	ActionExport     Action = "export"
	ActionManage     Action = "manage"
)

// Symbol is a symbolic subject, e.g. a dashboard widget or the admin panel itself.
type Symbol string

// AdminPanel is checked with ActionAccess before any other admin action.
const AdminPanel Symbol = "rails_admin"

// Subject is the target of a permission check: a Record, a *Model or a Symbol.
type Subject any

// Model describes a managed entity type backed by a table.
type Model struct {
	Name       string
	Table      string
	PrimaryKey string
	Columns    []string
}

func (m *Model) HasColumn(name string) bool {
	for _, c := range m.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AbstractModel is what the admin engine hands to the authorization layer.
type AbstractModel interface {
	Model() *Model
}

// Descriptor is the admin-side view of a model.
type Descriptor struct {
	model *Model
	Label string
}

func NewDescriptor(m *Model) *Descriptor {
	return &Descriptor{model: m, Label: strings.ToLower(m.Name)}
}

func (d *Descriptor) Model() *Model {
	if d == nil {
		return nil
	}
	return d.model
}

// Record is a single instance of a managed entity.
type Record interface {
	ModelName() string
	Get(attr string) (any, bool)
}

type Row struct {
	model  *Model
	values map[string]any
}

func NewRow(m *Model, values map[string]any) *Row {
	if values == nil {
		values = map[string]any{}
	}
	return &Row{model: m, values: values}
}

func (r *Row) Model() *Model     { return r.model }
func (r *Row) ModelName() string { return r.model.Name }

func (r *Row) Get(attr string) (any, bool) {
	v, ok := r.values[attr]
	return v, ok
}

func (r *Row) Set(attr string, v any) { r.values[attr] = v }

func (r *Row) ID() any {
	return r.values[r.model.PrimaryKey]
}

// Values returns a copy of the row's attributes.
func (r *Row) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// SubjectName returns the name a permission rule matches a subject against.
func SubjectName(s Subject) string {
	switch v := s.(type) {
	case nil:
		return ""
	case Symbol:
		return string(v)
	case Action:
		return string(v)
	case string:
		return v
	case *Model:
		if v == nil {
			return ""
		}
		return v.Name
	case Record:
		return v.ModelName()
	default:
		return ""
	}
}
