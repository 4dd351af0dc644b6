package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/timgst1/adminguard/internal/model"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Scope is a lazily executed query over one model, narrowed by an
// authorization condition and optional extra filters.
type Scope struct {
	model   *model.Model
	cond    Expr
	filters []Expr
	limit   int
}

func NewScope(m *model.Model, cond Expr) *Scope {
	if cond == nil {
		cond = False()
	}
	return &Scope{model: m, cond: cond}
}

func (s *Scope) Model() *model.Model { return s.model }
func (s *Scope) Condition() Expr     { return s.cond }

func (s *Scope) clone() *Scope {
	c := *s
	c.filters = append([]Expr(nil), s.filters...)
	return &c
}

func (s *Scope) Where(col string, v any) *Scope {
	c := s.clone()
	c.filters = append(c.filters, Eq(col, v))
	return c
}

func (s *Scope) WhereIn(col string, vals []any) *Scope {
	c := s.clone()
	c.filters = append(c.filters, In(col, vals))
	return c
}

func (s *Scope) Limit(n int) *Scope {
	c := s.clone()
	c.limit = n
	return c
}

func (s *Scope) where() Expr {
	e := s.cond
	for _, f := range s.filters {
		e = And(e, f)
	}
	return e
}

// Matches reports whether r would be returned by the scope.
func (s *Scope) Matches(r model.Record) bool {
	if r == nil || r.ModelName() != s.model.Name {
		return false
	}
	return s.where().Match(r)
}

// Empty reports whether the scope can never return rows.
func (s *Scope) Empty() bool {
	v, ok := IsConst(s.where())
	return ok && !v
}

func (s *Scope) whereSQL() (string, []any, error) {
	if !validIdent(s.model.Table) {
		return "", nil, fmt.Errorf("store: invalid table name %q", s.model.Table)
	}
	return s.where().render(s.model)
}

func (s *Scope) SQL() (string, []any, error) {
	w, args, err := s.whereSQL()
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("SELECT * FROM \"" + s.model.Table + "\" WHERE " + w)
	if s.model.PrimaryKey != "" {
		b.WriteString(" ORDER BY \"" + s.model.PrimaryKey + "\"")
	}
	if s.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.limit)
	}
	return b.String(), args, nil
}

func (s *Scope) All(ctx context.Context, q Querier) ([]*model.Row, error) {
	if s.Empty() {
		return nil, nil
	}
	query, args, err := s.SQL()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(s.model, rows)
}

func (s *Scope) Count(ctx context.Context, q Querier) (int64, error) {
	if s.Empty() {
		return 0, nil
	}
	w, args, err := s.whereSQL()
	if err != nil {
		return 0, err
	}
	var n int64
	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM \""+s.model.Table+"\" WHERE "+w, args...).Scan(&n)
	return n, err
}

func scanRows(m *model.Model, rows *sql.Rows) ([]*model.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []*model.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		values := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				values[c] = string(b)
				continue
			}
			values[c] = vals[i]
		}
		out = append(out, model.NewRow(m, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
