package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/timgst1/adminguard/internal/model"
)

// Expr is a boolean condition over one model's columns. The same tree is
// rendered to SQL for queries and evaluated in memory for single records.
type Expr interface {
	render(m *model.Model) (string, []any, error)
	Match(r model.Record) bool
}

type constExpr bool

func True() Expr  { return constExpr(true) }
func False() Expr { return constExpr(false) }

func (c constExpr) render(*model.Model) (string, []any, error) {
	if c {
		return "1=1", nil, nil
	}
	return "1=0", nil, nil
}

func (c constExpr) Match(model.Record) bool { return bool(c) }

// IsConst reports whether e is True() or False() and which.
func IsConst(e Expr) (value, ok bool) {
	c, ok := e.(constExpr)
	return bool(c), ok
}

type eqExpr struct {
	col string
	val any
}

// Eq matches rows whose column equals v. A nil v renders as IS NULL.
func Eq(col string, v any) Expr { return eqExpr{col: col, val: v} }

func (e eqExpr) render(m *model.Model) (string, []any, error) {
	id, err := quoteColumn(m, e.col)
	if err != nil {
		return "", nil, err
	}
	if e.val == nil {
		return id + " IS NULL", nil, nil
	}
	return id + " = ?", []any{e.val}, nil
}

func (e eqExpr) Match(r model.Record) bool {
	got, ok := r.Get(e.col)
	if !ok {
		return e.val == nil
	}
	return sameValue(got, e.val)
}

type inExpr struct {
	col  string
	vals []any
}

// In matches rows whose column is one of vals. An empty list matches nothing.
func In(col string, vals []any) Expr {
	if len(vals) == 0 {
		return False()
	}
	return inExpr{col: col, vals: vals}
}

func (e inExpr) render(m *model.Model) (string, []any, error) {
	id, err := quoteColumn(m, e.col)
	if err != nil {
		return "", nil, err
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(e.vals)), ",")
	return id + " IN (" + marks + ")", append([]any(nil), e.vals...), nil
}

func (e inExpr) Match(r model.Record) bool {
	got, ok := r.Get(e.col)
	if !ok {
		return false
	}
	for _, v := range e.vals {
		if sameValue(got, v) {
			return true
		}
	}
	return false
}

type andExpr struct{ l, r Expr }

func And(l, r Expr) Expr {
	if v, ok := IsConst(l); ok {
		if !v {
			return False()
		}
		return r
	}
	if v, ok := IsConst(r); ok {
		if !v {
			return False()
		}
		return l
	}
	return andExpr{l: l, r: r}
}

func (e andExpr) render(m *model.Model) (string, []any, error) {
	return renderPair(m, e.l, e.r, " AND ")
}

func (e andExpr) Match(r model.Record) bool { return e.l.Match(r) && e.r.Match(r) }

type orExpr struct{ l, r Expr }

func Or(l, r Expr) Expr {
	if v, ok := IsConst(l); ok {
		if v {
			return True()
		}
		return r
	}
	if v, ok := IsConst(r); ok {
		if v {
			return True()
		}
		return l
	}
	return orExpr{l: l, r: r}
}

func (e orExpr) render(m *model.Model) (string, []any, error) {
	return renderPair(m, e.l, e.r, " OR ")
}

func (e orExpr) Match(r model.Record) bool { return e.l.Match(r) || e.r.Match(r) }

type notExpr struct{ e Expr }

func Not(e Expr) Expr {
	if v, ok := IsConst(e); ok {
		return constExpr(!v)
	}
	return notExpr{e: e}
}

func (n notExpr) render(m *model.Model) (string, []any, error) {
	s, args, err := n.e.render(m)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + s + ")", args, nil
}

func (n notExpr) Match(r model.Record) bool { return !n.e.Match(r) }

func renderPair(m *model.Model, l, r Expr, op string) (string, []any, error) {
	ls, la, err := l.render(m)
	if err != nil {
		return "", nil, err
	}
	rs, ra, err := r.render(m)
	if err != nil {
		return "", nil, err
	}
	return "(" + ls + ")" + op + "(" + rs + ")", append(la, ra...), nil
}

func quoteColumn(m *model.Model, col string) (string, error) {
	if !validIdent(col) {
		return "", fmt.Errorf("store: invalid column name %q", col)
	}
	if len(m.Columns) > 0 && !m.HasColumn(col) {
		return "", fmt.Errorf("store: unknown column %q for model %s", col, m.Name)
	}
	return `"` + col + `"`, nil
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// sameValue compares values the way SQLite does for a column with numeric or
// text affinity: integer widths and booleans collapse to int64, and a number
// equals its decimal text.
func sameValue(a, b any) bool {
	na, nb := normalize(a), normalize(b)
	if na == nb {
		return true
	}
	if s, ok := na.(string); ok {
		return numericText(s, nb)
	}
	if s, ok := nb.(string); ok {
		return numericText(s, na)
	}
	return false
}

func numericText(s string, n any) bool {
	switch x := n.(type) {
	case int64:
		return s == strconv.FormatInt(x, 10)
	case float64:
		return s == strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return false
	}
}

func normalize(v any) any {
	switch n := v.(type) {
	case bool:
		if n {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return normalize(float64(n))
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case []byte:
		return string(n)
	default:
		return v
	}
}
