package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/timgst1/adminguard/internal/model"
)

var ErrNotFound = errors.New("record not found")

type Records struct {
	db *sql.DB
}

func NewRecords(db *sql.DB) *Records {
	return &Records{db: db}
}

func (s *Records) DB() *sql.DB { return s.db }

func (s *Records) Find(ctx context.Context, m *model.Model, id any) (*model.Row, error) {
	rows, err := NewScope(m, Eq(m.PrimaryKey, id)).Limit(1).All(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func (s *Records) Insert(ctx context.Context, m *model.Model, values map[string]any) (*model.Row, error) {
	cols, args, err := columnsAndArgs(m, values, true)
	if err != nil {
		return nil, err
	}

	var q string
	if len(cols) == 0 {
		q = fmt.Sprintf(`INSERT INTO "%s" DEFAULT VALUES`, m.Table)
	} else {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
		q = fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`, m.Table, strings.Join(cols, ","), marks)
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	id, ok := values[m.PrimaryKey]
	if !ok || id == nil {
		last, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		id = last
	}
	return s.Find(ctx, m, id)
}

func (s *Records) Update(ctx context.Context, r *model.Row) error {
	m := r.Model()
	values := r.Values()
	id := values[m.PrimaryKey]
	delete(values, m.PrimaryKey)

	cols, args, err := columnsAndArgs(m, values, false)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	q := fmt.Sprintf(`UPDATE "%s" SET %s WHERE "%s" = ?`, m.Table, strings.Join(sets, ", "), m.PrimaryKey)
	res, err := s.db.ExecContext(ctx, q, append(args, id)...)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Records) Delete(ctx context.Context, m *model.Model, id any) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s" WHERE "%s" = ?`, m.Table, m.PrimaryKey), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteScope deletes every row the scope selects and returns the count.
func (s *Records) DeleteScope(ctx context.Context, sc *Scope) (int64, error) {
	if sc.Empty() {
		return 0, nil
	}
	w, args, err := sc.whereSQL()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM "`+sc.model.Table+`" WHERE `+w, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func columnsAndArgs(m *model.Model, values map[string]any, skipNilPK bool) ([]string, []any, error) {
	keys := make([]string, 0, len(values))
	for k, v := range values {
		if skipNilPK && k == m.PrimaryKey && v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		q, err := quoteColumn(m, k)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, q)
		args = append(args, values[k])
	}
	return cols, args, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
