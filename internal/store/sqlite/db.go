package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// pragmas via DSN
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies a schema script. Statements should be idempotent
// (CREATE TABLE IF NOT EXISTS ...), the script runs on every start.
func Migrate(db *sql.DB, schema string) error {
	if schema == "" {
		return nil
	}
	_, err := db.Exec(schema)
	return err
}

func MigrateFile(db *sql.DB, path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return Migrate(db, string(b))
}

type TableInfo struct {
	Columns    []string
	PrimaryKey string
}

func DescribeTable(db *sql.DB, table string) (TableInfo, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%q);", table))
	if err != nil {
		return TableInfo{}, err
	}
	defer rows.Close()

	var info TableInfo
	for rows.Next() {
		var (
			cid       int
			name      string
			type_     string
			notnull   int
			dfltValue *string
			pk        int
		)
		if err := rows.Scan(&cid, &name, &type_, &notnull, &dfltValue, &pk); err != nil {
			return TableInfo{}, err
		}
		info.Columns = append(info.Columns, name)
		if pk == 1 {
			info.PrimaryKey = name
		}
	}
	if err := rows.Err(); err != nil {
		return TableInfo{}, err
	}
	if len(info.Columns) == 0 {
		return TableInfo{}, fmt.Errorf("sqlite: table %q not found", table)
	}
	return info, nil
}
