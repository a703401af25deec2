package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLStore persists a catalog in a relational database. Lite mode uses
// SQLite; deployments point DATABASE_URL at Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Init creates the catalog tables if they do not exist.
func (s *SQLStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalog_meta (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_courses (
			code TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			units TEXT NOT NULL,
			semesters TEXT NOT NULL,
			prerequisites TEXT NOT NULL,
			corequisite TEXT NOT NULL DEFAULT '',
			incompatible TEXT NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init catalog tables: %w", err)
		}
	}
	return nil
}

// Save replaces the stored catalog with c in one transaction.
func (s *SQLStore) Save(ctx context.Context, c *Catalog) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM catalog_courses`); err != nil {
		return fmt.Errorf("clear courses: %w", err)
	}
	if _, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM catalog_meta WHERE name = ?`), "version"); err != nil {
		return fmt.Errorf("clear version: %w", err)
	}
	if _, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO catalog_meta (name, value) VALUES (?, ?)`), "version", c.Version); err != nil {
		return fmt.Errorf("save version: %w", err)
	}

	insert := s.rebind(`INSERT INTO catalog_courses (code, position, units, semesters, prerequisites, corequisite, incompatible) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, course := range c.Courses() {
		units, semesters, prereqs, incompat, encErr := encodeCourse(course)
		if encErr != nil {
			err = encErr
			return err
		}
		if _, err = tx.ExecContext(ctx, insert, course.Code, i, units, semesters, prereqs, course.Corequisite, incompat); err != nil {
			return fmt.Errorf("save course %s: %w", course.Code, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog save: %w", err)
	}
	return nil
}

// Load reads the stored catalog.
func (s *SQLStore) Load(ctx context.Context) (*Catalog, error) {
	var version string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM catalog_meta WHERE name = ?`), "version").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no catalog stored", ErrInvalidCatalog)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog version: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT code, units, semesters, prerequisites, corequisite, incompatible FROM catalog_courses ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var courses []Course
	for rows.Next() {
		var (
			course                                 Course
			units, semesters, prereqs, incompatible string
		)
		if err := rows.Scan(&course.Code, &units, &semesters, &prereqs, &course.Corequisite, &incompatible); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		if err := decodeColumns(&course, units, semesters, prereqs, incompatible); err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return New(version, courses...), nil
}

// rebind turns ? placeholders into $n for Postgres.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func encodeCourse(c Course) (units, semesters, prereqs, incompat string, err error) {
	enc := func(v any) string {
		if err != nil {
			return ""
		}
		var b []byte
		b, err = json.Marshal(v)
		return string(b)
	}
	units = enc(nonNil(c.Units))
	semesters = enc(nonNil(c.Semesters))
	prereqs = enc(nonNil(c.Prerequisites))
	incompat = enc(nonNil(c.Incompatible))
	if err != nil {
		err = fmt.Errorf("encode course %s: %w", c.Code, err)
	}
	return units, semesters, prereqs, incompat, err
}

func decodeColumns(c *Course, units, semesters, prereqs, incompat string) error {
	for _, col := range []struct {
		raw string
		dst any
	}{
		{units, &c.Units},
		{semesters, &c.Semesters},
		{prereqs, &c.Prerequisites},
		{incompat, &c.Incompatible},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return fmt.Errorf("decode course %s: %w", c.Code, err)
		}
	}
	if len(c.Units) == 0 {
		c.Units = nil
	}
	if len(c.Semesters) == 0 {
		c.Semesters = nil
	}
	if len(c.Prerequisites) == 0 {
		c.Prerequisites = nil
	}
	if len(c.Incompatible) == 0 {
		c.Incompatible = nil
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
