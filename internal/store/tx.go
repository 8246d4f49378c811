// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRule is returned when a site already has a rule for a kind.
	ErrDuplicateRule = errors.New("duplicate frequency rule")

	// ErrDuplicateSite is returned when a hostname is already taken.
	ErrDuplicateSite = errors.New("duplicate site hostname")

	// ErrPageInUse is returned when deleting a page that roots a site.
	ErrPageInUse = errors.New("page is the root of a site")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so store methods can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RunInTx runs fn inside a transaction, committing on success and rolling
// back when fn returns an error.
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// quoteTable quotes a kind table name for interpolation into SQL.
func quoteTable(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	switch pgCode(err) {
	case pgerrcode.ForeignKeyViolation, pgerrcode.RestrictViolation:
		return true
	}
	return false
}

// IsFieldResolution reports whether err is PostgreSQL refusing a query
// because a referenced column or table does not exist.
func IsFieldResolution(err error) bool {
	switch pgCode(err) {
	case pgerrcode.UndefinedColumn, pgerrcode.UndefinedTable:
		return true
	}
	return false
}
