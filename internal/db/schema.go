package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

/* Migrate applies the schema in one transaction */
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin migration: %w", err))
	}
	defer tx.Rollback()

	for i, stmt := range SchemaStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

/* SchemaStatements returns the DDL statements in apply order */
func SchemaStatements() []string {
	return splitSQL(schemaSQL)
}

/* splitSQL strips line comments and splits on statement terminators */
func splitSQL(sql string) []string {
	var cleanLines []string
	for _, line := range strings.Split(sql, "\n") {
		if idx := strings.Index(line, "--"); idx != -1 {
			line = line[:idx]
		}
		cleanLines = append(cleanLines, line)
	}

	var statements []string
	for _, part := range strings.Split(strings.Join(cleanLines, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
