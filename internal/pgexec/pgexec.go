// Package pgexec runs generated statements against PostgreSQL.
package pgexec

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
)

// DSNEnv is the environment variable consulted when no DSN is configured.
const DSNEnv = "POSTGRESQL_CONNECTION_URL"

// ErrNoDSN is returned by Connect when no connection string is configured.
var ErrNoDSN = errors.New("no PostgreSQL connection string (set --pg-dsn or " + DSNEnv + ")")

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config describes the destination connection.
type Config struct {
	DSN string
	// Schema, when set, is created if missing and pinned first on the
	// search_path so unqualified table names land in it.
	Schema         string
	ConnectTimeout time.Duration
}

// Executor runs statements over a single connection. It is not safe for
// concurrent use.
type Executor struct {
	conn *pgx.Conn
}

// Connect opens the connection described by cfg.
func Connect(ctx context.Context, cfg Config) (*Executor, error) {
	connCfg, err := connConfig(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if cfg.Schema != "" {
		if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(cfg.Schema)); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("ensure schema %q: %w", cfg.Schema, err)
		}
	}
	return &Executor{conn: conn}, nil
}

func connConfig(cfg Config) (*pgx.ConnConfig, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	connCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	// Statements are one-shot and carry their values inline, so there is
	// nothing to gain from preparing them.
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.Schema != "" {
		if !schemaNameRe.MatchString(cfg.Schema) {
			return nil, fmt.Errorf("invalid postgres schema name %q (must match %s)", cfg.Schema, schemaNameRe.String())
		}
		if connCfg.RuntimeParams == nil {
			connCfg.RuntimeParams = make(map[string]string)
		}
		// public stays reachable for extensions and built-ins
		connCfg.RuntimeParams["search_path"] = fmt.Sprintf("%s,public", quoteIdent(cfg.Schema))
	}
	return connCfg, nil
}

func quoteIdent(ident string) string {
	// ident is validated to contain no quotes; safe to wrap
	return `"` + ident + `"`
}

// Exec runs one statement and returns the number of rows it affected.
func (e *Executor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := e.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Close closes the connection.
func (e *Executor) Close(ctx context.Context) error {
	if e == nil || e.conn == nil {
		return nil
	}
	return e.conn.Close(ctx)
}
