package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
)

const ddlRoleRecords = `
CREATE TABLE IF NOT EXISTS role_records (
    output         TEXT    NOT NULL,
    dialogue_id    INTEGER NOT NULL,
    position       INTEGER NOT NULL,
    serial         INTEGER NOT NULL,
    speaker        TEXT    NOT NULL,
    role           TEXT    NOT NULL,
    justification  TEXT    NOT NULL DEFAULT '',
    prompt         TEXT    NOT NULL DEFAULT '',
    raw_response   TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (output, dialogue_id, position)
);

CREATE INDEX IF NOT EXISTS idx_role_records_output_serial
    ON role_records (output, serial);
`

var roleRecordColumns = []string{
	"output", "dialogue_id", "position", "serial", "speaker", "role", "justification", "prompt", "raw_response",
}

// PostgresStore keeps results in the role_records table, one logical result set per output name,
// so several approaches can share a database. Persist rewrites only the dialogues changed since
// the previous Persist, inside one transaction.
type PostgresStore struct {
	Collection

	pool   *pgxpool.Pool
	output string
}

// NewPostgresStore connects to dsn and creates the table if needed.
func NewPostgresStore(ctx context.Context, dsn, output string) (*PostgresStore, error) {
	if output == "" {
		return nil, errors.New("postgres store: empty output name")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &PostgresStore{pool: pool, output: output}, nil
}

// Migrate creates the role_records table and its index.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlRoleRecords); err != nil {
		return fmt.Errorf("create role_records: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) Load(ctx context.Context) ([]annotation.RoleRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT serial, speaker, dialogue_id, role, justification, prompt, raw_response
FROM role_records
WHERE output = $1
ORDER BY serial, dialogue_id, position`, s.output)
	if err != nil {
		return nil, fmt.Errorf("postgres store: load: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (annotation.RoleRecord, error) {
		var (
			r    annotation.RoleRecord
			role string
		)
		err := row.Scan(&r.Serial, &r.Speaker, &r.DialogueID, &role, &r.Justification, &r.Prompt, &r.RawResponse)
		r.Role = annotation.Role(role)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan: %w", err)
	}
	s.Reset(records)
	return s.Records(), nil
}

func (s *PostgresStore) Persist(ctx context.Context) error {
	changed := s.Changed()
	if len(changed) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, id := range changed {
		if _, err := tx.Exec(ctx, `DELETE FROM role_records WHERE output = $1 AND dialogue_id = $2`, s.output, id); err != nil {
			return fmt.Errorf("postgres store: delete dialogue %d: %w", id, err)
		}
		records := s.DialogueRecords(id)
		if len(records) == 0 {
			continue
		}
		rows := make([][]any, len(records))
		for i, r := range records {
			rows[i] = []any{s.output, id, i, r.Serial, r.Speaker, string(r.Role), r.Justification, r.Prompt, r.RawResponse}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"role_records"}, roleRecordColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("postgres store: insert dialogue %d: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	s.MarkClean()
	return nil
}
