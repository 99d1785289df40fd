package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"pursuit-rl-go/internal/engine"
)

const schema = `
	CREATE TABLE IF NOT EXISTS q_tables (
		name          TEXT PRIMARY KEY,
		police_states INTEGER NOT NULL,
		thief_states  INTEGER NOT NULL,
		actions       INTEGER NOT NULL,
		data          BYTEA NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// PostgresStore keeps named tables in the q_tables relation. The data column
// holds the same PQTB encoding FileStore writes.
type PostgresStore struct {
	db   *sql.DB
	name string
}

// NewPostgresStore creates a store for the table called name.
func NewPostgresStore(db *sql.DB, name string) *PostgresStore {
	return &PostgresStore{db: db, name: name}
}

// OpenPostgres opens a lib/pq connection and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn, name string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &engine.PersistenceError{Op: "open postgres", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &engine.PersistenceError{Op: "ping postgres", Err: err}
	}
	s := NewPostgresStore(db, name)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the q_tables relation if needed.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return &engine.PersistenceError{Op: "migrate", Err: err}
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) Load(ctx context.Context) (*engine.QTable, error) {
	query := `
		SELECT police_states, thief_states, actions, data
		FROM q_tables WHERE name = $1`

	var police, thief, actions int
	var data []byte
	err := p.db.QueryRowContext(ctx, query, p.name).Scan(&police, &thief, &actions, &data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &engine.PersistenceError{Op: "load " + p.name, Err: err}
	}

	table, err := ReadTable(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", p.name, err)
	}
	if tp, tt, ta := table.Dims(); tp != police || tt != thief || ta != actions {
		return nil, fmt.Errorf("%w: table %s row says %dx%dx%d, data says %dx%dx%d",
			ErrCorrupt, p.name, police, thief, actions, tp, tt, ta)
	}
	return table, nil
}

func (p *PostgresStore) Save(ctx context.Context, table *engine.QTable) error {
	var buf bytes.Buffer
	if err := WriteTable(&buf, table); err != nil {
		return &engine.PersistenceError{Op: "encode " + p.name, Err: err}
	}
	police, thief, actions := table.Dims()

	query := `
		INSERT INTO q_tables (name, police_states, thief_states, actions, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (name) DO UPDATE SET
			police_states = EXCLUDED.police_states,
			thief_states = EXCLUDED.thief_states,
			actions = EXCLUDED.actions,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`

	if _, err := p.db.ExecContext(ctx, query, p.name, police, thief, actions, buf.Bytes()); err != nil {
		return &engine.PersistenceError{Op: "save " + p.name, Err: err}
	}
	return nil
}
