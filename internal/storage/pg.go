package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PG implements KV in a single postgres table. It serves deployments that
// already run postgres and want client state with the same durability story
// as the rest of their data.
type PG struct {
	db *sql.DB
}

// OpenPG opens a pooled connection for the given DSN.
func OpenPG(dsn string) (*PG, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(15 * time.Minute)
	return &PG{db: db}, nil
}

// NewPG wraps an existing database handle.
func NewPG(db *sql.DB) (*PG, error) {
	if db == nil {
		return nil, errors.New("storage: db handle is required")
	}
	return &PG{db: db}, nil
}

func (p *PG) Close() error { return p.db.Close() }

func (p *PG) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx, `select value from client_state where key=$1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (p *PG) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `
		insert into client_state(key, value, updated_at)
		values ($1,$2,now())
		on conflict (key) do update
		set value = excluded.value, updated_at = now()
	`, key, value)
	return err
}

func (p *PG) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `delete from client_state where key=$1`, key)
	return err
}
