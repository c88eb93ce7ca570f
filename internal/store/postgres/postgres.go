package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"partsledger/backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	name       TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sequences (
	name  TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);
`

var _ store.Backend = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload::text
		FROM records
		WHERE name = $1
	`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (s *Store) Write(ctx context.Context, name string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, upsertRecord, name, string(payload))
	return err
}

const upsertRecord = `
	INSERT INTO records (name, payload, updated_at)
	VALUES ($1, $2::jsonb, now())
	ON CONFLICT (name)
	DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
`

func (s *Store) WriteAll(ctx context.Context, payloads map[string][]byte) error {
	err := s.writeAll(ctx, payloads)
	if isSerializationFailure(err) {
		err = s.writeAll(ctx, payloads)
	}
	return err
}

func (s *Store) writeAll(ctx context.Context, payloads map[string][]byte) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	for name, payload := range payloads {
		if _, err := pgTx.ExecContext(ctx, upsertRecord, name, string(payload)); err != nil {
			return err
		}
	}

	return pgTx.Commit()
}

func (s *Store) Increment(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value)
		VALUES ($1, 1)
		ON CONFLICT (name)
		DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, name).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
