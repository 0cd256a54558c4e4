// storage/postgres.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payments-engine/ledger"
	"payments-engine/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no snapshot row exists for a run and client.
var ErrNotFound = errors.New("account not found")

// Store persists the outcome of a run for later inspection.
type Store interface {
	SaveSnapshot(ctx context.Context, runID string, views []model.AccountView) error
	SaveRejections(ctx context.Context, runID string, rejections []ledger.Rejection) error
	GetAccount(ctx context.Context, runID string, clientID uint16) (*model.AccountView, error)
}

// PostgresStore implements the Store interface for PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore, connects to the database, and initializes the schema.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	var pool *pgxpool.Pool
	var err error

	// Retry connecting to the database for a few seconds
	for i := 0; i < 5; i++ {
		pool, err = pgxpool.New(ctx, connString)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to database after retries: %w", err)
	}

	store := &PostgresStore{db: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}

	return store, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	queries := []string{`
    CREATE TABLE IF NOT EXISTS account_snapshots (
        run_id     UUID NOT NULL,
        client_id  INTEGER NOT NULL,
        available  NUMERIC NOT NULL,
        held       NUMERIC NOT NULL,
        total      NUMERIC NOT NULL,
        locked     BOOLEAN NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (run_id, client_id)
    );`, `
    CREATE TABLE IF NOT EXISTS rejections (
        run_id    UUID NOT NULL,
        seq       BIGINT NOT NULL,
        client_id INTEGER NOT NULL,
        tx_id     BIGINT NOT NULL,
        tx_type   TEXT NOT NULL,
        reason    TEXT NOT NULL,
        PRIMARY KEY (run_id, seq)
    );`}
	for _, q := range queries {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot stores every account view of a run in one database transaction.
// Saving the same run again overwrites its rows.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, runID string, views []model.AccountView) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction has been committed.

	query := `
		INSERT INTO account_snapshots (run_id, client_id, available, held, total, locked)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, client_id) DO UPDATE
		SET available = EXCLUDED.available, held = EXCLUDED.held,
		    total = EXCLUDED.total, locked = EXCLUDED.locked`

	batch := &pgx.Batch{}
	for _, v := range views {
		batch.Queue(query, runID, int32(v.ClientID), v.Available, v.Held, v.Total, v.Locked)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("could not save snapshot: %w", err)
	}

	return tx.Commit(ctx)
}

// SaveRejections stores the rejected transactions of a run.
func (s *PostgresStore) SaveRejections(ctx context.Context, runID string, rejections []ledger.Rejection) error {
	if len(rejections) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(rejections))
	for _, r := range rejections {
		rows = append(rows, []any{runID, int64(r.Seq), int32(r.ClientID), int64(r.TxID), string(r.Type), r.Reason.Error()})
	}

	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"rejections"},
		[]string{"run_id", "seq", "client_id", "tx_id", "tx_type", "reason"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("could not save rejections: %w", err)
	}
	return nil
}

// GetAccount retrieves a single account of a run.
func (s *PostgresStore) GetAccount(ctx context.Context, runID string, clientID uint16) (*model.AccountView, error) {
	view := &model.AccountView{ClientID: clientID}
	query := "SELECT available, held, total, locked FROM account_snapshots WHERE run_id = $1 AND client_id = $2"
	err := s.db.QueryRow(ctx, query, runID, int32(clientID)).Scan(&view.Available, &view.Held, &view.Total, &view.Locked)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return view, nil
}

// CountRejections returns how many rejections were stored for a run.
func (s *PostgresStore) CountRejections(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM rejections WHERE run_id = $1", runID).Scan(&n)
	return n, err
}
