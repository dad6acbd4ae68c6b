package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cyphera/cyphera-associations/internal/logger"
	"github.com/cyphera/cyphera-associations/pkg/association"
)

// Schema creates the drafts table. Accounts are stored as interoperable
// address bytes so List can match either side.
const Schema = `
CREATE TABLE IF NOT EXISTS association_drafts (
    id          BYTEA PRIMARY KEY,
    initiator   BYTEA NOT NULL,
    approver    BYTEA NOT NULL,
    status      TEXT NOT NULL,
    sar         JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS association_drafts_initiator_idx ON association_drafts (initiator);
CREATE INDEX IF NOT EXISTS association_drafts_approver_idx ON association_drafts (approver);
`

const (
	upsertDraft = `
INSERT INTO association_drafts (id, initiator, approver, status, sar)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status, sar = EXCLUDED.sar, updated_at = now()`
	getDraft    = `SELECT sar FROM association_drafts WHERE id = $1`
	listDrafts  = `SELECT sar FROM association_drafts WHERE initiator = $1 OR approver = $1 ORDER BY id`
	deleteDraft = `DELETE FROM association_drafts WHERE id = $1`
)

// DBTX is the subset of pgx shared by pools, connections and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresRepository keeps drafts in Postgres.
type PostgresRepository struct {
	db  DBTX
	log *zap.Logger
}

func NewPostgresRepository(db DBTX, l *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, log: logger.OrGlobal(l)}
}

// Connect opens a pool for dsn and makes sure the schema exists.
func Connect(ctx context.Context, dsn string, l *zap.Logger) (*pgxpool.Pool, *PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database DSN: %w", err)
	}
	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("create connection pool: %w", err)
	}
	repo := NewPostgresRepository(pool, l)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, repo, nil
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate drafts: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, id common.Hash, sar *association.SAR) error {
	if err := checkKey(id, sar); err != nil {
		return err
	}
	body, err := json.Marshal(sar)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	_, err = r.db.Exec(ctx, upsertDraft,
		id.Bytes(),
		[]byte(sar.Record.Initiator),
		[]byte(sar.Record.Approver),
		string(sar.Status()),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("save draft %s: %w", id.Hex(), err)
	}
	r.log.Debug("Saved draft", zap.String("id", id.Hex()), zap.String("status", string(sar.Status())))
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id common.Hash) (*association.SAR, error) {
	var body []byte
	if err := r.db.QueryRow(ctx, getDraft, id.Bytes()).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get draft %s: %w", id.Hex(), err)
	}
	return decodeDraft(body)
}

func (r *PostgresRepository) List(ctx context.Context, account []byte) ([]*association.SAR, error) {
	rows, err := r.db.Query(ctx, listDrafts, account)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	bodies, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	out := make([]*association.SAR, 0, len(bodies))
	for _, body := range bodies {
		sar, err := decodeDraft(body)
		if err != nil {
			return nil, err
		}
		out = append(out, sar)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id common.Hash) error {
	tag, err := r.db.Exec(ctx, deleteDraft, id.Bytes())
	if err != nil {
		return fmt.Errorf("delete draft %s: %w", id.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeDraft(body []byte) (*association.SAR, error) {
	var sar association.SAR
	if err := json.Unmarshal(body, &sar); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &sar, nil
}
