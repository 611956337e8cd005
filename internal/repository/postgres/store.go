// Package postgres is the production store. Task and timer writes append
// outbox events in the same transaction.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ventureops/internal/repository"
	"ventureops/internal/repository/postgres/migrations"
	"ventureops/pkg/db"
	"ventureops/pkg/metrics"
	"ventureops/pkg/otel"
)

type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{db: pool, logger: logger}
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, s.db, migrations.FS, ".", s.logger)
}

// Pool exposes the pool for components sharing it, such as the outbox.
func (s *Store) Pool() *pgxpool.Pool {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// observe wraps one repository call in a DB span and the query duration histogram.
func (s *Store) observe(ctx context.Context, operation, table string, fn func(context.Context) error) error {
	start := time.Now()
	err := otel.WithDBSpan(ctx, operation, table, fn)
	metrics.RecordDBQueryDuration(operation, table, time.Since(start))
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.db, fn)
}

func newArgs() *repository.Args {
	return &repository.Args{Dollar: true, Time: func(t time.Time) any { return t.UTC() }}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func newEventID() string {
	return uuid.NewString()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
