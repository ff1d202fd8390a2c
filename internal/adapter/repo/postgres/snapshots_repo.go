// Package postgres provides PostgreSQL persistence adapters.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/investor-api/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repo for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SnapshotRepo archives quote snapshots.
type SnapshotRepo struct{ Pool PgxPool }

// NewSnapshotRepo constructs a SnapshotRepo with the given pool.
func NewSnapshotRepo(p PgxPool) *SnapshotRepo { return &SnapshotRepo{Pool: p} }

// Insert stores a snapshot and returns its id (generates one if empty).
func (r *SnapshotRepo) Insert(ctx domain.Context, s domain.Snapshot) (string, error) {
	tracer := otel.Tracer("repo.snapshots")
	ctx, span := tracer.Start(ctx, "snapshots.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "quote_snapshots"),
	)
	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	capturedAt := s.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	q := `INSERT INTO quote_snapshots (id, symbol, price, market_cap, source, captured_at) VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.Pool.Exec(ctx, q, id, s.Symbol, s.Price, s.MarketCap, s.Source, capturedAt)
	if err != nil {
		return "", fmt.Errorf("op=snapshot.insert: %w", err)
	}
	return id, nil
}

// ListBySymbol returns the most recent snapshots for a symbol, newest first.
func (r *SnapshotRepo) ListBySymbol(ctx domain.Context, symbol string, limit int) ([]domain.Snapshot, error) {
	tracer := otel.Tracer("repo.snapshots")
	ctx, span := tracer.Start(ctx, "snapshots.ListBySymbol")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "quote_snapshots"),
	)
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, symbol, price, market_cap, source, captured_at FROM quote_snapshots WHERE symbol=$1 ORDER BY captured_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("op=snapshot.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Price, &s.MarketCap, &s.Source, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("op=snapshot.list.scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=snapshot.list.rows: %w", err)
	}
	return out, nil
}

// Count returns the total number of archived snapshots.
func (r *SnapshotRepo) Count(ctx domain.Context) (int64, error) {
	tracer := otel.Tracer("repo.snapshots")
	ctx, span := tracer.Start(ctx, "snapshots.Count")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "COUNT"),
		attribute.String("db.sql.table", "quote_snapshots"),
	)
	q := `SELECT COUNT(*) FROM quote_snapshots`
	var count int64
	if err := r.Pool.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("op=snapshot.count: %w", err)
	}
	return count, nil
}
