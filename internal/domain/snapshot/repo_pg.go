package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/careinsights/internal/platform/db"
)

type pgSource struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPGSource reads snapshots from schema over pool. A schema stored on the
// context with db.WithSchema takes precedence.
func NewPGSource(pool *pgxpool.Pool, schema string) Source {
	return &pgSource{pool: pool, schema: schema}
}

// Load reads all tables inside one read-only repeatable-read transaction so
// the snapshot is consistent across tables.
func (s *pgSource) Load(ctx context.Context) (*Snapshot, error) {
	schema := db.SchemaFromContext(ctx)
	if schema == "" {
		schema = s.schema
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := db.SetLocalSearchPath(ctx, tx, schema); err != nil {
		return nil, err
	}

	snap := &Snapshot{Source: "postgres:" + schema}
	if err := readAll(&pgLoader{ctx: ctx, q: tx}, snap); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	snap.LoadedAt = time.Now().UTC()
	return snap, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type pgLoader struct {
	ctx context.Context
	q   querier
}

// selectText builds a SELECT that casts every column to text, so values reach
// the coercion layer in the encoding they were stored in.
func selectText(name string, columns []string) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = fmt.Sprintf("CAST(%s AS TEXT) AS %s", c, c)
	}
	sb.Select(cols...)
	sb.From(name)
	sb.OrderBy(columns[0])
	return sb.Build()
}

func (l *pgLoader) rows(name string, columns []string, fn func(row) error) error {
	query, args := selectText(name, columns)
	rows, err := l.q.Query(l.ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	values := make([]*string, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		r := make(row, len(columns))
		for i, c := range columns {
			r[c] = values[i]
			values[i] = nil
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}
