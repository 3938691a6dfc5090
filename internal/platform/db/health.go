package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// SchemaStatus reports which of the expected tables exist in a schema.
type SchemaStatus struct {
	Schema  string   `json:"schema"`
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

// Complete reports whether every expected table was found.
func (s *SchemaStatus) Complete() bool { return len(s.Missing) == 0 }

// CheckSchema looks up the expected tables in information_schema.
func CheckSchema(ctx context.Context, pool *pgxpool.Pool, schema string, tables []string) (*SchemaStatus, error) {
	rows, err := pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_name = ANY($2)`,
		schema, tables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]bool, len(tables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return newSchemaStatus(schema, tables, found), nil
}

func newSchemaStatus(schema string, tables []string, found map[string]bool) *SchemaStatus {
	st := &SchemaStatus{Schema: schema, Present: []string{}, Missing: []string{}}
	for _, t := range tables {
		if found[t] {
			st.Present = append(st.Present, t)
		} else {
			st.Missing = append(st.Missing, t)
		}
	}
	return st
}

// HealthHandler returns a handler for the database health check endpoint.
// Besides pinging, it verifies that the snapshot tables exist in schema.
func HealthHandler(pool *pgxpool.Pool, schema string, tables []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		if s := SchemaFromContext(ctx); s != "" {
			schema = s
		}

		err := pool.Ping(ctx)
		stats := GetPoolStats(pool)
		if err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		status, err := CheckSchema(ctx, pool, schema, tables)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		code, label := http.StatusOK, "healthy"
		if !status.Complete() {
			code, label = http.StatusServiceUnavailable, "degraded"
		}
		return c.JSON(code, map[string]interface{}{
			"status": label,
			"pool":   stats,
			"schema": status,
		})
	}
}
