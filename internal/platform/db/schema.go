package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

// SchemaKey holds the data schema selected for the current request.
const SchemaKey contextKey = "data_schema"

// SchemaHeader lets a caller point a request at another data schema.
const SchemaHeader = "X-Data-Schema"

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidSchema reports whether name is safe to interpolate as a schema name.
func ValidSchema(name string) bool {
	return schemaPattern.MatchString(name)
}

// SchemaMiddleware resolves the data schema for a request from the
// X-Data-Schema header or the schema query parameter, falling back to
// defaultSchema, and stores it on the request context.
func SchemaMiddleware(defaultSchema string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			schema := extractSchema(c, defaultSchema)
			if !ValidSchema(schema) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid schema identifier")
			}

			ctx := WithSchema(c.Request().Context(), schema)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("data_schema", schema)

			return next(c)
		}
	}
}

func extractSchema(c echo.Context, defaultSchema string) string {
	if s := c.Request().Header.Get(SchemaHeader); s != "" {
		return s
	}
	if s := c.QueryParam("schema"); s != "" {
		return s
	}
	return defaultSchema
}

// WithSchema returns a context carrying schema.
func WithSchema(ctx context.Context, schema string) context.Context {
	return context.WithValue(ctx, SchemaKey, schema)
}

// SchemaFromContext retrieves the data schema from context.
func SchemaFromContext(ctx context.Context) string {
	s, _ := ctx.Value(SchemaKey).(string)
	return s
}

// SetLocalSearchPath scopes unqualified table names in tx to schema.
// The setting ends with the transaction.
func SetLocalSearchPath(ctx context.Context, tx pgx.Tx, schema string) error {
	if !ValidSchema(schema) {
		return fmt.Errorf("invalid schema identifier: %s", schema)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL search_path TO %s", schema)); err != nil {
		return fmt.Errorf("set search_path %s: %w", schema, err)
	}
	return nil
}
