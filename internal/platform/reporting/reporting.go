package reporting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/careinsights/internal/analytics/report"
	"github.com/ehr/careinsights/internal/domain/snapshot"
	"github.com/ehr/careinsights/internal/platform/auth"
	"github.com/ehr/careinsights/pkg/pagination"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	engine *report.Engine
	source snapshot.Source
	logger zerolog.Logger
}

// NewHandler creates a reporting handler. source is usually a *SnapshotCache.
func NewHandler(engine *report.Engine, source snapshot.Source, logger zerolog.Logger) *Handler {
	return &Handler{engine: engine, source: source, logger: logger}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleAnalyst))
	g.GET("/reports", h.ListReports)
	g.GET("/reports/_all", h.RunAll)
	g.GET("/reports/:id", h.RunReport)
	g.GET("/data-quality", h.DataQuality)
}

// reportQuery holds the query parameters shared by report endpoints.
type reportQuery struct {
	MinSample *int   `validate:"omitempty,min=0"`
	Top       *int   `validate:"omitempty,min=0"`
	Format    string `validate:"omitempty,oneof=json csv text table"`
	Refresh   bool
}

func (q reportQuery) params() report.Params {
	return report.Params{MinSample: q.MinSample, Top: q.Top}
}

func (q reportQuery) format() report.Format {
	if q.Format == "" {
		return report.FormatJSON
	}
	f, _ := report.ParseFormat(q.Format)
	return f
}

func bindQuery(c echo.Context) (reportQuery, error) {
	var q reportQuery
	var err error
	if q.MinSample, err = optionalInt(c, "min_sample"); err != nil {
		return q, err
	}
	if q.Top, err = optionalInt(c, "top"); err != nil {
		return q, err
	}
	q.Format = c.QueryParam("format")
	if raw := c.QueryParam("refresh"); raw != "" {
		if q.Refresh, err = strconv.ParseBool(raw); err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "refresh must be a boolean")
		}
	}
	if err := validate.Struct(q); err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid query: %v", err))
	}
	return q, nil
}

func optionalInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be an integer", name))
	}
	return &n, nil
}

// ListReports returns every report definition with its effective defaults.
func (h *Handler) ListReports(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Definitions())
}

// RunReport evaluates one report and returns a page of its rows.
func (h *Handler) RunReport(c echo.Context) error {
	id := c.Param("id")
	if _, ok := report.Find(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown report %q", id))
	}
	q, err := bindQuery(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	snap, err := h.snapshot(ctx, q.Refresh)
	if err != nil {
		return err
	}
	table, err := h.engine.Run(ctx, snap, id, q.params())
	if err != nil {
		return h.reportError(c, err)
	}

	page := pagination.FromContext(c)
	total := len(table.Rows)
	table = table.Slice(page.Offset, page.Limit)

	if f := q.format(); f != report.FormatJSON {
		return write(c, f, table)
	}
	resp := pagination.NewResponse(table, total, page.Limit, page.Offset)
	resp.Links = page.Links(c.Request().URL.Path, c.QueryParams(), total)
	return c.JSON(http.StatusOK, resp)
}

// RunAll evaluates several reports against one snapshot. Repeated id
// parameters select reports; none selects all of them.
func (h *Handler) RunAll(c echo.Context) error {
	ids := c.QueryParams()["id"]
	for _, id := range ids {
		if _, ok := report.Find(id); !ok {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown report %q", id))
		}
	}
	q, err := bindQuery(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	snap, err := h.snapshot(ctx, q.Refresh)
	if err != nil {
		return err
	}
	tables, err := h.engine.RunAll(ctx, snap, ids, q.params())
	if err != nil {
		return h.reportError(c, err)
	}

	if f := q.format(); f != report.FormatJSON {
		return write(c, f, tables...)
	}
	return c.JSON(http.StatusOK, tables)
}

// DataQuality returns integrity findings and coercion yields.
func (h *Handler) DataQuality(c echo.Context) error {
	q, err := bindQuery(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	snap, err := h.snapshot(ctx, q.Refresh)
	if err != nil {
		return err
	}
	qr, err := h.engine.DataQuality(ctx, snap)
	if err != nil {
		return h.reportError(c, err)
	}

	if f := q.format(); f != report.FormatJSON {
		return write(c, f, qr.Tables()...)
	}
	return c.JSON(http.StatusOK, qr)
}

type refresher interface {
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
}

func (h *Handler) snapshot(ctx context.Context, refresh bool) (*snapshot.Snapshot, error) {
	var (
		snap *snapshot.Snapshot
		err  error
	)
	if r, ok := h.source.(refresher); ok && refresh {
		snap, err = r.Refresh(ctx)
	} else {
		snap, err = h.source.Load(ctx)
	}
	if err != nil && ctx.Err() != nil {
		return nil, echo.NewHTTPError(http.StatusGatewayTimeout, "report evaluation cancelled").SetInternal(err)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("snapshot load failed")
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "snapshot unavailable").SetInternal(err)
	}
	return snap, nil
}

func (h *Handler) reportError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, report.ErrUnknownReport):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "report evaluation cancelled").SetInternal(err)
	}
	rid, _ := c.Get("request_id").(string)
	h.logger.Error().Err(err).Str("request_id", rid).Msg("report evaluation failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "report evaluation failed").SetInternal(err)
}

func write(c echo.Context, f report.Format, tables ...*report.Table) error {
	contentType := echo.MIMETextPlainCharsetUTF8
	if f == report.FormatCSV {
		contentType = "text/csv; charset=UTF-8"
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	return report.Write(c.Response(), f, tables...)
}
