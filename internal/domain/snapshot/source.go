package snapshot

import (
	"context"
	"errors"
	"fmt"
)

// Table names shared by every source. CSV and Parquet sources expect one
// file per table named <table>.csv or <table>.parquet.
const (
	TableEncounters         = "encounters"
	TableDepartments        = "departments"
	TableHospitals          = "hospitals"
	TableAccounts           = "accounts"
	TableQualityMeasures    = "quality_measures"
	TablePractices          = "practices"
	TableSurgicalEncounters = "surgical_encounters"
	TableSurgicalCosts      = "surgical_costs"
)

// Kind names a snapshot source implementation.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindCSV      Kind = "csv"
	KindParquet  Kind = "parquet"
)

// ErrUnknownSource is returned for a source kind that is not supported.
var ErrUnknownSource = errors.New("snapshot: unknown source")

// ParseKind validates a source kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindPostgres, KindCSV, KindParquet:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Source materialises a Snapshot from external storage.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Snapshot, error)

func (f SourceFunc) Load(ctx context.Context) (*Snapshot, error) { return f(ctx) }

// Tables lists every table a source reads, in load order.
var Tables = []string{
	TableEncounters,
	TableDepartments,
	TableHospitals,
	TableAccounts,
	TableQualityMeasures,
	TablePractices,
	TableSurgicalEncounters,
	TableSurgicalCosts,
}
