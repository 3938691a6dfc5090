package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
)

type parquetSource struct {
	dir string
}

// NewParquetSource reads one <table>.parquet file per table from dir. The
// files use the column names of the model's parquet tags.
func NewParquetSource(dir string) Source {
	return &parquetSource{dir: dir}
}

func (s *parquetSource) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Source: "parquet:" + s.dir}
	var err error

	if snap.Encounters, err = readParquet[Encounter](ctx, s.dir, TableEncounters); err != nil {
		return nil, err
	}
	if snap.Departments, err = readParquet[Department](ctx, s.dir, TableDepartments); err != nil {
		return nil, err
	}
	if snap.Hospitals, err = readParquet[Hospital](ctx, s.dir, TableHospitals); err != nil {
		return nil, err
	}
	if snap.Accounts, err = readParquet[Account](ctx, s.dir, TableAccounts); err != nil {
		return nil, err
	}
	if snap.QualityMeasures, err = readParquet[QualityMeasureRecord](ctx, s.dir, TableQualityMeasures); err != nil {
		return nil, err
	}
	if snap.Practices, err = readParquet[Practice](ctx, s.dir, TablePractices); err != nil {
		return nil, err
	}
	if snap.SurgicalEncounters, err = readParquet[SurgicalEncounter](ctx, s.dir, TableSurgicalEncounters); err != nil {
		return nil, err
	}
	if snap.SurgicalCosts, err = readParquet[SurgicalResourceUsage](ctx, s.dir, TableSurgicalCosts); err != nil {
		return nil, err
	}

	snap.LoadedAt = time.Now().UTC()
	return snap, nil
}

const parquetReadBatch = 4096

func readParquet[T any](ctx context.Context, dir, name string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, name+".parquet"))
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: open parquet: %w", name, err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	out := make([]T, 0, reader.NumRows())
	for {
		buf := make([]T, parquetReadBatch)
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read parquet: %w", name, err)
		}
		if n == 0 {
			return out, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// ExportParquet writes every table of snap to dir in the layout read by
// NewParquetSource.
func ExportParquet(snap *Snapshot, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := func(name string) string { return filepath.Join(dir, name+".parquet") }

	if err := WriteParquet(path(TableEncounters), snap.Encounters); err != nil {
		return fmt.Errorf("%s: %w", TableEncounters, err)
	}
	if err := WriteParquet(path(TableDepartments), snap.Departments); err != nil {
		return fmt.Errorf("%s: %w", TableDepartments, err)
	}
	if err := WriteParquet(path(TableHospitals), snap.Hospitals); err != nil {
		return fmt.Errorf("%s: %w", TableHospitals, err)
	}
	if err := WriteParquet(path(TableAccounts), snap.Accounts); err != nil {
		return fmt.Errorf("%s: %w", TableAccounts, err)
	}
	if err := WriteParquet(path(TableQualityMeasures), snap.QualityMeasures); err != nil {
		return fmt.Errorf("%s: %w", TableQualityMeasures, err)
	}
	if err := WriteParquet(path(TablePractices), snap.Practices); err != nil {
		return fmt.Errorf("%s: %w", TablePractices, err)
	}
	if err := WriteParquet(path(TableSurgicalEncounters), snap.SurgicalEncounters); err != nil {
		return fmt.Errorf("%s: %w", TableSurgicalEncounters, err)
	}
	if err := WriteParquet(path(TableSurgicalCosts), snap.SurgicalCosts); err != nil {
		return fmt.Errorf("%s: %w", TableSurgicalCosts, err)
	}
	return nil
}

// WriteParquet writes records to path as a single Snappy-compressed file.
func WriteParquet[T any](path string, records []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}

	w := parquet.NewGenericWriter[T](f, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(records); err != nil {
		f.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}
