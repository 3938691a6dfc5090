package snapshot

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type csvSource struct {
	dir string
}

// NewCSVSource reads one <table>.csv file per table from dir. Each file
// starts with a header row; an empty cell is NULL. A missing file loads as
// an empty table and columns absent from the header load as NULL.
func NewCSVSource(dir string) Source {
	return &csvSource{dir: dir}
}

func (s *csvSource) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Source: "csv:" + s.dir}
	if err := readAll(&csvLoader{ctx: ctx, dir: s.dir}, snap); err != nil {
		return nil, err
	}
	snap.LoadedAt = time.Now().UTC()
	return snap, nil
}

type csvLoader struct {
	ctx context.Context
	dir string
}

func (l *csvLoader) rows(name string, columns []string, fn func(row) error) error {
	if err := l.ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(l.dir, name+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	return readCSV(f, columns, fn)
}

func readCSV(r io.Reader, columns []string, fn func(row) error) error {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		pos[strings.ToLower(h)] = i
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		r := make(row, len(columns))
		for _, c := range columns {
			i, ok := pos[c]
			if !ok || i >= len(rec) || rec[i] == "" {
				r[c] = nil
				continue
			}
			v := rec[i]
			r[c] = &v
		}
		if err := fn(r); err != nil {
			return err
		}
	}
}
