package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/glidesim/internal/sweep"
)

// Sink persists final sweep records. Trajectories are never stored.
type Sink interface {
	SaveRun(ctx context.Context, meta *RunMetadata, records []sweep.Record) (string, error)
	ListRuns(ctx context.Context) ([]RunMetadata, error)
	LoadRun(ctx context.Context, id string) (*RunMetadata, error)
	LoadRecords(ctx context.Context, id string) ([]sweep.Record, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

const (
	metadataFile = "metadata.json"
	recordsFile  = "records.csv"
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

var _ Sink = (*Store)(nil)

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Close() error { return nil }

func NewRunID(name string, ts time.Time) string {
	if name == "" {
		name = "sweep"
	}
	return fmt.Sprintf("%s_%d", name, ts.UnixNano())
}

// SaveRun writes metadata.json and records.csv into a fresh run directory
// and fills in meta.ID and meta.Timestamp.
func (s *Store) SaveRun(ctx context.Context, meta *RunMetadata, records []sweep.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	meta.ID = NewRunID(meta.Name, meta.Timestamp)
	meta.Count = len(records)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeRecords(filepath.Join(runDir, recordsFile), records); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRecords(path string, records []sweep.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(NewRow(rec).csv()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ListRuns returns every readable run, oldest first. Directories without
// valid metadata are skipped.
func (s *Store) ListRuns(ctx context.Context) ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		meta, err := s.readMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) runDir(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return filepath.Join(s.baseDir, id), nil
}

func (s *Store) readMetadata(id string) (*RunMetadata, error) {
	dir, err := s.runDir(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return &meta, nil
}

func (s *Store) LoadRun(ctx context.Context, id string) (*RunMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readMetadata(id)
}

func (s *Store) LoadRecords(ctx context.Context, id string) ([]sweep.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.runDir(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, recordsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer f.Close()

	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	if len(lines) == 0 {
		return []sweep.Record{}, nil
	}

	records := make([]sweep.Record, 0, len(lines)-1)
	for i, line := range lines[1:] {
		row, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", id, i+2, err)
		}
		rec, err := row.Record()
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", id, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.LoadRun(ctx, id); err != nil {
		return err
	}
	dir, err := s.runDir(id)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}
