package storage

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/san-kum/glidesim/internal/dynamo"
	"github.com/san-kum/glidesim/internal/sweep"
)

var ErrNotFound = errors.New("storage: run not found")

// RunMetadata describes one persisted sweep.
type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Count     int                `json:"count"`
	Params    map[string]float64 `json:"params"`
	Summary   map[string]float64 `json:"summary"`
}

// Row is the flat, serialisable form of a sweep record.
type Row struct {
	Index       int     `json:"index"`
	LaunchAngle float64 `json:"launch_angle"`
	Time        float64 `json:"t"`
	V           float64 `json:"v"`
	Theta       float64 `json:"theta"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Status      string  `json:"status"`
	Steps       int     `json:"steps"`
	Rejected    int     `json:"rejected"`
	Evaluations int     `json:"evaluations"`
	ElapsedNS   int64   `json:"elapsed_ns"`
	Fault       string  `json:"fault,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// storedError restores a persisted error so errors.Is still reaches the
// original sentinel.
type storedError struct {
	msg  string
	kind error
}

func (e *storedError) Error() string { return e.msg }
func (e *storedError) Unwrap() error { return e.kind }

func restoreError(kind, msg string) error {
	if msg == "" && kind == "" {
		return nil
	}
	return &storedError{msg: msg, kind: dynamo.FaultSentinel(kind)}
}

func NewRow(rec sweep.Record) Row {
	row := Row{
		Index:       rec.Index,
		LaunchAngle: rec.LaunchAngle,
		Time:        rec.Time,
		Status:      rec.Status.String(),
		Steps:       rec.Steps,
		Rejected:    rec.Rejected,
		Evaluations: rec.Evaluations,
		ElapsedNS:   rec.Elapsed.Nanoseconds(),
		Fault:       dynamo.FaultKind(rec.Err),
	}
	if len(rec.State) == 4 {
		row.V, row.Theta, row.X, row.Y = rec.Speed(), rec.Theta(), rec.X(), rec.Y()
	}
	if rec.Err != nil {
		row.Error = rec.Err.Error()
	}
	return row
}

func Rows(records []sweep.Record) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = NewRow(rec)
	}
	return rows
}

func (r Row) Record() (sweep.Record, error) {
	status, ok := dynamo.ParseStatus(r.Status)
	if !ok {
		return sweep.Record{}, fmt.Errorf("iteration %d: unknown status %q", r.Index, r.Status)
	}
	return sweep.Record{
		Index:       r.Index,
		LaunchAngle: r.LaunchAngle,
		Time:        r.Time,
		State:       dynamo.State{r.V, r.Theta, r.X, r.Y},
		Status:      status,
		Steps:       r.Steps,
		Rejected:    r.Rejected,
		Evaluations: r.Evaluations,
		Elapsed:     time.Duration(r.ElapsedNS),
		Err:         restoreError(r.Fault, r.Error),
	}, nil
}

var csvHeader = []string{
	"index", "launch_angle", "t", "v", "theta", "x", "y",
	"status", "steps", "rejected", "evaluations", "elapsed_ns", "fault", "error",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (r Row) csv() []string {
	return []string{
		strconv.Itoa(r.Index),
		formatFloat(r.LaunchAngle),
		formatFloat(r.Time),
		formatFloat(r.V),
		formatFloat(r.Theta),
		formatFloat(r.X),
		formatFloat(r.Y),
		r.Status,
		strconv.Itoa(r.Steps),
		strconv.Itoa(r.Rejected),
		strconv.Itoa(r.Evaluations),
		strconv.FormatInt(r.ElapsedNS, 10),
		r.Fault,
		r.Error,
	}
}

func parseRow(fields []string) (Row, error) {
	if len(fields) != len(csvHeader) {
		return Row{}, fmt.Errorf("expected %d fields, got %d", len(csvHeader), len(fields))
	}

	var (
		row  Row
		errs []error
	)
	atoi := func(s string) int {
		n, err := strconv.Atoi(s)
		errs = append(errs, err)
		return n
	}
	atof := func(s string) float64 {
		f, err := strconv.ParseFloat(s, 64)
		errs = append(errs, err)
		return f
	}

	row.Index = atoi(fields[0])
	row.LaunchAngle = atof(fields[1])
	row.Time = atof(fields[2])
	row.V = atof(fields[3])
	row.Theta = atof(fields[4])
	row.X = atof(fields[5])
	row.Y = atof(fields[6])
	row.Status = fields[7]
	row.Steps = atoi(fields[8])
	row.Rejected = atoi(fields[9])
	row.Evaluations = atoi(fields[10])
	ns, err := strconv.ParseInt(fields[11], 10, 64)
	errs = append(errs, err)
	row.ElapsedNS = ns
	row.Fault = fields[12]
	row.Error = fields[13]

	return row, errors.Join(errs...)
}
