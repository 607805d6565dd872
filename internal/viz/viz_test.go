package viz

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/san-kum/glidesim/internal/analysis"
	"github.com/san-kum/glidesim/internal/dynamo"
	"github.com/san-kum/glidesim/internal/storage"
	"github.com/san-kum/glidesim/internal/sweep"
)

func records() []sweep.Record {
	return []sweep.Record{
		{Index: 1, LaunchAngle: -0.94719755, Time: 4.3125, State: dynamo.State{2.5, -0.3, 9.75, -1e-3}, Status: dynamo.Done, Steps: 140, Rejected: 3},
		{Index: 2, LaunchAngle: -0.84719755, Time: 600, State: dynamo.State{1.2, 0.01, 350, 12}, Status: dynamo.Done, Steps: 900},
		{Index: 3, LaunchAngle: -0.74719755, Time: 0.75, State: dynamo.State{1e-11, 1.2, 0.4, 2.1}, Status: dynamo.Failed, Steps: 12,
			Err: &dynamo.FaultError{Step: 12, Time: 0.75, Wrapped: dynamo.ErrSingularity}},
	}
}

func TestTextLine(t *testing.T) {
	recs := records()

	want := " 4.31250e+00   2.50000e+00  -9.47198e-01   9.75000e+00  -1.00000e-03"
	if got := TextLine(recs[0]); got != want {
		t.Errorf("TextLine() =\n%q\nwant\n%q", got, want)
	}

	failed := TextLine(recs[2])
	if !strings.HasPrefix(failed, "troubles: ") {
		t.Errorf("expected troubles prefix, got %q", failed)
	}
	if fields := strings.Fields(strings.TrimPrefix(failed, "troubles: ")); len(fields) != 5 {
		t.Errorf("expected 5 fields, got %v", fields)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, records()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records()); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(rows))
	}
	if rows[3][7] != "failed" || !strings.Contains(rows[3][11], "singular") {
		t.Errorf("unexpected failed row %v", rows[3])
	}
}

func TestWriteRecords_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecords(&buf, FormatJSON, records()); err != nil {
		t.Fatal(err)
	}

	var data storage.ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(data.Records) != 3 || data.Records[2].Fault != "singularity" {
		t.Errorf("unexpected export %+v", data.Records)
	}
}

func TestTable(t *testing.T) {
	out := Table(records())
	for _, want := range []string{"angle", "landed", "t_end", "failed: singularity", "-0.9472"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"text", "csv", "json", "table"} {
		if _, err := ParseFormat(name); err != nil {
			t.Errorf("ParseFormat(%q): %v", name, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := WriteRecords(&bytes.Buffer{}, Format("xml"), nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRangePlot(t *testing.T) {
	out := RangePlot(records(), 40, 8)
	if !strings.Contains(out, "final x vs launch angle") {
		t.Errorf("missing caption:\n%s", out)
	}
	if RangePlot(nil, 40, 8) != "" {
		t.Error("expected empty plot for no records")
	}
}

func TestWriteSummary(t *testing.T) {
	recs := records()
	var buf bytes.Buffer
	WriteSummary(&buf, analysis.Summarize(recs), recs)

	out := buf.String()
	for _, want := range []string{"landed", "singularity", "best range", "9.75", "range by angle"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSparklineChart(t *testing.T) {
	if got := SparklineChart(nil, 5); got != "─────" {
		t.Errorf("expected flat line, got %q", got)
	}
	out := SparklineChart([]float64{0, 1, 2, 3}, 4)
	if !strings.Contains(out, "▁") || !strings.Contains(out, "█") {
		t.Errorf("expected full range of bars, got %q", out)
	}
}
