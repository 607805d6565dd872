package viz

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/glidesim/internal/dynamo"
	"github.com/san-kum/glidesim/internal/storage"
	"github.com/san-kum/glidesim/internal/sweep"
)

type Format string

const (
	FormatText  Format = "text"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatCSV, FormatJSON, FormatTable:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// WriteRecords renders records in the given format.
func WriteRecords(w io.Writer, f Format, records []sweep.Record) error {
	switch f {
	case FormatText:
		return WriteText(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return storage.EncodeJSON(w, nil, records)
	case FormatTable:
		_, err := fmt.Fprintln(w, Table(records))
		return err
	}
	return fmt.Errorf("unknown output format %q", f)
}

// TextLine formats one record: t, v, launch angle, x, y. A failed record
// shows its last valid state behind a "troubles: " prefix.
func TextLine(rec sweep.Record) string {
	line := fmt.Sprintf("% .5e  % .5e  % .5e  % .5e  % .5e", rec.Time, rec.Speed(), rec.LaunchAngle, rec.X(), rec.Y())
	if rec.Status == dynamo.Failed {
		return "troubles: " + line
	}
	return line
}

func WriteText(w io.Writer, records []sweep.Record) error {
	for _, rec := range records {
		if _, err := fmt.Fprintln(w, TextLine(rec)); err != nil {
			return err
		}
	}
	return nil
}

func WriteCSV(w io.Writer, records []sweep.Record) error {
	cw := csv.NewWriter(w)
	header := []string{"index", "launch_angle", "t", "v", "theta", "x", "y", "status", "steps", "rejected", "evaluations", "error"}
	if err := cw.Write(header); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'e', 10, 64) }
	for _, rec := range records {
		errText := ""
		if rec.Err != nil {
			errText = rec.Err.Error()
		}
		row := []string{
			strconv.Itoa(rec.Index),
			f(rec.LaunchAngle),
			f(rec.Time),
			f(rec.Speed()),
			f(rec.Theta()),
			f(rec.X()),
			f(rec.Y()),
			rec.Status.String(),
			strconv.Itoa(rec.Steps),
			strconv.Itoa(rec.Rejected),
			strconv.Itoa(rec.Evaluations),
			errText,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func statusCell(rec sweep.Record) (string, lipgloss.Style) {
	switch {
	case rec.Status == dynamo.Failed:
		return "failed: " + dynamo.FaultKind(rec.Err), StatusFailed
	case rec.Landed():
		return "landed", StatusDone
	default:
		return "t_end", StatusEnd
	}
}

// Table renders records as a bordered table, one row per iteration.
func Table(records []sweep.Record) string {
	rows := make([][]string, len(records))
	styles := make([]lipgloss.Style, len(records))
	for i, rec := range records {
		status, style := statusCell(rec)
		styles[i] = style
		rows[i] = []string{
			strconv.Itoa(rec.Index),
			fmt.Sprintf("%.4f", rec.LaunchAngle),
			fmt.Sprintf("%.5g", rec.Time),
			fmt.Sprintf("%.5g", rec.Speed()),
			fmt.Sprintf("%.5g", rec.X()),
			fmt.Sprintf("%.5g", rec.Y()),
			strconv.Itoa(rec.Steps),
			strconv.Itoa(rec.Rejected),
			status,
		}
	}

	const statusCol = 8
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(BorderColor)).
		Headers("#", "angle", "t", "v", "x", "y", "steps", "rej", "status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return cell.Bold(true).Foreground(lipgloss.Color("#ffffff"))
			case col == statusCol && row >= 0 && row < len(styles):
				return styles[row].Padding(0, 1)
			case col == 0:
				return cell.Foreground(MetricLabel.GetForeground())
			}
			return cell
		})

	return t.String()
}
