package viz

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/glidesim/internal/analysis"
	"github.com/san-kum/glidesim/internal/sweep"
)

// RangePlot draws the final x of every record against its iteration index.
// Failed records contribute their last valid x.
func RangePlot(records []sweep.Record, width, height int) string {
	if len(records) == 0 {
		return ""
	}

	data := make([]float64, len(records))
	for i, rec := range records {
		data[i] = rec.X()
	}

	first, last := records[0].LaunchAngle, records[len(records)-1].LaunchAngle
	caption := fmt.Sprintf("final x vs launch angle (%.3f .. %.3f rad)", first, last)

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

func metric(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %s\n", MetricLabel.Render(fmt.Sprintf("%-16s", label)), MetricValue.Render(fmt.Sprint(value)))
}

// WriteSummary prints the sweep counts, extremes and step statistics.
func WriteSummary(w io.Writer, s analysis.Summary, records []sweep.Record) {
	fmt.Fprintln(w, HeaderStyle.Render("summary"))
	metric(w, "iterations", s.Total)
	metric(w, "landed", s.Landed)
	metric(w, "reached t_end", s.ReachedEnd)
	metric(w, "failed", s.Failed)
	kinds := make([]string, 0, len(s.Faults))
	for kind := range s.Faults {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		metric(w, "  "+kind, s.Faults[kind])
	}
	if s.BestRange.OK {
		metric(w, "best range", fmt.Sprintf("%.5g (#%d, angle %.4f)", s.BestRange.Value, s.BestRange.Index, s.BestRange.LaunchAngle))
	}
	if s.LongestFlight.OK {
		metric(w, "longest flight", fmt.Sprintf("%.5g (#%d, angle %.4f)", s.LongestFlight.Value, s.LongestFlight.Index, s.LongestFlight.LaunchAngle))
	}
	metric(w, "steps", fmt.Sprintf("%d accepted, %d rejected (%.1f%%)", s.Steps, s.Rejected, 100*s.RejectionRate()))
	metric(w, "evaluations", s.Evaluations)
	metric(w, "cpu time", s.Elapsed.Round(time.Microsecond))

	if len(records) > 1 {
		xs := make([]float64, len(records))
		for i, rec := range records {
			xs[i] = rec.X()
		}
		fmt.Fprintf(w, "%s %s\n", MetricLabel.Render(fmt.Sprintf("%-16s", "range by angle")), SparklineChart(xs, len(xs)))
	}
}
