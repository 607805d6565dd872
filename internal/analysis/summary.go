package analysis

import (
	"time"

	"github.com/san-kum/glidesim/internal/dynamo"
	"github.com/san-kum/glidesim/internal/sweep"
)

// Extremum is the iteration holding the largest value of some quantity.
// OK is false when no iteration qualified.
type Extremum struct {
	OK          bool
	Index       int
	LaunchAngle float64
	Value       float64
}

func (e *Extremum) offer(rec sweep.Record, v float64) {
	if !e.OK || v > e.Value {
		*e = Extremum{OK: true, Index: rec.Index, LaunchAngle: rec.LaunchAngle, Value: v}
	}
}

type Summary struct {
	Total      int
	Landed     int
	ReachedEnd int
	Failed     int
	Faults     map[string]int

	// Over landed iterations only.
	BestRange     Extremum
	LongestFlight Extremum

	Steps       int
	Rejected    int
	Evaluations int
	Elapsed     time.Duration
}

func Summarize(records []sweep.Record) Summary {
	s := Summary{
		Total:  len(records),
		Faults: make(map[string]int),
	}

	for _, rec := range records {
		s.Steps += rec.Steps
		s.Rejected += rec.Rejected
		s.Evaluations += rec.Evaluations
		s.Elapsed += rec.Elapsed

		switch {
		case rec.Status == dynamo.Failed:
			s.Failed++
			s.Faults[dynamo.FaultKind(rec.Err)]++
		case rec.Landed():
			s.Landed++
			s.BestRange.offer(rec, rec.X())
			s.LongestFlight.offer(rec, rec.Time)
		default:
			s.ReachedEnd++
		}
	}
	return s
}

// RejectionRate is rejected attempts over all attempts.
func (s Summary) RejectionRate() float64 {
	attempts := s.Steps + s.Rejected
	if attempts == 0 {
		return 0
	}
	return float64(s.Rejected) / float64(attempts)
}

// Map flattens the summary for run metadata.
func (s Summary) Map() map[string]float64 {
	m := map[string]float64{
		"total":          float64(s.Total),
		"landed":         float64(s.Landed),
		"reached_t_end":  float64(s.ReachedEnd),
		"failed":         float64(s.Failed),
		"steps":          float64(s.Steps),
		"rejected":       float64(s.Rejected),
		"evaluations":    float64(s.Evaluations),
		"rejection_rate": s.RejectionRate(),
		"elapsed_s":      s.Elapsed.Seconds(),
	}
	if s.BestRange.OK {
		m["best_range"] = s.BestRange.Value
		m["best_range_index"] = float64(s.BestRange.Index)
		m["best_range_angle"] = s.BestRange.LaunchAngle
	}
	if s.LongestFlight.OK {
		m["longest_flight"] = s.LongestFlight.Value
		m["longest_flight_index"] = float64(s.LongestFlight.Index)
		m["longest_flight_angle"] = s.LongestFlight.LaunchAngle
	}
	return m
}
