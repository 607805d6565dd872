// Package viz renders sweep records for the terminal.
//
// Record output comes in four formats selected by [ParseFormat]:
//
//   - text: one line per iteration, t, v, launch angle, x and y as % .5e
//     separated by two spaces; failed iterations are prefixed "troubles: "
//   - csv: one row per iteration with status and step statistics
//   - json: the same rows as a JSON document
//   - table: a styled lipgloss table
//
// [RangePlot] draws final x against iteration with asciigraph and
// [WriteSummary] prints the aggregate counts from the analysis package.
package viz
