package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/doeshing/dexplorer/internal/domain"
)

const maxCodePreview = 60

// Renderer prints outcomes, result records and history entries.
type Renderer struct {
	out    io.Writer
	format string

	okColor   *color.Color
	errColor  *color.Color
	dimColor  *color.Color
	headColor *color.Color
}

// NewRenderer builds a renderer writing format to out. Unknown formats fall back to table.
func NewRenderer(out io.Writer, format string, useColor bool) *Renderer {
	r := &Renderer{
		out:       out,
		format:    normalizeFormat(format),
		okColor:   color.New(color.FgGreen),
		errColor:  color.New(color.FgRed, color.Bold),
		dimColor:  color.New(color.Faint),
		headColor: color.New(color.FgCyan, color.Bold),
	}
	if !useColor {
		for _, c := range []*color.Color{r.okColor, r.errColor, r.dimColor, r.headColor} {
			c.DisableColor()
		}
	}
	return r
}

// Format returns the active output format.
func (r *Renderer) Format() string {
	return r.format
}

// SetFormat switches the output format.
func (r *Renderer) SetFormat(format string) {
	r.format = normalizeFormat(format)
}

func normalizeFormat(format string) string {
	switch strings.ToLower(format) {
	case domain.FormatJSON:
		return domain.FormatJSON
	case domain.FormatCSV:
		return domain.FormatCSV
	case domain.FormatMarkdown, "markdown":
		return domain.FormatMarkdown
	default:
		return domain.FormatTable
	}
}

// Outcome prints the log line of an execution followed by its record, if any.
func (r *Renderer) Outcome(outcome domain.Outcome) error {
	switch outcome.Kind {
	case domain.OutcomeTransportFailure:
		_, _ = r.errColor.Fprintf(r.out, "request failed: %s\n", outcome.Error)
		return nil
	case domain.OutcomeRecoveredFailure, domain.OutcomeNoRecord:
		if outcome.Log != nil {
			r.Log(*outcome.Log)
		}
		return nil
	default:
		if outcome.Log != nil {
			r.Log(*outcome.Log)
		}
		if outcome.Record == nil {
			return nil
		}
		return r.Record(*outcome.Record)
	}
}

// Log prints a one-entry summary in the order the backend reported it.
func (r *Renderer) Log(entry domain.LogEntry) {
	kind := r.headColor.Sprintf("[%s]", entry.Type)
	if entry.Failed() {
		_, _ = fmt.Fprintf(r.out, "%s %s %s\n", kind, r.errColor.Sprintf("error %d:", entry.Code), entry.Error)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s %s %s\n", kind, r.okColor.Sprint("ok"), r.dimColor.Sprintf("in %d ms", entry.ExecutionTimeMS))
	}
	if entry.PromInfo != nil {
		_, _ = r.dimColor.Fprintf(r.out, "  range %s .. %s step %s\n", entry.PromInfo.Start, entry.PromInfo.End, entry.PromInfo.Step)
	}
	for _, res := range entry.Results {
		switch {
		case res.Records != nil:
			_, _ = fmt.Fprintf(r.out, "  %s rows returned\n", humanize.Comma(int64(*res.Records)))
		case res.AffectedRows != nil:
			_, _ = fmt.Fprintf(r.out, "  %s rows affected\n", humanize.Comma(int64(*res.AffectedRows)))
		}
	}
}

// Record prints one stored result in the active format.
func (r *Renderer) Record(rec domain.ResultRecord) error {
	cols := rec.Records.ColumnNames()
	if r.format == domain.FormatJSON {
		return r.recordJSON(cols, rec.Records.Rows)
	}

	t := r.newTable()
	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, row := range rec.Records.Rows {
		out := make(table.Row, len(cols))
		for i := range cols {
			if i < len(row) {
				out[i] = FormatValue(row[i])
			} else {
				out[i] = FormatValue(nil)
			}
		}
		t.AppendRow(out)
	}
	r.render(t)

	if r.format == domain.FormatTable {
		summary := fmt.Sprintf("(#%d, %s rows", rec.Key, humanize.Comma(int64(rec.Records.RowCount())))
		if x := rec.DimensionsAndXName.XName; x != "" {
			summary += ", x: " + x
		}
		_, _ = r.dimColor.Fprintln(r.out, summary+")")
	}
	return nil
}

func (r *Renderer) recordJSON(cols []string, rows [][]any) error {
	objects := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]any, len(cols))
		for i, col := range cols {
			if i < len(row) {
				obj[col] = row[i]
			} else {
				obj[col] = nil
			}
		}
		objects = append(objects, obj)
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(objects)
}

// ResultList prints a one-line summary per stored result.
func (r *Renderer) ResultList(records []domain.ResultRecord) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(r.out, "No results stored.")
		return
	}
	t := r.newTable()
	t.AppendHeader(table.Row{"Key", "Type", "Rows", "Columns", "X"})
	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.Key,
			string(rec.Type),
			humanize.Comma(int64(rec.Records.RowCount())),
			strings.Join(rec.Records.ColumnNames(), ", "),
			rec.DimensionsAndXName.XName,
		})
	}
	r.render(t)
}

// History prints persisted log entries, newest first, relative to now.
func (r *Renderer) History(entries []domain.LogEntry, now time.Time) error {
	if r.format == domain.FormatJSON {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	t := r.newTable()
	t.AppendHeader(table.Row{"When", "Kind", "Status", "Time", "Code"})
	for _, entry := range entries {
		status := "ok"
		if entry.Failed() {
			status = fmt.Sprintf("error %d", entry.Code)
		}
		when := entry.CreatedAt.Local().Format(domain.TimestampFormat)
		if r.format == domain.FormatTable {
			when = humanize.RelTime(entry.CreatedAt, now, "ago", "from now")
		}
		t.AppendRow(table.Row{
			when,
			string(entry.Type),
			status,
			fmt.Sprintf("%d ms", entry.ExecutionTimeMS),
			Truncate(entry.CodeInfo, maxCodePreview),
		})
	}
	r.render(t)
	return nil
}

// Checks prints doctor results.
func (r *Renderer) Checks(report domain.HealthReport) {
	for _, check := range report.Checks {
		label := strings.ToUpper(string(check.Status))
		switch check.Status {
		case domain.HealthOK:
			label = r.okColor.Sprint(label)
		case domain.HealthError:
			label = r.errColor.Sprint(label)
		}
		_, _ = fmt.Fprintf(r.out, "[%s] %s - %s\n", label, check.Name, check.Details)
	}
}

func (r *Renderer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	return t
}

func (r *Renderer) render(t table.Writer) {
	switch r.format {
	case domain.FormatCSV:
		t.RenderCSV()
	case domain.FormatMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
}

// FormatValue renders a decoded JSON cell.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Truncate shortens s to max runes on a single line.
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
