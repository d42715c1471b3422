// Package reporter renders pass results for the command line.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fenilsonani/sortdir/internal/duplicates"
	"github.com/fenilsonani/sortdir/internal/fileops"
	"github.com/fenilsonani/sortdir/internal/ledger"
	"github.com/fenilsonani/sortdir/internal/organizer"
	"github.com/fenilsonani/sortdir/pkg/utils"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// ParseFormat validates a format name
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use summary, table, json or yaml)", s)
	}
}

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
}

// New creates a new Reporter
func New(writer io.Writer, format OutputFormat) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
	}
}

// CategoryCount is one row of the per-category breakdown
type CategoryCount struct {
	Category string `json:"category" yaml:"category"`
	Files    int    `json:"files" yaml:"files"`
	Bytes    int64  `json:"bytes" yaml:"bytes"`
}

// Breakdown returns the summary counters, largest category first
func Breakdown(s *organizer.RunSummary) []CategoryCount {
	rows := make([]CategoryCount, 0, len(s.Counts))
	for cat, n := range s.Counts {
		rows = append(rows, CategoryCount{Category: cat, Files: n, Bytes: s.Bytes[cat]})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Files != rows[j].Files {
			return rows[i].Files > rows[j].Files
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

type moveRow struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	Size int64  `json:"size" yaml:"size"`
}

type diagnosticRow struct {
	Op     string `json:"op" yaml:"op"`
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
	Error  string `json:"error" yaml:"error"`
}

type runReport struct {
	Timestamp       string          `json:"timestamp" yaml:"timestamp"`
	RunID           string          `json:"run_id" yaml:"run_id"`
	Directory       string          `json:"directory" yaml:"directory"`
	DryRun          bool            `json:"dry_run" yaml:"dry_run"`
	Scanned         int             `json:"scanned" yaml:"scanned"`
	Moved           int             `json:"moved" yaml:"moved"`
	Failed          int             `json:"failed" yaml:"failed"`
	TotalSize       int64           `json:"total_size" yaml:"total_size"`
	TotalFormatted  string          `json:"total_size_formatted" yaml:"total_size_formatted"`
	DuplicateGroups int             `json:"duplicate_groups" yaml:"duplicate_groups"`
	DurationMs      int64           `json:"duration_ms" yaml:"duration_ms"`
	Categories      []CategoryCount `json:"categories" yaml:"categories"`
	Moves           []moveRow       `json:"moves" yaml:"moves"`
	Diagnostics     []diagnosticRow `json:"diagnostics" yaml:"diagnostics"`
}

func diagnostics(errs []*fileops.FileError) []diagnosticRow {
	rows := make([]diagnosticRow, 0, len(errs))
	for _, e := range errs {
		rows = append(rows, diagnosticRow{Op: e.Op, Path: e.Path, Reason: e.Reason.String(), Error: fmt.Sprint(e.Err)})
	}
	return rows
}

// Report renders the summary of an organization pass
func (r *Reporter) Report(s *organizer.RunSummary) error {
	switch r.format {
	case FormatTable:
		return r.reportTable(s)
	case FormatJSON:
		return r.encode(r.buildReport(s))
	case FormatYAML:
		return r.encode(r.buildReport(s))
	case FormatSummary:
		return r.reportSummary(s)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) buildReport(s *organizer.RunSummary) runReport {
	moves := make([]moveRow, 0, len(s.Moves))
	for _, m := range s.Moves {
		moves = append(moves, moveRow{From: m.Original, To: m.Destination, Size: m.Size})
	}
	return runReport{
		Timestamp:       s.StartedAt.Format(time.RFC3339),
		RunID:           s.RunID,
		Directory:       s.Directory,
		DryRun:          s.DryRun,
		Scanned:         s.Scanned,
		Moved:           s.Moved,
		Failed:          s.Failed,
		TotalSize:       s.TotalBytes(),
		TotalFormatted:  utils.FormatBytes(s.TotalBytes()),
		DuplicateGroups: s.DuplicateGroups,
		DurationMs:      s.Duration.Milliseconds(),
		Categories:      Breakdown(s),
		Moves:           moves,
		Diagnostics:     diagnostics(s.Diagnostics),
	}
}

// reportSummary generates a summary report
func (r *Reporter) reportSummary(s *organizer.RunSummary) error {
	title := "Organize Summary"
	if s.DryRun {
		title = "Organize Summary (dry run)"
	}
	fmt.Fprintf(r.writer, "=== %s ===\n", title)
	fmt.Fprintf(r.writer, "Directory: %s\n", s.Directory)
	fmt.Fprintf(r.writer, "Moved: %d files, %s\n", s.Moved, utils.FormatBytes(s.TotalBytes()))
	if s.DuplicateGroups > 0 {
		fmt.Fprintf(r.writer, "Duplicate groups: %d\n", s.DuplicateGroups)
	}

	if rows := Breakdown(s); len(rows) > 0 {
		fmt.Fprintf(r.writer, "\nBreakdown by Category:\n")
		for _, row := range rows {
			fmt.Fprintf(r.writer, "  %s: %d files, %s\n", row.Category, row.Files, utils.FormatBytes(row.Bytes))
		}
	}

	if s.Failed > 0 || len(s.Diagnostics) > 0 {
		fmt.Fprintf(r.writer, "\nErrors: %d\n", len(s.Diagnostics))
		fmt.Fprint(r.writer, fileops.FormatErrorSummary(s.Diagnostics))
	}

	return nil
}

// reportTable generates a table report
func (r *Reporter) reportTable(s *organizer.RunSummary) error {
	rule := strings.Repeat("-", 110)

	fmt.Fprintf(r.writer, "%-45s | %-45s | %s\n", "From", "To", "Size")
	fmt.Fprintln(r.writer, rule)

	for _, m := range s.Moves {
		fmt.Fprintf(r.writer, "%-45s | %-45s | %s\n",
			truncate(relative(s.Directory, m.Original), 45),
			truncate(relative(s.Directory, m.Destination), 45),
			utils.FormatBytes(m.Size))
	}

	fmt.Fprintf(r.writer, "\n%s\n", rule)
	fmt.Fprintf(r.writer, "Total: %d files, %s", s.Moved, utils.FormatBytes(s.TotalBytes()))
	if s.Failed > 0 {
		fmt.Fprintf(r.writer, ", %d failed", s.Failed)
	}
	fmt.Fprintln(r.writer)

	return nil
}

func (r *Reporter) encode(v interface{}) error {
	if r.format == FormatYAML {
		encoder := yaml.NewEncoder(r.writer)
		defer encoder.Close()
		return encoder.Encode(v)
	}
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// =============================================================================
// Undo and duplicate reports
// =============================================================================

type undoReport struct {
	RunID         string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Directory     string            `json:"directory,omitempty" yaml:"directory,omitempty"`
	NothingToUndo bool              `json:"nothing_to_undo" yaml:"nothing_to_undo"`
	Restored      int               `json:"restored" yaml:"restored"`
	Failed        int               `json:"failed" yaml:"failed"`
	Renamed       map[string]string `json:"renamed,omitempty" yaml:"renamed,omitempty"`
	Diagnostics   []diagnosticRow   `json:"diagnostics" yaml:"diagnostics"`
}

// ReportUndo renders the outcome of an undo
func (r *Reporter) ReportUndo(u *organizer.UndoResult) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		return r.encode(undoReport{
			RunID:         u.RunID,
			Directory:     u.Directory,
			NothingToUndo: u.NothingToUndo,
			Restored:      u.Restored,
			Failed:        u.Failed,
			Renamed:       u.Renamed,
			Diagnostics:   diagnostics(u.Errors),
		})
	case FormatTable, FormatSummary:
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}

	if u.NothingToUndo {
		fmt.Fprintln(r.writer, "Nothing to undo.")
		return nil
	}

	fmt.Fprintf(r.writer, "Restored %d files.\n", u.Restored)
	if u.Failed > 0 {
		fmt.Fprintf(r.writer, "Failed to restore %d files.\n", u.Failed)
	}

	originals := make([]string, 0, len(u.Renamed))
	for orig := range u.Renamed {
		originals = append(originals, orig)
	}
	sort.Strings(originals)
	for _, orig := range originals {
		fmt.Fprintf(r.writer, "  %s was taken, restored as %s\n", orig, u.Renamed[orig])
	}

	fmt.Fprint(r.writer, fileops.FormatErrorSummary(u.Errors))
	return nil
}

type groupReport struct {
	Hash   string   `json:"hash" yaml:"hash"`
	Size   int64    `json:"size" yaml:"size"`
	Keeper string   `json:"keeper" yaml:"keeper"`
	Extras []string `json:"duplicates" yaml:"duplicates"`
}

// ReportDuplicates renders duplicate groups with the keeper first
func (r *Reporter) ReportDuplicates(groups []duplicates.Group) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		rows := make([]groupReport, 0, len(groups))
		for _, g := range groups {
			row := groupReport{Hash: g.Hash, Size: g.Size, Keeper: g.Keeper().Path, Extras: []string{}}
			for _, f := range g.Extras() {
				row.Extras = append(row.Extras, f.Path)
			}
			rows = append(rows, row)
		}
		return r.encode(rows)
	case FormatTable, FormatSummary:
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}

	if len(groups) == 0 {
		fmt.Fprintln(r.writer, "No duplicates found.")
		return nil
	}

	var wasted int64
	for i, g := range groups {
		fmt.Fprintf(r.writer, "Group %d (%s each):\n", i+1, utils.FormatBytes(g.Size))
		fmt.Fprintf(r.writer, "  keep    %s\n", g.Keeper().Name)
		for _, f := range g.Extras() {
			fmt.Fprintf(r.writer, "  extra   %s\n", f.Name)
		}
		wasted += g.Wasted()
	}
	fmt.Fprintf(r.writer, "\n%d groups, %s reclaimable\n", len(groups), utils.FormatBytes(wasted))
	return nil
}

// ReportPlan renders the moves a pass would make
func (r *Reporter) ReportPlan(p *organizer.Plan) error {
	summary := &organizer.RunSummary{
		Directory:       p.Directory,
		Counts:          make(map[string]int),
		Bytes:           make(map[string]int64),
		Scanned:         p.Scanned,
		DuplicateGroups: len(p.Groups),
		Diagnostics:     p.Diagnostics,
		DryRun:          true,
		StartedAt:       time.Now(),
	}
	for _, a := range p.Actions {
		summary.Counts[a.Category]++
		summary.Bytes[a.Category] += a.Size
		summary.Moves = append(summary.Moves, ledger.Record{Original: a.Source, Destination: a.Destination, Size: a.Size})
	}
	summary.Moved = len(summary.Moves)
	summary.Failed = len(p.Diagnostics)
	return r.Report(summary)
}

// SaveToFile saves the report to a file
func SaveToFile(s *organizer.RunSummary, path string, format OutputFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return New(file, format).Report(s)
}

func relative(base, path string) string {
	if rel, ok := strings.CutPrefix(path, base+string(os.PathSeparator)); ok {
		return rel
	}
	return path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-(n-3):]
}
