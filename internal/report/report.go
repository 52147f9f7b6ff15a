// Package report accumulates analysis results into an xlsx workbook.
//
// The workbook is written to disk after every appended row so an interrupted
// run never loses results that were already accepted. A lock file next to the
// workbook keeps a second run from writing to the same destination.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/qanalyzer/internal/model"
)

const (
	headerRow     = 1
	firstDataRow  = 2
	ratingColumn  = 6
	dataRowHeight = 60

	defaultSheetName = "Sheet1"
)

var (
	// ErrFinalized is returned when a report is modified after Finalize.
	ErrFinalized = errors.New("report already finalized")
	// ErrLocked is returned when another run holds the destination.
	ErrLocked = errors.New("report destination is locked by another run")
)

// Headers is the fixed column order of the report.
var Headers = []string{
	"Subject",
	"Topic",
	"Subtopic",
	"Question (Complete)",
	"Answer with Explanation (Complete)",
	"Rating (out of 10)",
	"Conceptual Depth",
	"Answer Accuracy",
	"Topic-Subtopic Relevance",
	"Improved Version",
}

var columnWidths = []float64{15, 20, 20, 60, 60, 15, 40, 40, 40, 60}

// Config locates the workbook.
type Config struct {
	Folder    string
	Filename  string
	SheetName string
}

// Report is an open workbook that accepts one row per analyzed question.
type Report struct {
	file      *excelize.File
	sheet     string
	path      string
	lock      *flock.Flock
	styles    styles
	row       int
	finalized bool
}

// New creates the output folder, locks the destination and writes a workbook
// containing only the styled header row.
func New(cfg Config) (*Report, error) {
	if err := os.MkdirAll(cfg.Folder, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}
	path := filepath.Join(cfg.Folder, cfg.Filename)

	lock := flock.New(LockFile(path))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	r, err := create(cfg.SheetName, path, lock)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return r, nil
}

// LockFile returns the lock file guarding the workbook at path.
func LockFile(path string) string {
	return path + ".lock"
}

func create(sheet, path string, lock *flock.Flock) (*Report, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheetName, sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	st, err := newStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create styles: %w", err)
	}

	r := &Report{
		file:   f,
		sheet:  sheet,
		path:   path,
		lock:   lock,
		styles: st,
		row:    firstDataRow,
	}
	if err := r.writeHeader(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := r.save(); err != nil {
		_ = f.Close()
		return nil, err
	}
	slog.Info("report created", "path", path, "sheet", sheet)
	return r, nil
}

func (r *Report) writeHeader() error {
	for i, h := range Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return err
		}
		if err := r.file.SetCellValue(r.sheet, cell, h); err != nil {
			return err
		}
		if err := r.file.SetCellStyle(r.sheet, cell, cell, r.styles.header); err != nil {
			return err
		}
	}
	for i, w := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := r.file.SetColWidth(r.sheet, col, col, w); err != nil {
			return err
		}
	}
	return r.file.SetPanes(r.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// Path returns the workbook location.
func (r *Report) Path() string {
	return r.path
}

// Rows returns the number of data rows written so far.
func (r *Report) Rows() int {
	return r.row - firstDataRow
}

// Append writes res as the next row and saves the workbook. It reports
// failure instead of returning an error; the cause is logged.
func (r *Report) Append(res model.AnalysisResult) bool {
	if err := r.append(res); err != nil {
		slog.Error("failed to add result to report", "path", r.path, "row", r.row, "error", err)
		return false
	}
	return true
}

// append writes and saves one row. On failure the row is removed again so a
// later save cannot persist a result the caller was told was rejected.
func (r *Report) append(res model.AnalysisResult) error {
	if r.finalized {
		return ErrFinalized
	}
	err := r.writeRow(res)
	if err == nil {
		err = r.save()
	}
	if err != nil {
		if rmErr := r.file.RemoveRow(r.sheet, r.row); rmErr != nil {
			slog.Warn("failed to discard rejected row", "path", r.path, "row", r.row, "error", rmErr)
		}
		return err
	}
	r.row++
	return nil
}

func (r *Report) writeRow(res model.AnalysisResult) error {
	values := []any{
		res.Subject,
		res.Topic,
		res.Subtopic,
		res.QuestionComplete,
		res.AnswerExplanation,
		res.Rating,
		res.ConceptualDepth,
		res.AnswerAccuracy,
		res.TopicRelevance,
		res.ImprovedVersion,
	}
	for i, v := range values {
		col := i + 1
		cell, err := excelize.CoordinatesToCellName(col, r.row)
		if err != nil {
			return err
		}
		if err := r.file.SetCellValue(r.sheet, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
		style := r.styles.data
		if col == ratingColumn {
			style = r.styles.rating[model.TierFor(res.Rating)]
		}
		if err := r.file.SetCellStyle(r.sheet, cell, cell, style); err != nil {
			return fmt.Errorf("style %s: %w", cell, err)
		}
	}
	if err := r.file.SetRowHeight(r.sheet, r.row, dataRowHeight); err != nil {
		return fmt.Errorf("row height: %w", err)
	}
	return nil
}

// Finalize writes the summary block below the data and saves the workbook.
// Aggregates are live formulas over the rating column. A report can be
// finalized only once.
func (r *Report) Finalize() error {
	if r.finalized {
		return ErrFinalized
	}
	if err := r.writeSummary(time.Now()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	r.finalized = true
	return r.save()
}

func (r *Report) writeSummary(now time.Time) error {
	title := r.row + 2
	if err := r.setStyled(1, title, "ANALYSIS SUMMARY", r.styles.title); err != nil {
		return err
	}
	if err := r.file.MergeCell(r.sheet, fmt.Sprintf("A%d", title), fmt.Sprintf("D%d", title)); err != nil {
		return err
	}

	if rows := r.Rows(); rows > 0 {
		for i, line := range summaryFormulas(firstDataRow, r.row-1) {
			row := title + 1 + i
			if err := r.setStyled(1, row, line.label, r.styles.label); err != nil {
				return err
			}
			if err := r.file.SetCellFormula(r.sheet, fmt.Sprintf("B%d", row), line.formula); err != nil {
				return err
			}
		}
		total := title + 6
		if err := r.setStyled(1, total, "Total Questions:", r.styles.label); err != nil {
			return err
		}
		if err := r.file.SetCellValue(r.sheet, fmt.Sprintf("B%d", total), rows); err != nil {
			return err
		}
	}

	footer := fmt.Sprintf("Generated on: %s", now.Format("2006-01-02 15:04:05"))
	return r.setStyled(1, title+8, footer, r.styles.footer)
}

type summaryLine struct {
	label   string
	formula string
}

// summaryFormulas returns the aggregate rows over ratings in F<first>:F<last>.
// The tier bounds match the rating cell colors.
func summaryFormulas(first, last int) []summaryLine {
	rng := fmt.Sprintf("F%d:F%d", first, last)
	return []summaryLine{
		{"Average Rating:", fmt.Sprintf("AVERAGE(%s)", rng)},
		{"High Quality (9-10):", fmt.Sprintf(`COUNTIFS(%s,">=9")`, rng)},
		{"Good Quality (7-8):", fmt.Sprintf(`COUNTIFS(%s,">=7",%s,"<9")`, rng, rng)},
		{"Average Quality (5-6):", fmt.Sprintf(`COUNTIFS(%s,">=5",%s,"<7")`, rng, rng)},
		{"Below Standard (<5):", fmt.Sprintf(`COUNTIF(%s,"<5")`, rng)},
	}
}

func (r *Report) setStyled(col, row int, value any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := r.file.SetCellValue(r.sheet, cell, value); err != nil {
		return err
	}
	return r.file.SetCellStyle(r.sheet, cell, cell, style)
}

func (r *Report) save() error {
	if err := r.file.SaveAs(r.path); err != nil {
		return fmt.Errorf("save report %s: %w", r.path, err)
	}
	return nil
}

// Close releases the workbook and the destination lock.
func (r *Report) Close() error {
	return errors.Join(r.file.Close(), r.lock.Unlock())
}
