// Package display renders pipeline progress on a terminal.
//
// On an interactive terminal a progress bar tracks the run; otherwise, or when
// the display is disabled, each event is written as a plain line. Both modes
// finish with a summary table.
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/pavelanni/qanalyzer/internal/i18n"
	"github.com/pavelanni/qanalyzer/internal/model"
	"github.com/pavelanni/qanalyzer/internal/pipeline"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// Display is a pipeline.Observer writing to a terminal.
type Display struct {
	ctx         context.Context
	out         io.Writer
	colorize    bool
	interactive bool

	pw      progress.Writer
	tracker *progress.Tracker
}

var _ pipeline.Observer = (*Display)(nil)

// New creates a Display writing to out. ctx supplies the localizer. The
// progress bar is used only when out is a terminal and noDisplay is false.
func New(ctx context.Context, out io.Writer, noDisplay bool) *Display {
	tty := IsTerminal(out)
	return &Display{
		ctx:         ctx,
		out:         out,
		colorize:    tty,
		interactive: tty && !noDisplay,
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Title prints the application banner.
func (d *Display) Title() {
	d.println(ansiBlue, "== "+i18n.T(d.ctx, "AppTitle")+" ==")
}

// Fatal prints a run-stopping error.
func (d *Display) Fatal(err error) {
	d.stop()
	d.println(ansiRed, ErrorMessage(d.ctx, err))
}

func (d *Display) Status(status model.RunStatus) {
	switch status {
	case model.StatusFinalizing, model.StatusError:
		d.stop()
	}
	if msg := StatusMessage(d.ctx, status); msg != "" {
		color := ansiBlue
		if status == model.StatusCompleted {
			color = ansiGreen
		}
		d.println(color, msg)
	}
}

func (d *Display) Parsed(total int) {
	d.println("", i18n.Tp(d.ctx, "QuestionsFound", total))
}

func (d *Display) Started(string) {
	if !d.interactive {
		return
	}
	pw := progress.NewWriter()
	pw.SetOutputWriter(d.out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(40)
	pw.SetMessageLength(32)
	pw.SetStyle(progress.StyleDefault)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Colors = progress.StyleColorsExample
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Time = true
	d.pw = pw
	go pw.Render()
}

func (d *Display) Question(index, total int, _ model.Question) {
	msg := QuestionMessage(d.ctx, index, total)
	if d.pw == nil {
		d.println("", msg)
		return
	}
	if d.tracker == nil {
		d.tracker = &progress.Tracker{Message: msg, Total: int64(total), Units: progress.UnitsDefault}
		d.pw.AppendTracker(d.tracker)
		d.tracker.SetValue(int64(index - 1))
		return
	}
	d.tracker.UpdateMessage(msg)
}

func (d *Display) Succeeded(_ int, q model.Question, _ model.AnalysisResult) {
	d.advance()
	d.println(ansiGreen, SucceededMessage(d.ctx, q.Number))
}

func (d *Display) Failed(_ int, q model.Question, reason pipeline.Failure, _ error) {
	d.advance()
	d.println(ansiRed, FailedMessage(d.ctx, q.Number, reason))
}

func (d *Display) Interrupted(index, total int) {
	d.stop()
	d.println(ansiYellow, InterruptedMessage(d.ctx, index, total))
}

// Finished prints the run summary table.
func (d *Display) Finished(stats model.RunStats) {
	d.stop()
	fmt.Fprintln(d.out, Summary(d.ctx, stats))
}

// Summary renders stats as a two-column table.
func Summary(ctx context.Context, stats model.RunStats) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(i18n.T(ctx, "SummaryTitle"))
	tw.AppendHeader(table.Row{i18n.T(ctx, "SummaryMetric"), i18n.T(ctx, "SummaryValue")})
	tw.AppendRows([]table.Row{
		{i18n.T(ctx, "SummaryTotal"), stats.Total},
		{i18n.T(ctx, "SummaryProcessed"), stats.Processed},
		{i18n.T(ctx, "SummarySucceeded"), stats.Succeeded},
		{i18n.T(ctx, "SummaryFailed"), stats.Failed},
		{i18n.T(ctx, "SummarySuccessRate"), fmt.Sprintf("%.1f%%", stats.SuccessRate())},
		{i18n.T(ctx, "SummaryElapsed"), stats.Elapsed.Round(time.Second).String()},
		{i18n.T(ctx, "SummaryReport"), stats.ReportPath},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func (d *Display) advance() {
	if d.tracker != nil {
		d.tracker.Increment(1)
	}
}

// stop halts the progress bar and waits for its last frame.
func (d *Display) stop() {
	if d.pw == nil {
		return
	}
	if d.tracker != nil {
		d.tracker.MarkAsDone()
	}
	d.pw.Stop()
	for d.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
	d.pw = nil
	d.tracker = nil
}

func (d *Display) println(color, msg string) {
	if d.pw != nil {
		d.pw.Log("%s", msg)
		return
	}
	if d.colorize && color != "" {
		msg = color + msg + ansiReset
	}
	fmt.Fprintln(d.out, msg)
}
