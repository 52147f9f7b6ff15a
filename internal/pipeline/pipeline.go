// Package pipeline drives one document through parsing, analysis and report
// accumulation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/qanalyzer/internal/model"
	"github.com/pavelanni/qanalyzer/internal/parser"
)

var (
	// ErrNoQuestions is returned when a document holds no parseable question.
	ErrNoQuestions = errors.New("no questions found")
	// ErrBackendUnavailable is returned when the analysis backend probe fails.
	ErrBackendUnavailable = errors.New("analysis backend unavailable")
)

// Analyzer assesses a single question.
type Analyzer interface {
	Ping(ctx context.Context) error
	Analyze(ctx context.Context, q model.Question) (*model.AnalysisResult, error)
}

// Report accepts analysis results.
type Report interface {
	Append(res model.AnalysisResult) bool
	Finalize() error
	Path() string
	Close() error
}

// ReportFactory creates the destination report. It is called only after the
// backend probe succeeds.
type ReportFactory func() (Report, error)

// Observer receives progress notifications. Calls are made from the
// goroutine running the pipeline.
type Observer interface {
	Status(status model.RunStatus)
	Parsed(total int)
	Started(reportPath string)
	Question(index, total int, q model.Question)
	Succeeded(index int, q model.Question, res model.AnalysisResult)
	Failed(index int, q model.Question, reason Failure, err error)
	Interrupted(index, total int)
	Finished(stats model.RunStats)
}

// Failure classifies why a question did not reach the report.
type Failure int

const (
	FailureAnalysis Failure = iota
	FailureReport
)

func (f Failure) String() string {
	if f == FailureReport {
		return "report"
	}
	return "analysis"
}

// Runner runs the pipeline.
type Runner struct {
	analyzer  Analyzer
	newReport ReportFactory
	observer  Observer
	now       func() time.Time
}

// New creates a Runner. A nil observer discards progress notifications.
func New(a Analyzer, newReport ReportFactory, obs Observer) *Runner {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Runner{analyzer: a, newReport: newReport, observer: obs, now: time.Now}
}

// RunFile parses the file at path and runs it.
func (r *Runner) RunFile(ctx context.Context, path string) (model.RunStats, error) {
	r.observer.Status(model.StatusParsing)
	questions, err := parser.ParseFile(path)
	if err != nil {
		r.observer.Status(model.StatusError)
		return model.RunStats{Source: path}, err
	}
	return r.run(ctx, path, questions)
}

// RunText parses content and runs it. source labels the run in logs.
func (r *Runner) RunText(ctx context.Context, source, content string) (model.RunStats, error) {
	r.observer.Status(model.StatusParsing)
	return r.run(ctx, source, parser.Parse(content))
}

// run analyzes questions in order. Cancelling ctx stops the run between
// questions; a request already sent to the backend is allowed to finish.
// The report is finalized whenever it was created, including on interrupt.
func (r *Runner) run(ctx context.Context, source string, questions []model.Question) (model.RunStats, error) {
	start := r.now()
	stats := model.RunStats{Source: source, Total: len(questions)}

	if len(questions) == 0 {
		r.observer.Status(model.StatusError)
		return stats, fmt.Errorf("%w in %s", ErrNoQuestions, source)
	}
	r.observer.Parsed(len(questions))
	slog.Info("parsed questions", "source", source, "count", len(questions))

	r.observer.Status(model.StatusConnecting)
	if err := r.analyzer.Ping(ctx); err != nil {
		r.observer.Status(model.StatusError)
		return stats, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	rep, err := r.newReport()
	if err != nil {
		r.observer.Status(model.StatusError)
		return stats, fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if err := rep.Close(); err != nil {
			slog.Warn("failed to close report", "path", rep.Path(), "error", err)
		}
	}()
	stats.ReportPath = rep.Path()
	r.observer.Started(rep.Path())
	r.observer.Status(model.StatusAnalyzing)

	callCtx := context.WithoutCancel(ctx)
	for i, q := range questions {
		index := i + 1
		if ctx.Err() != nil {
			stats.Interrupted = true
			r.observer.Interrupted(index, len(questions))
			slog.Warn("run interrupted", "source", source, "at", index, "total", len(questions))
			break
		}
		r.observer.Question(index, len(questions), q)

		res, err := r.analyzer.Analyze(callCtx, q)
		stats.Processed++
		switch {
		case err != nil:
			stats.Failed++
			slog.Error("question analysis failed", "source", source, "question", q.Number, "error", err)
			r.observer.Failed(index, q, FailureAnalysis, err)
		case !rep.Append(*res):
			stats.Failed++
			r.observer.Failed(index, q, FailureReport, nil)
		default:
			stats.Succeeded++
			if !res.RatingFound {
				slog.Warn("no rating in analysis, recorded as 0", "source", source, "question", q.Number)
			}
			r.observer.Succeeded(index, q, *res)
		}
	}

	r.observer.Status(model.StatusFinalizing)
	finalizeErr := rep.Finalize()
	if finalizeErr != nil {
		slog.Error("failed to finalize report", "path", rep.Path(), "error", finalizeErr)
	}

	stats.Elapsed = r.now().Sub(start)
	if stats.Interrupted {
		r.observer.Status(model.StatusInterrupted)
	} else {
		r.observer.Status(model.StatusCompleted)
	}
	r.observer.Finished(stats)
	slog.Info("run finished",
		"source", source,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"total", stats.Total,
		"report", stats.ReportPath,
	)
	if finalizeErr != nil {
		return stats, fmt.Errorf("finalize report: %w", finalizeErr)
	}
	return stats, nil
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) Status(model.RunStatus)                              {}
func (NopObserver) Parsed(int)                                          {}
func (NopObserver) Started(string)                                      {}
func (NopObserver) Question(int, int, model.Question)                   {}
func (NopObserver) Succeeded(int, model.Question, model.AnalysisResult) {}
func (NopObserver) Failed(int, model.Question, Failure, error)          {}
func (NopObserver) Interrupted(int, int)                                {}
func (NopObserver) Finished(model.RunStats)                             {}
