package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/qanalyzer/internal/model"
	"github.com/pavelanni/qanalyzer/internal/parser"
)

type fakeAnalyzer struct {
	pingErr  error
	failOn   map[int]bool // question numbers whose analysis fails
	noRating map[int]bool
	calls    []int
	onCall   func(n int)
}

func (f *fakeAnalyzer) Ping(context.Context) error { return f.pingErr }

func (f *fakeAnalyzer) Analyze(ctx context.Context, q model.Question) (*model.AnalysisResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.calls = append(f.calls, q.Number)
	if f.onCall != nil {
		f.onCall(q.Number)
	}
	if f.failOn[q.Number] {
		return nil, errors.New("analysis failed")
	}
	return &model.AnalysisResult{
		Subject:     q.Subject,
		Rating:      q.Number,
		RatingFound: !f.noRating[q.Number],
	}, nil
}

type fakeReport struct {
	rows      []model.AnalysisResult
	rejectOn  map[int]bool // ratings rejected by Append
	finalized int
	closed    bool
}

func (r *fakeReport) Append(res model.AnalysisResult) bool {
	if r.rejectOn[res.Rating] {
		return false
	}
	r.rows = append(r.rows, res)
	return true
}
func (r *fakeReport) Finalize() error { r.finalized++; return nil }
func (r *fakeReport) Path() string    { return "out/report.xlsx" }
func (r *fakeReport) Close() error    { r.closed = true; return nil }

type recorder struct {
	NopObserver
	statuses    []model.RunStatus
	succeeded   []int
	failed      map[int]Failure
	interrupted int
	finished    *model.RunStats
}

func (r *recorder) Status(s model.RunStatus) { r.statuses = append(r.statuses, s) }
func (r *recorder) Succeeded(i int, _ model.Question, _ model.AnalysisResult) {
	r.succeeded = append(r.succeeded, i)
}
func (r *recorder) Failed(i int, _ model.Question, f Failure, _ error) {
	if r.failed == nil {
		r.failed = map[int]Failure{}
	}
	r.failed[i] = f
}
func (r *recorder) Interrupted(i, _ int)      { r.interrupted = i }
func (r *recorder) Finished(s model.RunStats) { r.finished = &s }
func (r *recorder) last() model.RunStatus     { return r.statuses[len(r.statuses)-1] }

func document(n int) string {
	var sb strings.Builder
	sb.WriteString("Subject: History\nTopic: Ancient\nSubtopic: Rome\n\n")
	for i := 1; i <= n; i++ {
		sb.WriteString(parser.Separator + "\n")
		fmt.Fprintf(&sb, "**QUESTION %d**\n\n**Q:** Question number %d?\n\nA. one\nB. two\nC. three\nD. four\n\n", i, i)
		sb.WriteString("**Correct Answer:** A. one\n\n**Explanation:** Because.\n\n")
	}
	sb.WriteString(parser.Separator + "\n")
	return sb.String()
}

func factory(rep *fakeReport, created *bool) ReportFactory {
	return func() (Report, error) {
		*created = true
		return rep, nil
	}
}

func TestRunAllSucceed(t *testing.T) {
	a := &fakeAnalyzer{}
	rep := &fakeReport{}
	var created bool
	obs := &recorder{}

	stats, err := New(a, factory(rep, &created), obs).RunText(context.Background(), "doc", document(3))
	if err != nil {
		t.Fatalf("RunText: %v", err)
	}
	if stats.Total != 3 || stats.Processed != 3 || stats.Succeeded != 3 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ReportPath != "out/report.xlsx" {
		t.Errorf("ReportPath = %q", stats.ReportPath)
	}
	if len(rep.rows) != 3 || rep.finalized != 1 || !rep.closed {
		t.Errorf("report rows=%d finalized=%d closed=%v", len(rep.rows), rep.finalized, rep.closed)
	}
	if obs.last() != model.StatusCompleted {
		t.Errorf("final status = %q, want completed", obs.last())
	}
	if obs.finished == nil || obs.finished.Succeeded != 3 {
		t.Errorf("Finished not reported correctly: %+v", obs.finished)
	}
}

func TestRunPartialSuccess(t *testing.T) {
	a := &fakeAnalyzer{failOn: map[int]bool{2: true}}
	rep := &fakeReport{rejectOn: map[int]bool{4: true}}
	var created bool
	obs := &recorder{}

	stats, err := New(a, factory(rep, &created), obs).RunText(context.Background(), "doc", document(5))
	if err != nil {
		t.Fatalf("RunText: %v", err)
	}
	if stats.Succeeded != 3 || stats.Failed != 2 || stats.Processed != 5 {
		t.Errorf("stats = %+v", stats)
	}
	if len(rep.rows) != 3 {
		t.Errorf("report rows = %d, want 3", len(rep.rows))
	}
	if obs.failed[2] != FailureAnalysis || obs.failed[4] != FailureReport {
		t.Errorf("failures = %v", obs.failed)
	}
	if rep.finalized != 1 {
		t.Errorf("finalized = %d, want 1", rep.finalized)
	}
}

func TestRunBackendUnavailable(t *testing.T) {
	a := &fakeAnalyzer{pingErr: errors.New("connection refused")}
	rep := &fakeReport{}
	var created bool
	obs := &recorder{}

	_, err := New(a, factory(rep, &created), obs).RunText(context.Background(), "doc", document(2))
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("error = %v, want ErrBackendUnavailable", err)
	}
	if len(a.calls) != 0 {
		t.Errorf("Analyze called %d times, want 0", len(a.calls))
	}
	if created {
		t.Error("report must not be created when the backend is unavailable")
	}
	if obs.last() != model.StatusError {
		t.Errorf("final status = %q, want error", obs.last())
	}
}

func TestRunNoQuestions(t *testing.T) {
	a := &fakeAnalyzer{}
	var created bool

	stats, err := New(a, factory(&fakeReport{}, &created), nil).RunText(context.Background(), "doc", "Subject: X\n\nno markers here")
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("error = %v, want ErrNoQuestions", err)
	}
	if stats.Total != 0 || created {
		t.Errorf("stats = %+v created = %v", stats, created)
	}
}

func TestRunReportCreationFails(t *testing.T) {
	a := &fakeAnalyzer{}
	newReport := func() (Report, error) { return nil, errors.New("disk full") }

	_, err := New(a, newReport, nil).RunText(context.Background(), "doc", document(1))
	if err == nil || !strings.Contains(err.Error(), "create report") {
		t.Fatalf("error = %v, want create report failure", err)
	}
	if len(a.calls) != 0 {
		t.Errorf("Analyze called %d times, want 0", len(a.calls))
	}
}

func TestRunInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel while question 2 is in flight: it still completes, 3 and 4 are skipped.
	a := &fakeAnalyzer{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	rep := &fakeReport{}
	var created bool
	obs := &recorder{}

	stats, err := New(a, factory(rep, &created), obs).RunText(ctx, "doc", document(4))
	if err != nil {
		t.Fatalf("RunText: %v", err)
	}
	if !stats.Interrupted {
		t.Error("stats.Interrupted = false, want true")
	}
	if stats.Processed != 2 || stats.Succeeded != 2 {
		t.Errorf("stats = %+v, want 2 processed", stats)
	}
	if obs.interrupted != 3 {
		t.Errorf("interrupted at %d, want 3", obs.interrupted)
	}
	if rep.finalized != 1 {
		t.Error("report should be finalized after an interrupt")
	}
	if obs.last() != model.StatusInterrupted {
		t.Errorf("final status = %q, want interrupted", obs.last())
	}
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.txt")
	if err := os.WriteFile(path, []byte(document(2)), 0o644); err != nil {
		t.Fatal(err)
	}
	a := &fakeAnalyzer{}
	rep := &fakeReport{}
	var created bool

	stats, err := New(a, factory(rep, &created), nil).RunFile(context.Background(), path)
	if err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if stats.Succeeded != 2 || stats.Source != path {
		t.Errorf("stats = %+v", stats)
	}

	if _, err := New(a, factory(rep, &created), nil).RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("RunFile on a missing file should fail")
	}
}

func TestFailureString(t *testing.T) {
	if FailureAnalysis.String() != "analysis" || FailureReport.String() != "report" {
		t.Errorf("unexpected Failure strings %q %q", FailureAnalysis, FailureReport)
	}
}
