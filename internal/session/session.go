// Package session tracks analysis runs started from the web front-end.
package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/qanalyzer/internal/display"
	"github.com/pavelanni/qanalyzer/internal/i18n"
	"github.com/pavelanni/qanalyzer/internal/model"
	"github.com/pavelanni/qanalyzer/internal/pipeline"
	"github.com/pavelanni/qanalyzer/internal/report"
)

const (
	idLength     = 8
	maxMessages  = 100
	shownMessage = 10
)

// ErrFull is returned when every slot holds a run that is still in progress.
var ErrFull = errors.New("too many analysis sessions in progress")

// Progress is the externally visible state of a run.
type Progress struct {
	Status          model.RunStatus `json:"status"`
	CurrentQuestion int             `json:"current_question"`
	TotalQuestions  int             `json:"total_questions"`
	ProgressPercent float64         `json:"progress_percent"`
	Messages        []string        `json:"messages"`
	Completed       bool            `json:"completed"`
	Error           string          `json:"error,omitempty"`
	HasReport       bool            `json:"has_report"`
}

// Run is one analysis session. It implements pipeline.Observer and is safe
// for concurrent use.
type Run struct {
	ID      string
	Created time.Time

	ctx context.Context

	mu         sync.Mutex
	status     model.RunStatus
	current    int
	total      int
	messages   []string
	completed  bool
	errMsg     string
	reportPath string
	stats      model.RunStats
}

var _ pipeline.Observer = (*Run)(nil)

func newRun(ctx context.Context, now time.Time) *Run {
	return &Run{
		ID:      uuid.NewString()[:idLength],
		Created: now,
		ctx:     ctx,
		status:  model.StatusInitializing,
	}
}

// Snapshot returns the current progress with the most recent messages.
func (r *Run) Snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := Progress{
		Status:          r.status,
		CurrentQuestion: r.current,
		TotalQuestions:  r.total,
		Completed:       r.completed,
		Error:           r.errMsg,
		HasReport:       r.hasReport(),
	}
	if r.total > 0 {
		p.ProgressPercent = float64(r.current) / float64(r.total) * 100
	}
	start := max(len(r.messages)-shownMessage, 0)
	p.Messages = append([]string{}, r.messages[start:]...)
	return p
}

// ReportPath returns the report file once the run has completed with one.
func (r *Run) ReportPath() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reportPath, r.hasReport()
}

// Stats returns the final statistics of a completed run.
func (r *Run) Stats() model.RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Done reports whether the run has finished, successfully or not.
func (r *Run) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Fail marks the run as stopped by err.
func (r *Run) Fail(err error) {
	msg := display.ErrorMessage(r.ctx, err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = model.StatusError
	r.errMsg = msg
	r.completed = true
	r.addLocked(msg)
}

func (r *Run) hasReport() bool {
	return r.completed && r.reportPath != "" && r.stats.Succeeded > 0
}

func (r *Run) add(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(msg)
}

func (r *Run) addLocked(msg string) {
	if msg == "" {
		return
	}
	r.messages = append(r.messages, msg)
	if len(r.messages) > maxMessages {
		r.messages = r.messages[len(r.messages)-maxMessages:]
	}
}

func (r *Run) Status(status model.RunStatus) {
	msg := display.StatusMessage(r.ctx, status)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.addLocked(msg)
}

func (r *Run) Parsed(total int) {
	msg := i18n.Tp(r.ctx, "QuestionsFound", total)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
	r.addLocked(msg)
}

func (r *Run) Started(reportPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reportPath = reportPath
}

func (r *Run) Question(index, total int, _ model.Question) {
	msg := display.QuestionMessage(r.ctx, index, total)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = index
	r.addLocked(msg)
}

func (r *Run) Succeeded(_ int, q model.Question, _ model.AnalysisResult) {
	r.add(display.SucceededMessage(r.ctx, q.Number))
}

func (r *Run) Failed(_ int, q model.Question, reason pipeline.Failure, _ error) {
	r.add(display.FailedMessage(r.ctx, q.Number, reason))
}

func (r *Run) Interrupted(index, total int) {
	r.add(display.InterruptedMessage(r.ctx, index, total))
}

func (r *Run) Finished(stats model.RunStats) {
	ready := i18n.T(r.ctx, "ReportReady")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = stats
	r.completed = true
	if r.hasReport() {
		r.addLocked(ready)
	}
}

// Store holds runs in memory, bounded by capacity and age.
type Store struct {
	mu      sync.Mutex
	runs    map[string]*Run
	ttl     time.Duration
	maxRuns int
	now     func() time.Time
}

// NewStore creates a Store keeping at most maxRuns runs, each for at most ttl
// after it was created.
func NewStore(ttl time.Duration, maxRuns int) *Store {
	return &Store{
		runs:    make(map[string]*Run),
		ttl:     ttl,
		maxRuns: maxRuns,
		now:     time.Now,
	}
}

// Create registers a new run. ctx supplies the localizer for its messages.
// Expired runs are evicted first; when the store is still full, the oldest
// finished run makes room. ErrFull is returned when no run can be evicted.
func (s *Store) Create(ctx context.Context) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, r := range s.runs {
		if now.Sub(r.Created) > s.ttl && r.Done() {
			s.evictLocked(id)
		}
	}
	if len(s.runs) >= s.maxRuns {
		var oldest *Run
		for _, r := range s.runs {
			if r.Done() && (oldest == nil || r.Created.Before(oldest.Created)) {
				oldest = r
			}
		}
		if oldest == nil {
			return nil, ErrFull
		}
		s.evictLocked(oldest.ID)
	}

	r := newRun(ctx, now)
	for s.runs[r.ID] != nil {
		r.ID = uuid.NewString()[:idLength]
	}
	s.runs[r.ID] = r
	return r, nil
}

// Get returns the run with id.
func (s *Store) Get(id string) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	return r, ok
}

// Len returns the number of runs held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// evictLocked drops a run and removes its report and lock files.
func (s *Store) evictLocked(id string) {
	r := s.runs[id]
	delete(s.runs, id)
	path, _ := r.ReportPath()
	if path == "" {
		return
	}
	for _, p := range []string{path, report.LockFile(path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove evicted report file", "session", id, "path", p, "error", err)
		}
	}
}
