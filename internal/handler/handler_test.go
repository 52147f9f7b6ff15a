package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/qanalyzer/internal/i18n"
	"github.com/pavelanni/qanalyzer/internal/model"
	"github.com/pavelanni/qanalyzer/internal/report"
	"github.com/pavelanni/qanalyzer/internal/session"
)

const questionText = `============================================================
**QUESTION 1**

**Q:** Which ruler convened the Third Buddhist Council?

A. Chandragupta Maurya
B. Bindusara
C. Ashoka
D. Brihadratha

**Correct Answer:** C. Ashoka

**Explanation:** It was held under Ashoka around 250 BCE.

============================================================
`

type fakeBackend struct {
	pingErr error
}

func (f *fakeBackend) Ping(context.Context) error { return f.pingErr }
func (f *fakeBackend) Model() string              { return "test-model" }
func (f *fakeBackend) Reachable(context.Context) bool {
	return f.pingErr == nil
}
func (f *fakeBackend) Analyze(_ context.Context, q model.Question) (*model.AnalysisResult, error) {
	return &model.AnalysisResult{
		Subject:          q.Subject,
		Topic:            q.Topic,
		Subtopic:         q.Subtopic,
		QuestionComplete: q.Text,
		Rating:           8,
		RatingFound:      true,
	}, nil
}

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, backend Backend) (*Handler, *httptest.Server) {
	t.Helper()
	h := New(context.Background(), session.NewStore(time.Hour, 4), backend, report.Config{
		Folder:    t.TempDir(),
		SheetName: "Question Analysis",
	})
	h.now = func() time.Time { return time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC) }
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return h, srv
}

func postAnalyze(t *testing.T, srv *httptest.Server, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(srv.URL+"/analyze", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST /analyze: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAnalyzeValidation(t *testing.T) {
	_, srv := newTestServer(t, &fakeBackend{})

	tests := []struct {
		name string
		body analyzeRequest
		want string
	}{
		{"missing subject", analyzeRequest{Topic: "t", Subtopic: "s", QuestionText: questionText}, "All fields are required"},
		{"blank text", analyzeRequest{Subject: "h", Topic: "t", Subtopic: "s", QuestionText: "   "}, "All fields are required"},
		{"no markers", analyzeRequest{Subject: "h", Topic: "t", Subtopic: "s", QuestionText: "just prose"}, "**QUESTION N**"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postAnalyze(t, srv, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			got := decode[map[string]string](t, resp)
			if !strings.Contains(got["error"], tt.want) {
				t.Errorf("error = %q, want it to contain %q", got["error"], tt.want)
			}
		})
	}
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	_, srv := newTestServer(t, &fakeBackend{})
	resp, err := http.Post(srv.URL+"/analyze", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyzeLocalizedError(t *testing.T) {
	_, srv := newTestServer(t, &fakeBackend{})
	data, _ := json.Marshal(analyzeRequest{Subject: "h"})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/analyze?lang=ru", bytes.NewReader(data))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got := decode[map[string]string](t, resp)
	if got["error"] == "All fields are required" || got["error"] == "" {
		t.Errorf("error = %q, want a Russian message", got["error"])
	}
}

func TestAnalyzeFlow(t *testing.T) {
	h, srv := newTestServer(t, &fakeBackend{})

	resp := postAnalyze(t, srv, analyzeRequest{
		Subject:      "History",
		Topic:        "Ancient India",
		Subtopic:     "Mauryan Empire",
		QuestionText: questionText,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	id := decode[map[string]string](t, resp)["session_id"]
	if len(id) != 8 {
		t.Fatalf("session_id = %q, want 8 characters", id)
	}

	h.Wait()

	p := decode[session.Progress](t, get(t, srv.URL+"/progress/"+id))
	if p.Status != model.StatusCompleted || !p.Completed || !p.HasReport {
		t.Fatalf("progress = %+v", p)
	}
	if p.CurrentQuestion != 1 || p.TotalQuestions != 1 || p.ProgressPercent != 100 {
		t.Errorf("progress counters = %+v", p)
	}
	if len(p.Messages) == 0 || len(p.Messages) > 10 {
		t.Errorf("got %d messages", len(p.Messages))
	}

	dl := get(t, srv.URL+"/download/"+id)
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", dl.StatusCode)
	}
	if ct := dl.Header.Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	want := `attachment; filename="analysis_` + id + `_20250301_123000.xlsx"`
	if cd := dl.Header.Get("Content-Disposition"); cd != want {
		t.Errorf("Content-Disposition = %q, want %q", cd, want)
	}
}

func TestAnalyzeBackendDown(t *testing.T) {
	h, srv := newTestServer(t, &fakeBackend{pingErr: errors.New("refused")})

	resp := postAnalyze(t, srv, analyzeRequest{Subject: "h", Topic: "t", Subtopic: "s", QuestionText: questionText})
	id := decode[map[string]string](t, resp)["session_id"]
	h.Wait()

	p := decode[session.Progress](t, get(t, srv.URL+"/progress/"+id))
	if p.Status != model.StatusError || !p.Completed || p.HasReport {
		t.Errorf("progress = %+v", p)
	}
	if !strings.Contains(p.Error, "Cannot connect") {
		t.Errorf("Error = %q", p.Error)
	}
	if dl := get(t, srv.URL+"/download/"+id); dl.StatusCode != http.StatusNotFound {
		t.Errorf("download status = %d, want 404", dl.StatusCode)
	}
}

func TestUnknownSession(t *testing.T) {
	_, srv := newTestServer(t, &fakeBackend{})
	for _, path := range []string{"/progress/nope", "/download/nope"} {
		if resp := get(t, srv.URL+path); resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
		code    int
		status  string
	}{
		{"reachable", nil, http.StatusOK, "healthy"},
		{"unreachable", errors.New("down"), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newTestServer(t, &fakeBackend{pingErr: tt.pingErr})
			resp := get(t, srv.URL+"/health")
			if resp.StatusCode != tt.code {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.code)
			}
			got := decode[map[string]any](t, resp)
			if got["status"] != tt.status || got["model"] != "test-model" {
				t.Errorf("body = %v", got)
			}
		})
	}
}
