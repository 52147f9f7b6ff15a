package model

import "time"

// RunStatus is the lifecycle state of one pipeline run.
type RunStatus string

const (
	StatusInitializing RunStatus = "initializing"
	StatusParsing      RunStatus = "parsing"
	StatusConnecting   RunStatus = "connecting"
	StatusAnalyzing    RunStatus = "analyzing"
	StatusFinalizing   RunStatus = "finalizing"
	StatusCompleted    RunStatus = "completed"
	StatusInterrupted  RunStatus = "interrupted"
	StatusError        RunStatus = "error"
)

// RunStats summarizes a finished (or interrupted) pipeline run.
type RunStats struct {
	Source      string        `json:"source"`
	ReportPath  string        `json:"report_path"`
	Total       int           `json:"total"`
	Processed   int           `json:"processed"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Interrupted bool          `json:"interrupted"`
	Elapsed     time.Duration `json:"elapsed"`
}

// SuccessRate returns the percentage of processed questions that reached the report.
func (s RunStats) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Processed) * 100
}
