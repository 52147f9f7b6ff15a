package display

import (
	"context"
	"errors"

	"github.com/pavelanni/qanalyzer/internal/i18n"
	"github.com/pavelanni/qanalyzer/internal/model"
	"github.com/pavelanni/qanalyzer/internal/pipeline"
)

// StatusMessage returns the localized line announcing status, or "" for
// statuses that carry no message of their own.
func StatusMessage(ctx context.Context, status model.RunStatus) string {
	switch status {
	case model.StatusParsing:
		return i18n.T(ctx, "ParsingQuestions")
	case model.StatusConnecting:
		return i18n.T(ctx, "ConnectingBackend")
	case model.StatusAnalyzing:
		return i18n.T(ctx, "StartingAnalysis")
	case model.StatusFinalizing:
		return i18n.T(ctx, "FinalizingReport")
	case model.StatusCompleted:
		return i18n.T(ctx, "AnalysisCompleted")
	default:
		return ""
	}
}

// QuestionMessage announces the question being processed.
func QuestionMessage(ctx context.Context, index, total int) string {
	return i18n.Td(ctx, "ProcessingQuestion", map[string]any{"Current": index, "Total": total})
}

// SucceededMessage reports a question that reached the report.
func SucceededMessage(ctx context.Context, number int) string {
	return i18n.Td(ctx, "QuestionSucceeded", map[string]any{"Number": number})
}

// FailedMessage reports a question that did not reach the report.
func FailedMessage(ctx context.Context, number int, reason pipeline.Failure) string {
	id := "ReasonAnalysis"
	if reason == pipeline.FailureReport {
		id = "ReasonReport"
	}
	return i18n.Td(ctx, "QuestionFailed", map[string]any{"Number": number, "Reason": i18n.T(ctx, id)})
}

// InterruptedMessage reports where a run stopped.
func InterruptedMessage(ctx context.Context, index, total int) string {
	return i18n.Td(ctx, "RunInterrupted", map[string]any{"Current": index, "Total": total})
}

// ErrorMessage describes a run-stopping error.
func ErrorMessage(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, pipeline.ErrNoQuestions):
		return i18n.T(ctx, "NoQuestionsFound")
	case errors.Is(err, pipeline.ErrBackendUnavailable):
		return i18n.T(ctx, "BackendUnavailable")
	default:
		return i18n.Td(ctx, "FatalError", map[string]any{"Error": err.Error()})
	}
}
