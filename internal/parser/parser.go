// Package parser extracts multiple-choice question records from plain-text
// question documents.
//
// A document starts with optional header lines (Subject:, Topic:, Subtopic:)
// followed by question blocks separated by a line of 60 '=' characters. Each
// block carries a **QUESTION n** marker, the **Q:** prose, four lettered
// options, a **Correct Answer:** line and an **Explanation:** paragraph.
// Blocks that do not fit this shape are dropped rather than reported as errors.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/qanalyzer/internal/model"
)

const (
	headerWindow  = 10
	questionToken = "**QUESTION"
	promptMarker  = "**Q:**"
)

// Separator delimits question blocks inside a document.
var Separator = strings.Repeat("=", 60)

var (
	questionRe    = regexp.MustCompile(`\*\*QUESTION\s+(\d+)\*\*`)
	optionRe      = regexp.MustCompile(`^([A-D])\.\s*(.*)$`)
	optionStartRe = regexp.MustCompile(`^\s*[A-D]\.`)
	answerRe      = regexp.MustCompile(`\*\*Correct Answer:\*\*\s*([A-D])\.\s*([^\n]+)`)
	explanationRe = regexp.MustCompile(`(?s)\*\*Explanation:\*\*(.*?)(?:\n\n|\z)`)
)

// Header holds the classification shared by every question in a document.
type Header struct {
	Subject  string
	Topic    string
	Subtopic string
}

// ParseFile reads path and parses its content.
func ParseFile(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

// Parse extracts every well-formed question from content. Malformed blocks
// are skipped; an empty result is not an error.
func Parse(content string) []model.Question {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	header := ParseHeader(content)

	var questions []model.Question
	for i, block := range splitBlocks(content) {
		q, reason := parseBlock(block, header)
		if reason != "" {
			slog.Debug("skipping question block", "block", i+1, "reason", reason)
			continue
		}
		questions = append(questions, q)
	}
	return questions
}

// ParseHeader scans the first lines of content for the header fields.
func ParseHeader(content string) Header {
	var h Header
	var haveSubject, haveTopic, haveSubtopic bool

	lines := strings.Split(content, "\n")
	if len(lines) > headerWindow {
		lines = lines[:headerWindow]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Subject:"):
			h.Subject = strings.TrimSpace(strings.TrimPrefix(line, "Subject:"))
			haveSubject = true
		case strings.HasPrefix(line, "Topic:"):
			h.Topic = strings.TrimSpace(strings.TrimPrefix(line, "Topic:"))
			haveTopic = true
		case strings.HasPrefix(line, "Subtopic:"):
			h.Subtopic = strings.TrimSpace(strings.TrimPrefix(line, "Subtopic:"))
			haveSubtopic = true
		}
		if haveSubject && haveTopic && haveSubtopic {
			break
		}
	}
	return h
}

func splitBlocks(content string) []string {
	var blocks []string
	for _, b := range strings.Split(content, Separator) {
		b = strings.TrimSpace(b)
		if b != "" && strings.Contains(b, questionToken) {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// parseBlock returns the question for block, or a non-empty reason when the
// block must be dropped.
func parseBlock(block string, h Header) (model.Question, string) {
	m := questionRe.FindStringSubmatch(block)
	if m == nil {
		return model.Question{}, "missing question marker"
	}
	number, err := strconv.Atoi(m[1])
	if err != nil || number <= 0 {
		return model.Question{}, "invalid question number"
	}

	text := questionText(block)
	if text == "" {
		return model.Question{}, "empty question text"
	}

	options := extractOptions(block)
	if len(options) != 4 {
		return model.Question{}, fmt.Sprintf("expected 4 options, found %d", len(options))
	}

	am := answerRe.FindStringSubmatch(block)
	if am == nil {
		return model.Question{}, "missing correct answer"
	}
	em := explanationRe.FindStringSubmatch(block)
	if em == nil || strings.TrimSpace(em[1]) == "" {
		return model.Question{}, "missing explanation"
	}

	return model.Question{
		Subject:       h.Subject,
		Topic:         h.Topic,
		Subtopic:      h.Subtopic,
		Number:        number,
		Text:          text,
		Options:       options,
		CorrectAnswer: am[1] + ". " + strings.TrimSpace(am[2]),
		Explanation:   strings.TrimSpace(em[1]),
	}, ""
}

func questionText(block string) string {
	var parts []string
	inQuestion := false
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, promptMarker):
			if rest := strings.TrimSpace(strings.ReplaceAll(line, promptMarker, "")); rest != "" {
				parts = append(parts, rest)
			}
			inQuestion = true
		case inQuestion && optionStartRe.MatchString(line):
			return strings.TrimSpace(strings.Join(parts, " "))
		case inQuestion && line != "":
			parts = append(parts, line)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func extractOptions(block string) []string {
	var options []string
	for _, line := range strings.Split(block, "\n") {
		m := optionRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		options = append(options, m[1]+". "+m[2])
	}
	return options
}

// Format renders q as the plain-text block sent to the analysis backend.
func Format(q model.Question) string {
	var sb strings.Builder
	sb.WriteString("Subject: " + q.Subject + "\n")
	sb.WriteString("Topic: " + q.Topic + "\n")
	sb.WriteString("Subtopic: " + q.Subtopic + "\n\n")
	sb.WriteString(fmt.Sprintf("Question %d: %s\n\n", q.Number, q.Text))
	sb.WriteString("Options:\n")
	sb.WriteString(strings.Join(q.Options, "\n"))
	sb.WriteString("\n\nCorrect Answer: " + q.CorrectAnswer + "\n\n")
	sb.WriteString("Explanation: " + q.Explanation)
	return sb.String()
}
