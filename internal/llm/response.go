package llm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/qanalyzer/internal/model"
)

// Outcome reports how a backend response was turned into a result.
type Outcome int

const (
	Unparseable Outcome = iota
	ParsedViaTable
	ParsedViaFallback
)

func (o Outcome) String() string {
	switch o {
	case ParsedViaTable:
		return "table"
	case ParsedViaFallback:
		return "fallback"
	default:
		return "unparseable"
	}
}

// Parsed pairs a parse outcome with its result. Result is nil when Outcome
// is Unparseable.
type Parsed struct {
	Outcome Outcome
	Result  *model.AnalysisResult
}

const (
	minTableCells = 9
	ratingCell    = 5

	notFound            = "Not found"
	noImprovement       = "N/A"
	fallbackExplanation = "Analysis response parsing incomplete"
	fallbackImprovement = "N/A - Parsing incomplete"
	maxRating           = 10
)

var (
	integerRe   = regexp.MustCompile(`\d+`)
	separatorRe = regexp.MustCompile(`^[\s:\-]*$`)

	subjectRe   = regexp.MustCompile(`(?im)Subject:?\s*([^\n]+)`)
	topicRe     = regexp.MustCompile(`(?im)Topic:?\s*([^\n]+)`)
	subtopicRe  = regexp.MustCompile(`(?im)Subtopic:?\s*([^\n]+)`)
	ratingRe    = regexp.MustCompile(`(?im)Rating.*?(\d+)`)
	depthRe     = regexp.MustCompile(`(?im)Conceptual Depth:?\s*([^\n]+(?:\n[^A-Z\n][^\n]*)*)`)
	accuracyRe  = regexp.MustCompile(`(?im)Answer Accuracy:?\s*([^\n]+(?:\n[^A-Z\n][^\n]*)*)`)
	relevanceRe = regexp.MustCompile(`(?im)Topic.*?Relevance:?\s*([^\n]+(?:\n[^A-Z\n][^\n]*)*)`)
)

// ParseResponse extracts an analysis from raw backend text. It prefers a
// pipe-delimited table row and falls back to labeled fields. question is the
// rendered record, used to fill the question column when the table is missing.
func ParseResponse(raw, question string) Parsed {
	if strings.TrimSpace(raw) == "" {
		return Parsed{Outcome: Unparseable}
	}
	if cells, ok := findTableRow(raw); ok {
		return Parsed{Outcome: ParsedViaTable, Result: fromTableRow(cells)}
	}
	return Parsed{Outcome: ParsedViaFallback, Result: fromLabeledFields(raw, question)}
}

// findTableRow returns the cells of the first data row with enough columns.
// Header rows (containing "Subject") and separator rows are skipped.
func findTableRow(raw string) ([]string, bool) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "|") || strings.HasPrefix(line, "|---") || strings.Contains(line, "Subject") {
			continue
		}
		cells := splitRow(line)
		if len(cells) < minTableCells || isSeparatorRow(cells) {
			continue
		}
		return cells, true
	}
	return nil, false
}

func splitRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if !separatorRe.MatchString(c) {
			return false
		}
	}
	return true
}

func fromTableRow(cells []string) *model.AnalysisResult {
	rating, found := extractRating(cells[ratingCell])
	improved := noImprovement
	if len(cells) > 9 {
		improved = model.Truncate(cells[9], model.LongFieldLimit)
	}
	return &model.AnalysisResult{
		Subject:           model.Truncate(cells[0], model.ShortFieldLimit),
		Topic:             model.Truncate(cells[1], model.ShortFieldLimit),
		Subtopic:          model.Truncate(cells[2], model.ShortFieldLimit),
		QuestionComplete:  model.Truncate(cells[3], model.LongFieldLimit),
		AnswerExplanation: model.Truncate(cells[4], model.LongFieldLimit),
		Rating:            rating,
		RatingFound:       found,
		ConceptualDepth:   model.Truncate(cells[6], model.CommentaryFieldLimit),
		AnswerAccuracy:    model.Truncate(cells[7], model.CommentaryFieldLimit),
		TopicRelevance:    model.Truncate(cells[8], model.CommentaryFieldLimit),
		ImprovedVersion:   improved,
		Method:            model.MethodTable,
	}
}

func fromLabeledFields(raw, question string) *model.AnalysisResult {
	rating, found := 0, false
	if m := ratingRe.FindStringSubmatch(raw); m != nil {
		rating, found = extractRating(m[1])
	}
	return &model.AnalysisResult{
		Subject:           model.Truncate(labeled(subjectRe, raw), model.ShortFieldLimit),
		Topic:             model.Truncate(labeled(topicRe, raw), model.ShortFieldLimit),
		Subtopic:          model.Truncate(labeled(subtopicRe, raw), model.ShortFieldLimit),
		QuestionComplete:  model.Truncate(question, model.LongFieldLimit),
		AnswerExplanation: fallbackExplanation,
		Rating:            rating,
		RatingFound:       found,
		ConceptualDepth:   model.Truncate(labeled(depthRe, raw), model.CommentaryFieldLimit),
		AnswerAccuracy:    model.Truncate(labeled(accuracyRe, raw), model.CommentaryFieldLimit),
		TopicRelevance:    model.Truncate(labeled(relevanceRe, raw), model.CommentaryFieldLimit),
		ImprovedVersion:   fallbackImprovement,
		Method:            model.MethodFallback,
	}
}

func labeled(re *regexp.Regexp, raw string) string {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return notFound
	}
	return strings.TrimSpace(m[1])
}

// extractRating returns the first integer in s, capped at 10. The bool is
// false when s holds no digits, in which case the rating is 0.
func extractRating(s string) (int, bool) {
	d := integerRe.FindString(s)
	if d == "" {
		return 0, false
	}
	n, err := strconv.Atoi(d)
	if err != nil {
		return 0, false
	}
	if n > maxRating {
		n = maxRating
	}
	return n, true
}
