package model

import "unicode/utf8"

// Field length limits applied to analysis results before they reach the report.
const (
	ShortFieldLimit      = 100
	CommentaryFieldLimit = 500
	LongFieldLimit       = 2000
)

// Question is one multiple-choice question parsed from an input document.
type Question struct {
	Subject       string   `json:"subject"`
	Topic         string   `json:"topic"`
	Subtopic      string   `json:"subtopic"`
	Number        int      `json:"number"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// ParseMethod records which response parser produced an AnalysisResult.
type ParseMethod string

const (
	MethodTable    ParseMethod = "table"
	MethodFallback ParseMethod = "fallback"
)

// AnalysisResult is the structured quality assessment of a single question.
type AnalysisResult struct {
	Subject           string      `json:"subject"`
	Topic             string      `json:"topic"`
	Subtopic          string      `json:"subtopic"`
	QuestionComplete  string      `json:"question_complete"`
	AnswerExplanation string      `json:"answer_explanation"`
	Rating            int         `json:"rating"`
	RatingFound       bool        `json:"rating_found"`
	ConceptualDepth   string      `json:"conceptual_depth"`
	AnswerAccuracy    string      `json:"answer_accuracy"`
	TopicRelevance    string      `json:"topic_relevance"`
	ImprovedVersion   string      `json:"improved_version"`
	Method            ParseMethod `json:"method"`
}

// Tier is a rating band used for cell styling and summary counts.
type Tier int

const (
	TierLow     Tier = iota // below 5
	TierAverage             // 5-6
	TierGood                // 7-8
	TierHigh                // 9-10
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierGood:
		return "good"
	case TierAverage:
		return "average"
	default:
		return "low"
	}
}

// TierFor maps a rating to its band.
func TierFor(rating int) Tier {
	switch {
	case rating >= 9:
		return TierHigh
	case rating >= 7:
		return TierGood
	case rating >= 5:
		return TierAverage
	default:
		return TierLow
	}
}

// Truncate shortens s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
