package llm

import (
	"strings"
	"testing"

	"github.com/pavelanni/qanalyzer/internal/model"
	"github.com/pavelanni/qanalyzer/internal/parser"
)

const tableResponse = `Here is my analysis:

| Subject | Topic | Subtopic | Question (Complete) | Answer with Explanation (Complete) | Rating (out of 10) | Conceptual Depth | Answer Accuracy | Topic-Subtopic Relevance | Improved Version |
|---|---|---|---|---|---|---|---|---|---|
| History | Anc | Rome | Q? | A! | 9/10 | deep | correct | high | better |

Let me know if you need more.`

func TestParseResponseTable(t *testing.T) {
	p := ParseResponse(tableResponse, "rendered")
	if p.Outcome != ParsedViaTable {
		t.Fatalf("Outcome = %v, want %v", p.Outcome, ParsedViaTable)
	}
	r := p.Result
	if r.Rating != 9 || !r.RatingFound {
		t.Errorf("Rating = %d (found=%v), want 9 (found=true)", r.Rating, r.RatingFound)
	}
	if r.Subject != "History" || r.Topic != "Anc" || r.Subtopic != "Rome" {
		t.Errorf("classification = %q/%q/%q", r.Subject, r.Topic, r.Subtopic)
	}
	if r.QuestionComplete != "Q?" || r.AnswerExplanation != "A!" {
		t.Errorf("question/answer = %q/%q", r.QuestionComplete, r.AnswerExplanation)
	}
	if r.ConceptualDepth != "deep" || r.AnswerAccuracy != "correct" || r.TopicRelevance != "high" {
		t.Errorf("commentary = %q/%q/%q", r.ConceptualDepth, r.AnswerAccuracy, r.TopicRelevance)
	}
	if r.ImprovedVersion != "better" {
		t.Errorf("ImprovedVersion = %q, want better", r.ImprovedVersion)
	}
	if r.Method != model.MethodTable {
		t.Errorf("Method = %q, want %q", r.Method, model.MethodTable)
	}
}

func TestParseResponseSingleRow(t *testing.T) {
	raw := "| History | Anc | Rome | Q? | A! | 9/10 | deep | correct | high | better |"
	p := ParseResponse(raw, "")
	if p.Outcome != ParsedViaTable {
		t.Fatalf("Outcome = %v, want table", p.Outcome)
	}
	if p.Result.Rating != 9 {
		t.Errorf("Rating = %d, want 9", p.Result.Rating)
	}
	if p.Result.Subject != "History" {
		t.Errorf("Subject = %q, want History", p.Result.Subject)
	}
}

func TestTableRating(t *testing.T) {
	tests := []struct {
		cell      string
		want      int
		wantFound bool
	}{
		{"8/10", 8, true},
		{"Rating: 7", 7, true},
		{"10", 10, true},
		{"42", 10, true},
		{"excellent", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			raw := "| a | b | c | d | e | " + tt.cell + " | g | h | i | j |"
			p := ParseResponse(raw, "")
			if p.Outcome != ParsedViaTable {
				t.Fatalf("Outcome = %v, want table", p.Outcome)
			}
			if p.Result.Rating != tt.want || p.Result.RatingFound != tt.wantFound {
				t.Errorf("rating = %d (found=%v), want %d (found=%v)",
					p.Result.Rating, p.Result.RatingFound, tt.want, tt.wantFound)
			}
		})
	}
}

func TestTableMissingTenthCell(t *testing.T) {
	p := ParseResponse("| a | b | c | d | e | 6 | g | h | i |", "")
	if p.Outcome != ParsedViaTable {
		t.Fatalf("Outcome = %v, want table", p.Outcome)
	}
	if p.Result.ImprovedVersion != "N/A" {
		t.Errorf("ImprovedVersion = %q, want N/A", p.Result.ImprovedVersion)
	}
}

func TestTableSkipsHeaderAndSeparatorRows(t *testing.T) {
	raw := strings.Join([]string{
		"| Subject | Topic | Subtopic | Q | A | Rating | D | Acc | Rel | Imp |",
		"|:--|:--|:--|:--|:--|:--|:--|:--|:--|:--|",
		"| - | - | - | - | - | - | - | - | - | - |",
		"| Geo | Maps | Scale | q | a | 5/10 | d | acc | rel | imp |",
	}, "\n")
	p := ParseResponse(raw, "")
	if p.Outcome != ParsedViaTable {
		t.Fatalf("Outcome = %v, want table", p.Outcome)
	}
	if p.Result.Subject != "Geo" || p.Result.Rating != 5 {
		t.Errorf("got subject %q rating %d, want Geo 5", p.Result.Subject, p.Result.Rating)
	}
}

func TestTableTooFewCellsFallsBack(t *testing.T) {
	p := ParseResponse("| a | b | c |\nSubject: Physics", "question text")
	if p.Outcome != ParsedViaFallback {
		t.Fatalf("Outcome = %v, want fallback", p.Outcome)
	}
}

func TestTableTruncatesCells(t *testing.T) {
	long := strings.Repeat("x", 3000)
	raw := "| " + long + " | b | c | " + long + " | e | 7 | " + long + " | h | i | " + long + " |"
	r := ParseResponse(raw, "").Result
	if got := len(r.Subject); got != model.ShortFieldLimit {
		t.Errorf("len(Subject) = %d, want %d", got, model.ShortFieldLimit)
	}
	if got := len(r.QuestionComplete); got != model.LongFieldLimit {
		t.Errorf("len(QuestionComplete) = %d, want %d", got, model.LongFieldLimit)
	}
	if got := len(r.ConceptualDepth); got != model.CommentaryFieldLimit {
		t.Errorf("len(ConceptualDepth) = %d, want %d", got, model.CommentaryFieldLimit)
	}
	if got := len(r.ImprovedVersion); got != model.LongFieldLimit {
		t.Errorf("len(ImprovedVersion) = %d, want %d", got, model.LongFieldLimit)
	}
}

func TestParseResponseFallback(t *testing.T) {
	raw := `Subject: Polity
Topic: Constitution
Subtopic: Fundamental Rights
Rating: 6 out of 10
Conceptual Depth: Tests recall only
- no application involved
Answer Accuracy: Correct`

	p := ParseResponse(raw, "the rendered question")
	if p.Outcome != ParsedViaFallback {
		t.Fatalf("Outcome = %v, want fallback", p.Outcome)
	}
	r := p.Result
	if r.Subject != "Polity" || r.Subtopic != "Fundamental Rights" {
		t.Errorf("classification = %q/%q", r.Subject, r.Subtopic)
	}
	if r.Rating != 6 || !r.RatingFound {
		t.Errorf("Rating = %d (found=%v), want 6", r.Rating, r.RatingFound)
	}
	if r.ConceptualDepth != "Tests recall only\n- no application involved" {
		t.Errorf("ConceptualDepth = %q", r.ConceptualDepth)
	}
	if r.AnswerAccuracy != "Correct" {
		t.Errorf("AnswerAccuracy = %q, want Correct", r.AnswerAccuracy)
	}
	if r.TopicRelevance != "Not found" {
		t.Errorf("TopicRelevance = %q, want Not found", r.TopicRelevance)
	}
	if r.QuestionComplete != "the rendered question" {
		t.Errorf("QuestionComplete = %q, want the rendered question", r.QuestionComplete)
	}
	if r.AnswerExplanation != "Analysis response parsing incomplete" {
		t.Errorf("AnswerExplanation = %q", r.AnswerExplanation)
	}
	if r.ImprovedVersion != "N/A - Parsing incomplete" {
		t.Errorf("ImprovedVersion = %q", r.ImprovedVersion)
	}
	if r.Method != model.MethodFallback {
		t.Errorf("Method = %q, want fallback", r.Method)
	}
}

func TestFallbackMissingFields(t *testing.T) {
	p := ParseResponse("I cannot evaluate this question.", "q")
	if p.Outcome != ParsedViaFallback {
		t.Fatalf("Outcome = %v, want fallback", p.Outcome)
	}
	r := p.Result
	for name, got := range map[string]string{
		"Subject":         r.Subject,
		"Topic":           r.Topic,
		"Subtopic":        r.Subtopic,
		"ConceptualDepth": r.ConceptualDepth,
		"AnswerAccuracy":  r.AnswerAccuracy,
		"TopicRelevance":  r.TopicRelevance,
	} {
		if got != "Not found" {
			t.Errorf("%s = %q, want Not found", name, got)
		}
	}
	if r.Rating != 0 || r.RatingFound {
		t.Errorf("Rating = %d (found=%v), want 0 (found=false)", r.Rating, r.RatingFound)
	}
}

func TestParseResponseEmpty(t *testing.T) {
	for _, raw := range []string{"", "   \n\t"} {
		p := ParseResponse(raw, "q")
		if p.Outcome != Unparseable || p.Result != nil {
			t.Errorf("ParseResponse(%q) = %v, want unparseable with nil result", raw, p.Outcome)
		}
	}
}

func TestFormatTableRoundTrip(t *testing.T) {
	q := model.Question{
		Subject:       "Economy",
		Topic:         "Banking",
		Subtopic:      "Monetary Policy",
		Number:        2,
		Text:          "Which body sets the repo rate?",
		Options:       []string{"A. SEBI", "B. RBI", "C. NITI Aayog", "D. Finance Ministry"},
		CorrectAnswer: "B. RBI",
		Explanation:   "The Monetary Policy Committee of the RBI sets it.",
	}
	rendered := parser.Format(q)

	header := parser.ParseHeader(rendered)
	row := "| " + strings.Join([]string{
		header.Subject, header.Topic, header.Subtopic,
		q.Text, q.CorrectAnswer, "8/10", "d", "a", "r", "i",
	}, " | ") + " |"

	r := ParseResponse(row, rendered).Result
	if r.Subject != q.Subject || r.Topic != q.Topic || r.Subtopic != q.Subtopic {
		t.Errorf("round trip = %q/%q/%q, want %q/%q/%q",
			r.Subject, r.Topic, r.Subtopic, q.Subject, q.Topic, q.Subtopic)
	}
	if r.Rating != 8 {
		t.Errorf("Rating = %d, want 8", r.Rating)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{ParsedViaTable, "table"},
		{ParsedViaFallback, "fallback"},
		{Unparseable, "unparseable"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.o, got, tt.want)
		}
	}
}
