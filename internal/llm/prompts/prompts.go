package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

const (
	systemFile   = "templates/system.txt"
	analysisFile = "templates/analysis.txt"

	maxQuestionRunes = 10000
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	loadOnce   sync.Once
	loadErr    error
	defaultSet *Set
)

// Set holds the instruction preamble and the analysis prompt template.
type Set struct {
	system   string
	analysis *template.Template
}

// AnalysisData holds template data for the analysis prompt.
type AnalysisData struct {
	System   string
	Question string
}

// Default returns the embedded prompt set. The templates are parsed once.
func Default() (*Set, error) {
	loadOnce.Do(func() {
		defaultSet, loadErr = Load(templateFS, systemFile)
	})
	return defaultSet, loadErr
}

// Load reads the system preamble from systemPath in fsys and pairs it with the
// embedded analysis template.
func Load(fsys fs.FS, systemPath string) (*Set, error) {
	system, err := fs.ReadFile(fsys, systemPath)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", systemPath, err)
	}
	if strings.TrimSpace(string(system)) == "" {
		return nil, errors.New("prompt file " + systemPath + " is empty")
	}

	content, err := fs.ReadFile(templateFS, analysisFile)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", analysisFile, err)
	}
	tmpl, err := template.New("analysis").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", analysisFile, err)
	}

	return &Set{system: strings.TrimSpace(string(system)), analysis: tmpl}, nil
}

// LoadFile builds a prompt set whose system preamble comes from a file on disk.
// An empty path selects the embedded default.
func LoadFile(path string) (*Set, error) {
	if path == "" {
		return Default()
	}
	return Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// System returns the instruction preamble.
func (s *Set) System() string {
	return s.system
}

// BuildAnalysisPrompt renders the full prompt for one formatted question.
func (s *Set) BuildAnalysisPrompt(question string) (string, error) {
	data := AnalysisData{
		System:   s.system,
		Question: sanitizeQuestion(question),
	}

	var buf bytes.Buffer
	if err := s.analysis.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeQuestion(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return "[No question provided]"
	}

	if utf8.RuneCountInString(q) > maxQuestionRunes {
		runes := []rune(q)
		runes = runes[:maxQuestionRunes]
		q = string(runes) + "\n\n[Question truncated due to length]"
	}

	return q
}
