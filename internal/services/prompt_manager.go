package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"text/template"
	"time"
)

// PromptManager assembles model prompts: the base coaching prompt plus one
// persona strategy for feedback, and the evaluator prompt for scoring.
type PromptManager struct {
	feedbackTmpl *template.Template
	scoringTmpl  *template.Template
	personas     []string

	mu  sync.Mutex
	rng *rand.Rand
}

type promptData struct {
	Criteria string
	UserText string
	History  string
	Persona  string
}

func NewPromptManager(seed int64) *PromptManager {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	personas := make([]string, 0, len(personaPrompts))
	for name := range personaPrompts {
		personas = append(personas, name)
	}
	sort.Strings(personas)
	return &PromptManager{
		feedbackTmpl: template.Must(template.New("feedback").Parse(baseSystemPrompt)),
		scoringTmpl:  template.Must(template.New("scoring").Parse(scoringPrompt)),
		personas:     personas,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

func (m *PromptManager) Personas() []string {
	return append([]string(nil), m.personas...)
}

// FeedbackPrompt renders the feedback prompt. An empty or unknown persona
// picks one at random; the chosen persona is returned.
func (m *PromptManager) FeedbackPrompt(criteria map[string]any, userText string, history []map[string]any, persona string) (string, string, error) {
	if _, ok := personaPrompts[persona]; !ok {
		m.mu.Lock()
		persona = m.personas[m.rng.Intn(len(m.personas))]
		m.mu.Unlock()
	}
	crit, err := prettyJSON(criteria)
	if err != nil {
		return "", "", fmt.Errorf("encode criteria: %w", err)
	}
	hist := "None"
	if len(history) > 0 {
		if hist, err = prettyJSON(history); err != nil {
			return "", "", fmt.Errorf("encode history: %w", err)
		}
	}
	var buf bytes.Buffer
	err = m.feedbackTmpl.Execute(&buf, promptData{
		Criteria: crit,
		UserText: userText,
		History:  hist,
		Persona:  personaPrompts[persona],
	})
	if err != nil {
		return "", "", err
	}
	return buf.String(), persona, nil
}

func (m *PromptManager) ScoringPrompt(criteria map[string]any, userText string) (string, error) {
	crit, err := prettyJSON(criteria)
	if err != nil {
		return "", fmt.Errorf("encode criteria: %w", err)
	}
	var buf bytes.Buffer
	if err := m.scoringTmpl.Execute(&buf, promptData{Criteria: crit, UserText: userText}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// prettyJSON indents without HTML escaping so Korean and symbols survive verbatim.
func prettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
