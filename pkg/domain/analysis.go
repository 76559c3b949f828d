package domain

import "strings"

// Level is the coarse rank reported by scoring, best first.
type Level string

const (
	LevelS Level = "S"
	LevelA Level = "A"
	LevelB Level = "B"
	LevelC Level = "C"
)

// Rank orders levels with S highest; unknown levels rank below C.
func (l Level) Rank() int {
	switch l {
	case LevelS:
		return 4
	case LevelA:
		return 3
	case LevelB:
		return 2
	case LevelC:
		return 1
	}
	return 0
}

// ParseLevel normalizes a model-reported level, falling back to C.
func ParseLevel(s string) Level {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if l.Rank() == 0 {
		return LevelC
	}
	return l
}

// AnalysisRequest is the body of a solo submission.
type AnalysisRequest struct {
	UserText string           `json:"userText" binding:"required"`
	Criteria map[string]any   `json:"criteria" binding:"required"`
	History  []map[string]any `json:"history" binding:"required"`
}

type ScoreResult struct {
	Score int   `json:"score"`
	Level Level `json:"level"`
}

type Feedback struct {
	Summarize     string   `json:"summarize"`
	Keyword       []string `json:"keyword"`
	Facts         string   `json:"facts"`
	Understanding string   `json:"understanding"`
	Personalized  string   `json:"personalized"`
}

// AnalysisResult is the aggregate stored on COMPLETED records.
type AnalysisResult struct {
	Score    int      `json:"score"`
	Level    Level    `json:"level"`
	Feedback Feedback `json:"feedback"`
}

func NewAnalysisResult(score ScoreResult, feedback Feedback) AnalysisResult {
	return AnalysisResult{Score: score.Score, Level: score.Level, Feedback: feedback}
}

func (r AnalysisResult) clone() AnalysisResult {
	out := r
	if r.Feedback.Keyword != nil {
		out.Feedback.Keyword = append([]string(nil), r.Feedback.Keyword...)
	}
	return out
}
