package services

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestFeedbackServiceParsesKeywordShapes(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		want    []string
	}{
		{"flat", `["goroutine", "channel"]`, []string{"goroutine", "channel"}},
		{"nested", `[["goroutine"], ["select", "mutex"]]`, []string{"goroutine", "select", "mutex"}},
		{"mixed", `["goroutine", ["select"]]`, []string{"goroutine", "select"}},
		{"single string", `"goroutine"`, []string{"goroutine"}},
		{"null", `null`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := `{"summarize":"s","keyword":` + tt.keyword + `,"facts":"f","understanding":"u","personalized":"p"}`
			svc := NewFeedbackService(&fakeGenerator{out: "```json\n" + out + "\n```"}, NewPromptManager(1), "", nil)

			fb, err := svc.Generate(context.Background(), "text", map[string]any{}, nil)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if !reflect.DeepEqual(fb.Keyword, tt.want) {
				t.Errorf("Keyword = %#v, want %#v", fb.Keyword, tt.want)
			}
			if fb.Summarize != "s" || fb.Personalized != "p" {
				t.Errorf("unexpected feedback %+v", fb)
			}
		})
	}
}

func TestFeedbackServiceMissingKeywordIsEmptyList(t *testing.T) {
	svc := NewFeedbackService(&fakeGenerator{out: `{"summarize":"s"}`}, NewPromptManager(1), "", nil)
	fb, err := svc.Generate(context.Background(), "text", map[string]any{}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if fb.Keyword == nil || len(fb.Keyword) != 0 {
		t.Errorf("Expected empty non-nil keyword list, got %#v", fb.Keyword)
	}
}

func TestFeedbackServicePinnedPersona(t *testing.T) {
	gen := &fakeGenerator{out: `{"summarize":"s","keyword":[]}`}
	svc := NewFeedbackService(gen, NewPromptManager(1), "hunter", nil)

	history := []map[string]any{{"score": 40, "missed": []string{"mutex"}}}
	if _, err := svc.Generate(context.Background(), "text", map[string]any{"topic": "sync"}, history); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	p := gen.lastPrompt()
	if !strings.Contains(p, "Missing Link Hunter") {
		t.Error("Expected pinned persona in prompt")
	}
	if !strings.Contains(p, `"missed": [`) {
		t.Errorf("Expected history as JSON in prompt:\n%s", p)
	}
}
