package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeModelJSON strips markdown code fences the model sometimes adds
// despite instructions, then decodes the first JSON value.
func decodeModelJSON(raw string, dst any) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return fmt.Errorf("%w: empty model response", ErrInvalidInput)
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return fmt.Errorf("parse model response: %w", err)
	}
	return nil
}

// keywordList accepts the shapes models return for "keyword": a flat list,
// a list of lists, or a single string.
type keywordList []string

func (k *keywordList) UnmarshalJSON(b []byte) error {
	var flat []string
	if err := json.Unmarshal(b, &flat); err == nil {
		*k = flat
		return nil
	}
	var nested [][]string
	if err := json.Unmarshal(b, &nested); err == nil {
		out := []string{}
		for _, group := range nested {
			out = append(out, group...)
		}
		*k = out
		return nil
	}
	var mixed []any
	if err := json.Unmarshal(b, &mixed); err == nil {
		out := []string{}
		for _, v := range mixed {
			switch t := v.(type) {
			case string:
				out = append(out, t)
			case []any:
				for _, inner := range t {
					out = append(out, fmt.Sprint(inner))
				}
			default:
				out = append(out, fmt.Sprint(t))
			}
		}
		*k = out
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err != nil {
		return fmt.Errorf("keyword: unsupported shape %s", string(b))
	}
	if single == "" {
		*k = []string{}
		return nil
	}
	*k = []string{single}
	return nil
}
