// Package narrative produces the free-text eligibility assessment for a
// case. Two interchangeable backends exist: a remote analysis service spoken
// to over HTTP, and a direct LLM path. Both take a natural-language case
// description and return prose plus a confidence score.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Result is one analysis verdict. Confidence is in [0,1].
type Result struct {
	Analysis   string  `json:"analysis"`
	Confidence float64 `json:"confidence"`
}

// Analyzer is the single operation both backends implement.
type Analyzer interface {
	Analyze(ctx context.Context, description string) (Result, error)
}

func validateResult(r Result) error {
	if strings.TrimSpace(r.Analysis) == "" {
		return errors.New("empty analysis text")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %.3f outside [0,1]", r.Confidence)
	}
	return nil
}
