package injection

import (
	"context"
	"fmt"

	"github.com/af-corp/medullar-gateway/internal/config"
	"github.com/af-corp/medullar-gateway/internal/filter"
)

// Detection records a matched injection pattern.
type Detection struct {
	RuleName string
	Severity float64
	Category string
}

// Scanner scores ask-space messages for prompt injection.
type Scanner struct {
	rules []Rule
	cfg   func() config.InjectionFilterConfig
}

func NewScanner(cfg func() config.InjectionFilterConfig) *Scanner {
	return &Scanner{rules: DefaultRules(), cfg: cfg}
}

func (s *Scanner) Name() string  { return "injection" }
func (s *Scanner) Enabled() bool { return s.cfg().Enabled }

// Scan returns all detections and the highest severity found.
func (s *Scanner) Scan(text string) ([]Detection, float64) {
	var detections []Detection
	score := 0.0
	for _, r := range s.rules {
		if !r.Regex.MatchString(text) {
			continue
		}
		detections = append(detections, Detection{RuleName: r.Name, Severity: r.Severity, Category: r.Category})
		if r.Severity > score {
			score = r.Severity
		}
	}
	return detections, score
}

// Check only looks at the message field; record content is data, not a
// prompt.
func (s *Scanner) Check(_ context.Context, req *filter.Request) filter.Result {
	detections, score := s.Scan(req.Fields["message"])
	cfg := s.cfg()

	switch {
	case len(detections) == 0:
		return filter.Result{Action: filter.ActionPass, FilterName: "injection"}
	case score >= cfg.BlockThreshold:
		return filter.Result{
			Action:     filter.ActionBlock,
			FilterName: "injection",
			Message:    fmt.Sprintf("prompt injection detected (score %.2f)", score),
			Detections: len(detections),
			Score:      score,
		}
	case score >= cfg.FlagThreshold:
		return filter.Result{
			Action:     filter.ActionFlag,
			FilterName: "injection",
			Detections: len(detections),
			Score:      score,
		}
	}
	return filter.Result{Action: filter.ActionPass, FilterName: "injection", Score: score}
}
