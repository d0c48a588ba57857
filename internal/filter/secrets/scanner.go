package secrets

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/af-corp/medullar-gateway/internal/config"
	"github.com/af-corp/medullar-gateway/internal/filter"
)

// Detection represents a detected secret in a request field.
type Detection struct {
	Field       string
	PatternName string
	Start       int // byte offset
	End         int // byte offset
}

// Scanner blocks items whose outbound text carries credentials, so they never
// end up stored in a Medullar space.
type Scanner struct {
	patterns []Pattern
	cfg      func() config.SecretsFilterConfig
}

func NewScanner(cfg func() config.SecretsFilterConfig) *Scanner {
	return &Scanner{patterns: DefaultPatterns(), cfg: cfg}
}

func (s *Scanner) Name() string  { return "secrets" }
func (s *Scanner) Enabled() bool { return s.cfg().Enabled }

// Scan checks a single text string for secrets.
func (s *Scanner) Scan(text string) []Detection {
	var detections []Detection
	for _, p := range s.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			detections = append(detections, Detection{
				PatternName: p.Name,
				Start:       loc[0],
				End:         loc[1],
			})
		}
	}
	return detections
}

// ScanFields scans every field, in name order.
func (s *Scanner) ScanFields(fields map[string]string) []Detection {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var detections []Detection
	for _, name := range names {
		for _, d := range s.Scan(fields[name]) {
			d.Field = name
			detections = append(detections, d)
		}
	}
	return detections
}

func (s *Scanner) Check(_ context.Context, req *filter.Request) filter.Result {
	detections := s.ScanFields(req.Fields)
	if len(detections) == 0 {
		return filter.Result{Action: filter.ActionPass, FilterName: "secrets"}
	}

	seen := make(map[string]bool)
	var kinds []string
	for _, d := range detections {
		label := d.PatternName + " in " + d.Field
		if !seen[label] {
			seen[label] = true
			kinds = append(kinds, label)
		}
	}
	return filter.Result{
		Action:     filter.ActionBlock,
		FilterName: "secrets",
		Message:    fmt.Sprintf("possible secret detected (%s)", strings.Join(kinds, ", ")),
		Detections: len(detections),
	}
}
