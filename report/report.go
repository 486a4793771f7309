// Package report is the library boundary of the engine: it runs the full
// pipeline (parse, analyze, estimate, check compatibility, rewrite) for one
// pattern or a batch and assembles the structured result the surrounding
// API or CLI layer serializes.
package report

import (
	"errors"

	"regexguard/analyze"
	"regexguard/cost"
	"regexguard/engine"
	"regexguard/rewrite"
	"regexguard/syntax"
)

// ErrDeadlineExceeded is returned when the caller's deadline expired before
// the pipeline finished. It is surfaced distinctly from success: no partial
// report accompanies it.
var ErrDeadlineExceeded = errors.New("report: deadline exceeded")

// Request describes one pattern to analyze.
type Request struct {
	// Pattern is the regex source, UTF-8.
	Pattern string `json:"pattern" validate:"required"`
	// Dialect selects the accepted operator set; empty means PCRE.
	Dialect syntax.Dialect `json:"dialect,omitempty"`
	// Profile names the target matching engine; empty means PCRE.
	Profile string `json:"profile,omitempty"`
	// MaxCandidates caps how many rewrite candidates are produced; zero
	// means the first acceptable candidate only.
	MaxCandidates int `json:"max_candidates,omitempty" validate:"gte=0,lte=16"`
	// EquivalenceMaxLength overrides the configured test-string length
	// bound for this request; zero keeps the configured bound.
	EquivalenceMaxLength int `json:"equivalence_max_length,omitempty" validate:"gte=0,lte=12"`
}

// Complexity is the coarse runtime classification attached to a report,
// derived from the finding set.
type Complexity string

const (
	ComplexityLinear      Complexity = "O(n)"
	ComplexityPolynomial  Complexity = "O(n^2)"
	ComplexityExponential Complexity = "O(2^n)"
)

// Report is the structured analysis result for one pattern.
type Report struct {
	// ID correlates the report across batch results and logs.
	ID      string `json:"id"`
	Pattern string `json:"pattern"`
	Dialect string `json:"dialect"`
	Profile string `json:"profile"`

	Vulnerable bool              `json:"vulnerable"`
	Findings   []analyze.Finding `json:"findings"`
	Complexity Complexity        `json:"complexity"`

	Score cost.Score `json:"score"`
	// PerformanceScore maps the complexity classification onto a 10-100
	// scale for capacity dashboards. Higher is cheaper.
	PerformanceScore int `json:"performance_score"`

	Candidates  []rewrite.Candidate  `json:"candidates"`
	Unsupported []engine.Unsupported `json:"unsupported_constructs"`
	// Compatibility reports, per known engine profile, whether the pattern
	// uses only constructs that profile supports.
	Compatibility map[string]bool `json:"compatibility"`
}

// classifyComplexity maps the finding set to the coarse runtime class: any
// Critical finding means exponential blowup is reachable, High or Medium
// means superlinear, otherwise linear.
func classifyComplexity(findings []analyze.Finding) Complexity {
	worst := Complexity(ComplexityLinear)
	for _, f := range findings {
		switch {
		case f.Severity == analyze.SeverityCritical:
			return ComplexityExponential
		case f.Severity >= analyze.SeverityMedium:
			worst = ComplexityPolynomial
		}
	}
	return worst
}

// performanceScore converts the complexity class into the 10-100 scale.
func performanceScore(c Complexity) int {
	score := 100
	switch c {
	case ComplexityExponential:
		score -= 60
	case ComplexityPolynomial:
		score -= 30
	}
	if score < 10 {
		score = 10
	}
	return score
}
