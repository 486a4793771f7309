package analyze

import (
	"sort"

	"regexguard/syntax"
)

// Class identifies the structural vulnerability a finding reports.
type Class string

const (
	ClassNestedQuantifier            Class = "nested-quantifier"
	ClassOverlappingAlternation      Class = "overlapping-alternation"
	ClassUnboundedNestedGroup        Class = "unbounded-nested-group"
	ClassCatastrophicClassRepetition Class = "catastrophic-class-repetition"
)

// Severity ranks findings. Critical means exponential blowup is reachable on
// a backtracking engine; Low is a hygiene observation.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity as its lower-case name in JSON and YAML
// reports.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Finding is one detected backtracking risk, addressed by byte offsets into
// the original pattern source.
type Finding struct {
	Span        syntax.Span `json:"span"`
	Class       Class       `json:"class"`
	Severity    Severity    `json:"severity"`
	Explanation string      `json:"explanation"`
}

// sortFindings orders by severity (highest first), then by source offset.
func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Severity != fs[j].Severity {
			return fs[i].Severity > fs[j].Severity
		}
		if fs[i].Span.Start != fs[j].Span.Start {
			return fs[i].Span.Start < fs[j].Span.Start
		}
		return fs[i].Span.End < fs[j].Span.End
	})
}

// dedupeBySpan keeps only the highest-severity finding per span while
// retaining findings at disjoint spans. Input must already be sorted.
func dedupeBySpan(fs []Finding) []Finding {
	seen := make(map[syntax.Span]bool, len(fs))
	out := fs[:0]
	for _, f := range fs {
		if seen[f.Span] {
			continue
		}
		seen[f.Span] = true
		out = append(out, f)
	}
	return out
}

// HasBlocking reports whether any finding is Critical or High. Rewrite
// candidates that still carry one are rejected.
func HasBlocking(fs []Finding) bool {
	for _, f := range fs {
		if f.Severity >= SeverityHigh {
			return true
		}
	}
	return false
}
