package rewrite

import (
	"regexguard/analyze"
	"regexguard/cost"
	"regexguard/syntax"
)

// EquivalenceKind states how confident the engine is that a candidate
// matches the same language as the original.
type EquivalenceKind string

const (
	// EquivalenceExact means the bounded brute-force comparison ran its
	// whole planned corpus without divergence. This is a best-effort
	// approximation of language equality, not a proof.
	EquivalenceExact EquivalenceKind = "exact"
	// EquivalenceApproximate means the comparison was truncated by a
	// budget or timeout, or the strategy is known to change match extents;
	// Caveat explains what remains unverified.
	EquivalenceApproximate EquivalenceKind = "approximate"
)

// Equivalence is a candidate's confidence label.
type Equivalence struct {
	Kind   EquivalenceKind `json:"kind"`
	Caveat string          `json:"caveat,omitempty"`
}

// Candidate is one backtracking-safe rewriting of a vulnerable pattern.
// Accepted candidates carry no constructs the target engine rejects and,
// apart from the residual a reordering mitigation explicitly caveats, no
// Critical or High findings.
type Candidate struct {
	AST         syntax.Node       `json:"-"`
	Pattern     string            `json:"pattern"`
	Equivalence Equivalence       `json:"equivalence"`
	Score       cost.Score        `json:"score"`
	Findings    []analyze.Finding `json:"findings"`
	Strategy    string            `json:"strategy"`
}
