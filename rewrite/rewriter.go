// Package rewrite turns vulnerable patterns into backtracking-safe
// equivalents. Strategies are tried in a fixed priority order and validated
// three ways before a candidate is offered: a bounded language comparison
// against the original, re-analysis, and an engine compatibility check for
// the requested target. Re-analysis rejects candidates with remaining
// Critical or High findings, except that a residual-keeping mitigation like
// branch reordering may re-emit the finding it targets; such candidates are
// offered with the residual named in their caveat.
package rewrite

import (
	"context"

	"regexguard/analyze"
	"regexguard/cost"
	"regexguard/engine"
	"regexguard/metrics"
	"regexguard/syntax"

	"go.uber.org/zap"
)

// Rewriter coordinates strategies and candidate validation. Stateless per
// pattern; safe for concurrent use.
type Rewriter struct {
	analyzer  *analyze.Analyzer
	estimator *cost.Estimator
	checker   *Checker
	logger    *zap.SugaredLogger
}

// NewRewriter wires a Rewriter from its collaborators.
func NewRewriter(analyzer *analyze.Analyzer, estimator *cost.Estimator, checker *Checker, logger *zap.SugaredLogger) *Rewriter {
	return &Rewriter{analyzer: analyzer, estimator: estimator, checker: checker, logger: logger}
}

// Rewrite plans the candidate sequence for the findings. The sequence is
// lazy: no strategy runs until Next is called, and the caller may stop
// after the first acceptable candidate. An empty finding set yields an
// empty sequence, so already-safe patterns are never rewritten. Patterns
// containing backreferences are never rewritten either; the finding set is
// reported as-is.
func (r *Rewriter) Rewrite(ast syntax.Node, findings []analyze.Finding, profile engine.Profile) *Sequence {
	seq := &Sequence{r: r, original: ast, profile: profile}
	if containsBackreference(ast) {
		return seq
	}
	for _, f := range findings {
		seq.strategies = append(seq.strategies, strategiesFor(f, profile)...)
	}
	return seq
}

// blockingOnlyOfClass reports whether every Critical or High finding in fs
// belongs to the given class.
func blockingOnlyOfClass(fs []analyze.Finding, class analyze.Class) bool {
	for _, f := range fs {
		if f.Severity >= analyze.SeverityHigh && f.Class != class {
			return false
		}
	}
	return true
}

func containsBackreference(n syntax.Node) bool {
	found := false
	syntax.Walk(n, func(m syntax.Node) bool {
		if m.Kind() == syntax.KindBackreference {
			found = true
			return false
		}
		return true
	})
	return found
}

// Sequence is a lazy, finite, restartable stream of accepted candidates.
type Sequence struct {
	r          *Rewriter
	original   syntax.Node
	profile    engine.Profile
	strategies []strategy
	pos        int
}

// Reset restarts the sequence from the first strategy.
func (s *Sequence) Reset() { s.pos = 0 }

// Next produces the next accepted candidate, nil when the sequence is
// exhausted. It returns the context error as soon as the deadline expires,
// never a candidate whose validation was cut short.
func (s *Sequence) Next(ctx context.Context) (*Candidate, error) {
	for s.pos < len(s.strategies) {
		st := s.strategies[s.pos]
		s.pos++
		cand, err := s.r.evaluate(ctx, s.original, st, s.profile)
		if err != nil {
			return nil, err
		}
		if cand != nil {
			return cand, nil
		}
	}
	return nil, nil
}

// Collect drains the sequence into a slice, stopping after limit candidates
// when limit is positive.
func (s *Sequence) Collect(ctx context.Context, limit int) ([]Candidate, error) {
	var out []Candidate
	for {
		c, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return out, nil
		}
		out = append(out, *c)
		if limit > 0 && len(out) >= limit {
			return out, nil
		}
	}
}

// evaluate runs one strategy and validates its output. A nil candidate with
// nil error means the strategy did not apply or its output was rejected.
func (r *Rewriter) evaluate(ctx context.Context, original syntax.Node, st strategy, profile engine.Profile) (*Candidate, error) {
	tree, strategyCaveat, ok := st.apply(original)
	if !ok {
		return nil, nil
	}
	if err := syntax.Validate(tree); err != nil {
		// A strategy producing a malformed tree is an engine bug; surface
		// it instead of silently skipping.
		return nil, err
	}

	verdict, err := r.checker.Compare(ctx, original, tree)
	if err != nil {
		return nil, err
	}
	if !verdict.Equivalent {
		r.logger.Debugw("rewrite candidate diverged from original",
			"strategy", st.name, "counterexample", verdict.Counterexample)
		metrics.RewriteCandidatesTotal.WithLabelValues(st.name, "false").Inc()
		return nil, nil
	}

	findings, err := r.analyzer.Analyze(ctx, tree)
	if err != nil {
		return nil, err
	}
	if analyze.HasBlocking(findings) {
		if !st.keepsResidual || !blockingOnlyOfClass(findings, st.finding.Class) {
			r.logger.Debugw("rewrite candidate still vulnerable", "strategy", st.name)
			metrics.RewriteCandidatesTotal.WithLabelValues(st.name, "false").Inc()
			return nil, nil
		}
	}
	if unsupported := engine.CheckSupport(tree, profile); len(unsupported) > 0 {
		r.logger.Debugw("rewrite candidate uses unsupported constructs",
			"strategy", st.name, "constructs", len(unsupported))
		metrics.RewriteCandidatesTotal.WithLabelValues(st.name, "false").Inc()
		return nil, nil
	}
	score, err := r.estimator.Estimate(ctx, tree, profile)
	if err != nil {
		return nil, err
	}

	eq := Equivalence{Kind: EquivalenceExact}
	switch {
	case strategyCaveat != "":
		eq = Equivalence{Kind: EquivalenceApproximate, Caveat: strategyCaveat}
	case !verdict.Exhaustive:
		eq = Equivalence{Kind: EquivalenceApproximate, Caveat: verdict.Caveat}
	}

	metrics.RewriteCandidatesTotal.WithLabelValues(st.name, "true").Inc()
	return &Candidate{
		AST:         tree,
		Pattern:     syntax.Serialize(tree),
		Equivalence: eq,
		Score:       score,
		Findings:    findings,
		Strategy:    st.name,
	}, nil
}
