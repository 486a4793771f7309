// Package analyze detects regex constructs that expose backtracking engines
// to catastrophic runtime. Detection is structural, not simulated: it walks
// the AST once per rule instead of exploring the exponential match space, so
// identical trees always produce identical findings.
package analyze

import (
	"context"
	"fmt"

	"regexguard/syntax"

	"go.uber.org/zap"
)

// Analyzer runs the structural ReDoS rules over a pattern AST. It holds no
// per-pattern state; one instance serves concurrent requests.
type Analyzer struct {
	logger *zap.SugaredLogger
}

// New creates an Analyzer. Pass zap.NewNop().Sugar() when logging is not
// wanted.
func New(logger *zap.SugaredLogger) *Analyzer {
	return &Analyzer{logger: logger}
}

// Analyze walks the AST and returns the ordered, per-span-deduplicated set
// of findings. The context deadline is checked once per visited node; on
// expiry the walk aborts with the context error rather than returning a
// partial finding set.
func (a *Analyzer) Analyze(ctx context.Context, root syntax.Node) ([]Finding, error) {
	w := &walker{ctx: ctx}
	w.visit(root, visitState{})
	if w.err != nil {
		return nil, w.err
	}
	sortFindings(w.findings)
	findings := dedupeBySpan(w.findings)
	if len(findings) > 0 {
		a.logger.Debugw("pattern analysis produced findings",
			"count", len(findings),
			"top_severity", findings[0].Severity.String(),
		)
	}
	return findings, nil
}

// visitState carries the ancestry facts the rules depend on.
type visitState struct {
	// insideUnbounded is true when an enclosing non-possessive quantifier
	// has no upper bound.
	insideUnbounded bool
	// insideAtomic is true under an atomic group or possessive quantifier;
	// backtracking cannot reach such subtrees from outside, which defuses
	// the nesting rules.
	insideAtomic bool
}

type walker struct {
	ctx      context.Context
	findings []Finding
	err      error
}

func (w *walker) visit(n syntax.Node, st visitState) {
	if w.err != nil {
		return
	}
	if err := w.ctx.Err(); err != nil {
		w.err = err
		return
	}
	switch t := n.(type) {
	case *syntax.Quantifier:
		w.checkNestedQuantifier(t, st)
		w.checkAlternationUnderRepetition(t, st)
		w.checkUnboundedNestedGroup(t, st)
		child := visitState{
			insideUnbounded: st.insideUnbounded || (t.IsUnbounded() && t.Mode != syntax.Possessive),
			insideAtomic:    st.insideAtomic || t.Mode == syntax.Possessive,
		}
		w.visit(t.Child, child)
	case *syntax.Group:
		child := st
		if t.Atomic {
			child.insideAtomic = true
		}
		w.visit(t.Child, child)
	case *syntax.Concat:
		w.checkClassRepetition(t, st)
		for _, c := range t.Nodes {
			w.visit(c, st)
		}
	case *syntax.Alternation:
		for _, b := range t.Branches {
			w.visit(b, st)
		}
	}
}

// checkNestedQuantifier flags a quantifier whose subtree contains another
// unbounded quantifier on a sub-pattern that can match empty or overlap
// itself. Critical when both repetitions are unbounded and their matchable
// sets intersect; High otherwise.
func (w *walker) checkNestedQuantifier(outer *syntax.Quantifier, st visitState) {
	if st.insideAtomic || outer.Mode == syntax.Possessive {
		return
	}
	if outer.Max != syntax.Unbounded && outer.Max <= 1 {
		return
	}
	inner := FindInnerUnbounded(outer.Child)
	if inner == nil {
		return
	}
	severity := SeverityHigh
	if outer.IsUnbounded() && syntax.Alphabet(inner.Child).Overlaps(syntax.Alphabet(outer.Child)) {
		severity = SeverityCritical
	}
	w.findings = append(w.findings, Finding{
		Span:     outer.Span(),
		Class:    ClassNestedQuantifier,
		Severity: severity,
		Explanation: fmt.Sprintf(
			"the repetition at offset %d-%d encloses another unbounded repetition of %q at offset %d-%d; a backtracking engine can redistribute the matched text between the two loops in exponentially many ways",
			outer.Span().Start, outer.Span().End,
			syntax.Serialize(inner.Child), inner.Span().Start, inner.Span().End,
		),
	})
}

// FindInnerUnbounded locates an unbounded, non-possessive quantifier inside
// n whose body can match empty or overlap itself across repetitions.
// Subtrees sealed by atomic groups or possessive quantifiers are skipped.
// The rewriter uses it to target the repetition a nested-quantifier finding
// refers to.
func FindInnerUnbounded(n syntax.Node) *syntax.Quantifier {
	switch t := n.(type) {
	case *syntax.Quantifier:
		if t.Mode == syntax.Possessive {
			return nil
		}
		if t.IsUnbounded() && repeatAmbiguous(t.Child) {
			return t
		}
		return FindInnerUnbounded(t.Child)
	case *syntax.Group:
		if t.Atomic {
			return nil
		}
		return FindInnerUnbounded(t.Child)
	case *syntax.Concat:
		for _, c := range t.Nodes {
			if q := FindInnerUnbounded(c); q != nil {
				return q
			}
		}
	case *syntax.Alternation:
		for _, b := range t.Branches {
			if q := FindInnerUnbounded(b); q != nil {
				return q
			}
		}
	}
	return nil
}

// repeatAmbiguous reports whether repeating n is ambiguous: n can match the
// empty string, or consecutive repetitions can overlap because a match of n
// can end with a rune another match can begin with.
func repeatAmbiguous(n syntax.Node) bool {
	if syntax.MatchesEmpty(n) {
		return true
	}
	return syntax.LastSet(n).Overlaps(syntax.FirstSet(n))
}

// checkAlternationUnderRepetition flags an alternation under an unbounded
// repetition when two or more branch first sets intersect: the engine must
// try every branch assignment per iteration.
func (w *walker) checkAlternationUnderRepetition(q *syntax.Quantifier, st visitState) {
	if st.insideAtomic || q.Mode == syntax.Possessive || !q.IsUnbounded() {
		return
	}
	alt := findAlternation(q.Child)
	if alt == nil {
		return
	}
	first, second := overlappingBranches(alt)
	if first < 0 {
		return
	}
	w.findings = append(w.findings, Finding{
		Span:     alt.Span(),
		Class:    ClassOverlappingAlternation,
		Severity: SeverityHigh,
		Explanation: fmt.Sprintf(
			"branches %q and %q of the alternation at offset %d-%d can begin with the same character; under the unbounded repetition at offset %d-%d every iteration multiplies the branch choices a backtracking engine must revisit",
			syntax.Serialize(alt.Branches[first]), syntax.Serialize(alt.Branches[second]),
			alt.Span().Start, alt.Span().End,
			q.Span().Start, q.Span().End,
		),
	})
}

func findAlternation(n syntax.Node) *syntax.Alternation {
	switch t := n.(type) {
	case *syntax.Alternation:
		return t
	case *syntax.Group:
		if t.Atomic {
			return nil
		}
		return findAlternation(t.Child)
	case *syntax.Concat:
		for _, c := range t.Nodes {
			if a := findAlternation(c); a != nil {
				return a
			}
		}
	case *syntax.Quantifier:
		if t.Mode == syntax.Possessive {
			return nil
		}
		return findAlternation(t.Child)
	}
	return nil
}

// overlappingBranches returns the indexes of the first branch pair whose
// first sets intersect, or (-1, -1).
func overlappingBranches(alt *syntax.Alternation) (int, int) {
	sets := make([]syntax.ClassRanges, len(alt.Branches))
	for i, b := range alt.Branches {
		sets[i] = syntax.FirstSet(b)
	}
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			if sets[i].Overlaps(sets[j]) {
				return i, j
			}
		}
	}
	return -1, -1
}

// checkUnboundedNestedGroup flags an unbounded repetition over a group whose
// body can match the empty string. Each empty iteration is a no-progress
// loop the engine must bound itself, and capture state churns per iteration.
func (w *walker) checkUnboundedNestedGroup(q *syntax.Quantifier, st visitState) {
	if st.insideAtomic || q.Mode == syntax.Possessive || !q.IsUnbounded() {
		return
	}
	g, ok := q.Child.(*syntax.Group)
	if !ok || g.Atomic {
		return
	}
	// An inner unbounded quantifier is the nested-quantifier rule's
	// territory; this rule covers the remaining empty-body loops.
	if FindInnerUnbounded(g.Child) != nil {
		return
	}
	if !syntax.MatchesEmpty(g.Child) {
		return
	}
	w.findings = append(w.findings, Finding{
		Span:     q.Span(),
		Class:    ClassUnboundedNestedGroup,
		Severity: SeverityLow,
		Explanation: fmt.Sprintf(
			"the group %q under the unbounded repetition at offset %d-%d can match the empty string, so the engine can iterate without consuming input",
			syntax.Serialize(g), q.Span().Start, q.Span().End,
		),
	})
}

// checkClassRepetition flags an unbounded character-class repetition whose
// immediate successor in the sequence matches a subset of the class. Linear
// engines are unaffected; backtracking engines go superlinear on crafted
// input that forces the boundary between the two to be renegotiated.
func (w *walker) checkClassRepetition(c *syntax.Concat, st visitState) {
	if st.insideAtomic {
		return
	}
	for i := 0; i+1 < len(c.Nodes); i++ {
		q, ok := c.Nodes[i].(*syntax.Quantifier)
		if !ok || !q.IsUnbounded() || q.Mode == syntax.Possessive {
			continue
		}
		class, ok := q.Child.(*syntax.CharClass)
		if !ok {
			continue
		}
		next, ok := c.Nodes[i+1].(*syntax.Quantifier)
		if !ok || next.Mode == syntax.Possessive {
			continue
		}
		classSet := syntax.FirstSet(class)
		nextSet := syntax.Alphabet(next.Child)
		if nextSet.Width() == 0 || !nextSet.SubsetOf(classSet) {
			continue
		}
		span := syntax.Span{Start: class.Span().Start, End: next.Span().End}
		w.findings = append(w.findings, Finding{
			Span:     span,
			Class:    ClassCatastrophicClassRepetition,
			Severity: SeverityMedium,
			Explanation: fmt.Sprintf(
				"the class repetition %q at offset %d-%d is immediately followed by %q, which matches only characters the class already consumes; a backtracking engine retries every split point between the two",
				syntax.Serialize(q), class.Span().Start, q.Span().End,
				syntax.Serialize(next),
			),
		})
	}
}
