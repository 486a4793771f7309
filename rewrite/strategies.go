package rewrite

import (
	"fmt"

	"regexguard/analyze"
	"regexguard/engine"
	"regexguard/syntax"
)

// A strategy turns one finding into zero or one candidate tree. Strategies
// always operate on a fresh clone of the original; the tree the findings
// were reported against is never touched.
type strategy struct {
	name    string
	finding analyze.Finding
	// apply returns the rewritten tree, a caveat for changes the
	// equivalence check cannot see (empty when none), and false when the
	// strategy does not apply to this tree.
	apply func(root syntax.Node) (syntax.Node, string, bool)
	// keepsResidual marks a mitigation that cannot remove the finding it
	// targets, only soften it. Re-analysis of its output is allowed to
	// re-emit blocking findings of the same class; the candidate is offered
	// anyway, with the residual named in its caveat.
	keepsResidual bool
}

// strategiesFor builds the fixed-priority strategy list for a finding.
func strategiesFor(f analyze.Finding, profile engine.Profile) []strategy {
	switch f.Class {
	case analyze.ClassNestedQuantifier:
		var out []strategy
		if profile.Supports(engine.FeaturePossessive) || profile.Supports(engine.FeatureAtomicGroups) {
			out = append(out, strategy{
				name:    "seal-inner-repetition",
				finding: f,
				apply: func(root syntax.Node) (syntax.Node, string, bool) {
					return sealInnerRepetition(root, f.Span, profile)
				},
			})
		}
		out = append(out, strategy{
			name:    "collapse-nested-repetition",
			finding: f,
			apply: func(root syntax.Node) (syntax.Node, string, bool) {
				return collapseNestedRepetition(root, f.Span)
			},
		})
		return out
	case analyze.ClassOverlappingAlternation:
		return []strategy{
			{
				name:    "factor-common-prefix",
				finding: f,
				apply: func(root syntax.Node) (syntax.Node, string, bool) {
					return factorCommonPrefix(root, f.Span)
				},
			},
			{
				name:    "reorder-branches",
				finding: f,
				apply: func(root syntax.Node) (syntax.Node, string, bool) {
					return reorderBranches(root, f.Span)
				},
				// Reordering never changes which branch first sets overlap,
				// so the overlap finding survives re-analysis.
				keepsResidual: true,
			},
		}
	case analyze.ClassCatastrophicClassRepetition:
		var out []strategy
		if profile.Supports(engine.FeaturePossessive) || profile.Supports(engine.FeatureAtomicGroups) {
			out = append(out, strategy{
				name:    "seal-class-repetition",
				finding: f,
				apply: func(root syntax.Node) (syntax.Node, string, bool) {
					return sealClassRepetition(root, f.Span, profile)
				},
			})
		}
		out = append(out, strategy{
			name:    "merge-class-repetition",
			finding: f,
			apply: func(root syntax.Node) (syntax.Node, string, bool) {
				return mergeClassRepetition(root, f.Span)
			},
		})
		return out
	default:
		// unbounded-nested-group is advisory; no rewriting is attempted.
		return nil
	}
}

// replaceFirst rebuilds the tree with the first node matching kind and span
// replaced by f's result. Returns the (possibly unchanged) tree and whether
// a replacement happened.
func replaceFirst(n syntax.Node, kind syntax.NodeKind, span syntax.Span, f func(syntax.Node) syntax.Node) (syntax.Node, bool) {
	if n.Kind() == kind && n.Span() == span {
		return f(n), true
	}
	switch t := n.(type) {
	case *syntax.Concat:
		for i, c := range t.Nodes {
			if nc, ok := replaceFirst(c, kind, span, f); ok {
				t.Nodes[i] = nc
				return t, true
			}
		}
	case *syntax.Alternation:
		for i, b := range t.Branches {
			if nb, ok := replaceFirst(b, kind, span, f); ok {
				t.Branches[i] = nb
				return t, true
			}
		}
	case *syntax.Quantifier:
		if nc, ok := replaceFirst(t.Child, kind, span, f); ok {
			t.Child = nc
			return t, true
		}
	case *syntax.Group:
		if nc, ok := replaceFirst(t.Child, kind, span, f); ok {
			t.Child = nc
			return t, true
		}
	}
	return n, false
}

// sealInnerRepetition makes the inner unbounded repetition possessive (or
// wraps it in an atomic group) so the two loops can no longer trade text.
func sealInnerRepetition(root syntax.Node, outerSpan syntax.Span, profile engine.Profile) (syntax.Node, string, bool) {
	tree := syntax.Clone(root)
	newTree, ok := replaceFirst(tree, syntax.KindQuantifier, outerSpan, func(n syntax.Node) syntax.Node {
		outer := n.(*syntax.Quantifier)
		inner := analyze.FindInnerUnbounded(outer.Child)
		if inner == nil {
			return n
		}
		if profile.Supports(engine.FeaturePossessive) {
			inner.Mode = syntax.Possessive
			return outer
		}
		sealed, _ := replaceFirst(outer.Child, syntax.KindQuantifier, inner.Span(), func(q syntax.Node) syntax.Node {
			return &syntax.Group{Child: q, Atomic: true, Pos: q.Span()}
		})
		outer.Child = sealed
		return outer
	})
	if !ok {
		return nil, "", false
	}
	return newTree, "", true
}

// collapseNestedRepetition flattens an outer repetition whose body is just
// another repetition, e.g. (a+)+ into (a+). The capture group, when
// present, is kept so group numbering survives.
func collapseNestedRepetition(root syntax.Node, outerSpan syntax.Span) (syntax.Node, string, bool) {
	tree := syntax.Clone(root)
	applied := false
	newTree, ok := replaceFirst(tree, syntax.KindQuantifier, outerSpan, func(n syntax.Node) syntax.Node {
		outer := n.(*syntax.Quantifier)
		inner, wrapper := directInner(outer.Child)
		if inner == nil {
			return n
		}
		newMin := outer.Min * inner.Min
		merged := &syntax.Quantifier{Child: inner.Child, Min: newMin, Max: syntax.Unbounded, Mode: inner.Mode, Pos: inner.Span()}
		applied = true
		if wrapper != nil {
			wrapper.Child = merged
			return wrapper
		}
		return merged
	})
	if !ok || !applied {
		return nil, "", false
	}
	return newTree, "", true
}

// directInner unwraps Group layers around a lone unbounded quantifier, the
// only shape the collapse is valid for. Returns the quantifier and the
// outermost wrapping group, if any.
func directInner(n syntax.Node) (*syntax.Quantifier, *syntax.Group) {
	switch t := n.(type) {
	case *syntax.Quantifier:
		if t.IsUnbounded() {
			return t, nil
		}
	case *syntax.Group:
		if q, ok := t.Child.(*syntax.Quantifier); ok && q.IsUnbounded() {
			return q, t
		}
	}
	return nil, nil
}

// factorCommonPrefix rewrites (foo|foobar) into foo(?:|bar) when every
// branch is a plain literal sharing a non-empty prefix.
func factorCommonPrefix(root syntax.Node, altSpan syntax.Span) (syntax.Node, string, bool) {
	tree := syntax.Clone(root)
	applied := false
	newTree, ok := replaceFirst(tree, syntax.KindAlternation, altSpan, func(n syntax.Node) syntax.Node {
		alt := n.(*syntax.Alternation)
		lits := make([][]rune, len(alt.Branches))
		for i, b := range alt.Branches {
			l, okLit := b.(*syntax.Literal)
			if !okLit {
				return n
			}
			lits[i] = l.Runes
		}
		prefix := commonPrefix(lits)
		if len(prefix) == 0 {
			return n
		}
		suffixes := make([]syntax.Node, len(lits))
		for i, l := range lits {
			suffixes[i] = &syntax.Literal{Runes: append([]rune(nil), l[len(prefix):]...), Pos: alt.Branches[i].Span()}
		}
		applied = true
		return &syntax.Concat{
			Nodes: []syntax.Node{
				&syntax.Literal{Runes: append([]rune(nil), prefix...), Pos: alt.Pos},
				&syntax.Group{Child: &syntax.Alternation{Branches: suffixes, Pos: alt.Pos}, Pos: alt.Pos},
			},
			Pos: alt.Pos,
		}
	})
	if !ok || !applied {
		return nil, "", false
	}
	return newTree, "", true
}

func commonPrefix(lits [][]rune) []rune {
	if len(lits) == 0 {
		return nil
	}
	prefix := lits[0]
	for _, l := range lits[1:] {
		n := 0
		for n < len(prefix) && n < len(l) && prefix[n] == l[n] {
			n++
		}
		prefix = prefix[:n]
		if len(prefix) == 0 {
			return nil
		}
	}
	return prefix
}

// reorderBranches sorts branches longest-first so no earlier branch is a
// proper prefix of a later one. Works for any branch shapes; the longest
// serialized form is assumed the most specific.
func reorderBranches(root syntax.Node, altSpan syntax.Span) (syntax.Node, string, bool) {
	tree := syntax.Clone(root)
	applied := false
	var affected []string
	newTree, ok := replaceFirst(tree, syntax.KindAlternation, altSpan, func(n syntax.Node) syntax.Node {
		alt := n.(*syntax.Alternation)
		branches := append([]syntax.Node(nil), alt.Branches...)
		changed := false
		// Stable insertion by descending serialized length.
		for i := 1; i < len(branches); i++ {
			for j := i; j > 0 && len(syntax.Serialize(branches[j])) > len(syntax.Serialize(branches[j-1])); j-- {
				branches[j], branches[j-1] = branches[j-1], branches[j]
				changed = true
			}
		}
		if !changed {
			return n
		}
		applied = true
		for _, b := range alt.Branches {
			affected = append(affected, syntax.Serialize(b))
		}
		return &syntax.Alternation{Branches: branches, Pos: alt.Pos}
	})
	if !ok || !applied {
		return nil, "", false
	}
	caveat := fmt.Sprintf("branches %q still overlap; they were reordered most-specific-first, which changes the preferred branch on a leftmost-match engine and softens, but does not remove, the backtracking overlap", affected)
	return newTree, caveat, true
}

// sealClassRepetition makes the leading class repetition possessive (or
// atomic) so the boundary with its follower is fixed after the first pass.
func sealClassRepetition(root syntax.Node, span syntax.Span, profile engine.Profile) (syntax.Node, string, bool) {
	tree := syntax.Clone(root)
	q := findClassQuantAt(tree, span)
	if q == nil {
		return nil, "", false
	}
	if profile.Supports(engine.FeaturePossessive) {
		q.Mode = syntax.Possessive
		return tree, "", true
	}
	newTree, ok := replaceFirst(tree, syntax.KindQuantifier, q.Span(), func(n syntax.Node) syntax.Node {
		return &syntax.Group{Child: n, Atomic: true, Pos: n.Span()}
	})
	if !ok {
		return nil, "", false
	}
	return newTree, "", true
}

// mergeClassRepetition fuses [c]+ followed by a quantified subset construct
// into one repetition when both repeat the same class, e.g. \d+\d+ into
// \d{2,}.
func mergeClassRepetition(root syntax.Node, span syntax.Span) (syntax.Node, string, bool) {
	tree := syntax.Clone(root)
	applied := false
	var newTree syntax.Node
	var rebuild func(n syntax.Node) syntax.Node
	rebuild = func(n syntax.Node) syntax.Node {
		if applied {
			return n
		}
		switch t := n.(type) {
		case *syntax.Concat:
			for i := 0; i+1 < len(t.Nodes); i++ {
				q1, ok1 := t.Nodes[i].(*syntax.Quantifier)
				q2, ok2 := t.Nodes[i+1].(*syntax.Quantifier)
				if !ok1 || !ok2 || !q1.IsUnbounded() {
					continue
				}
				c1, okc := q1.Child.(*syntax.CharClass)
				if !okc || q1.Child.Span().Start != span.Start {
					continue
				}
				c2, okc2 := q2.Child.(*syntax.CharClass)
				if !okc2 || !sameClass(c1, c2) {
					continue
				}
				merged := &syntax.Quantifier{
					Child: q1.Child,
					Min:   q1.Min + q2.Min,
					Max:   syntax.Unbounded,
					Mode:  q1.Mode,
					Pos:   syntax.Span{Start: q1.Span().Start, End: q2.Span().End},
				}
				nodes := append([]syntax.Node(nil), t.Nodes[:i]...)
				nodes = append(nodes, merged)
				nodes = append(nodes, t.Nodes[i+2:]...)
				applied = true
				if len(nodes) == 1 {
					return nodes[0]
				}
				return &syntax.Concat{Nodes: nodes, Pos: t.Pos}
			}
			for i, c := range t.Nodes {
				t.Nodes[i] = rebuild(c)
			}
		case *syntax.Alternation:
			for i, b := range t.Branches {
				t.Branches[i] = rebuild(b)
			}
		case *syntax.Quantifier:
			t.Child = rebuild(t.Child)
		case *syntax.Group:
			t.Child = rebuild(t.Child)
		}
		return n
	}
	newTree = rebuild(tree)
	if !applied {
		return nil, "", false
	}
	return newTree, "", true
}

func sameClass(a, b *syntax.CharClass) bool {
	if a.Negated != b.Negated || len(a.Ranges) != len(b.Ranges) {
		return false
	}
	for i := range a.Ranges {
		if a.Ranges[i] != b.Ranges[i] {
			return false
		}
	}
	return true
}

// findClassQuantAt locates the unbounded class quantifier whose class opens
// at the finding's start offset.
func findClassQuantAt(root syntax.Node, span syntax.Span) *syntax.Quantifier {
	var out *syntax.Quantifier
	syntax.Walk(root, func(n syntax.Node) bool {
		q, ok := n.(*syntax.Quantifier)
		if !ok || !q.IsUnbounded() {
			return true
		}
		if c, okc := q.Child.(*syntax.CharClass); okc && c.Span().Start == span.Start {
			out = q
			return false
		}
		return true
	})
	return out
}
