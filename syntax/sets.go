package syntax

import "sort"

// RuneRange is a closed interval of runes.
type RuneRange struct {
	Lo, Hi rune
}

// ClassRanges is a normalized set of rune ranges: sorted by Lo, pairwise
// disjoint, adjacent ranges merged. All set operations preserve the
// normal form.
type ClassRanges []RuneRange

// maxRune bounds negation. Analysis only needs a consistent universe, not
// the full Unicode space.
const maxRune = 0x10FFFF

// NewClassRanges builds a normalized set from arbitrary, possibly
// overlapping ranges.
func NewClassRanges(ranges ...RuneRange) ClassRanges {
	out := make(ClassRanges, 0, len(ranges))
	for _, r := range ranges {
		if r.Lo <= r.Hi {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lo < out[j].Lo })
	merged := out[:0]
	for _, r := range out {
		if n := len(merged); n > 0 && r.Lo <= merged[n-1].Hi+1 {
			if r.Hi > merged[n-1].Hi {
				merged[n-1].Hi = r.Hi
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// SingleRune returns the one-element set {r}.
func SingleRune(r rune) ClassRanges {
	return ClassRanges{{Lo: r, Hi: r}}
}

func (c ClassRanges) normalized() bool {
	for i, r := range c {
		if r.Lo > r.Hi {
			return false
		}
		if i > 0 && r.Lo <= c[i-1].Hi+1 {
			return false
		}
	}
	return true
}

// Contains reports whether r is in the set.
func (c ClassRanges) Contains(r rune) bool {
	i := sort.Search(len(c), func(i int) bool { return c[i].Hi >= r })
	return i < len(c) && c[i].Lo <= r
}

// Width is the number of runes the set represents.
func (c ClassRanges) Width() int {
	w := 0
	for _, r := range c {
		w += int(r.Hi-r.Lo) + 1
	}
	return w
}

// Union returns the normalized union of c and other.
func (c ClassRanges) Union(other ClassRanges) ClassRanges {
	all := make([]RuneRange, 0, len(c)+len(other))
	all = append(all, c...)
	all = append(all, other...)
	return NewClassRanges(all...)
}

// Intersect returns the normalized intersection of c and other.
func (c ClassRanges) Intersect(other ClassRanges) ClassRanges {
	var out []RuneRange
	i, j := 0, 0
	for i < len(c) && j < len(other) {
		lo := c[i].Lo
		if other[j].Lo > lo {
			lo = other[j].Lo
		}
		hi := c[i].Hi
		if other[j].Hi < hi {
			hi = other[j].Hi
		}
		if lo <= hi {
			out = append(out, RuneRange{Lo: lo, Hi: hi})
		}
		if c[i].Hi < other[j].Hi {
			i++
		} else {
			j++
		}
	}
	return NewClassRanges(out...)
}

// Overlaps reports whether c and other share at least one rune.
func (c ClassRanges) Overlaps(other ClassRanges) bool {
	i, j := 0, 0
	for i < len(c) && j < len(other) {
		if c[i].Hi < other[j].Lo {
			i++
		} else if other[j].Hi < c[i].Lo {
			j++
		} else {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every rune of c is in other.
func (c ClassRanges) SubsetOf(other ClassRanges) bool {
	return c.Intersect(other).Width() == c.Width()
}

// Negate returns the complement of c within [0, maxRune].
func (c ClassRanges) Negate() ClassRanges {
	var out []RuneRange
	next := rune(0)
	for _, r := range c {
		if r.Lo > next {
			out = append(out, RuneRange{Lo: next, Hi: r.Lo - 1})
		}
		if r.Hi+1 > next {
			next = r.Hi + 1
		}
	}
	if next <= maxRune {
		out = append(out, RuneRange{Lo: next, Hi: maxRune})
	}
	return NewClassRanges(out...)
}

// Sample returns up to limit representative runes drawn from the set, taking
// range endpoints first. Used to build equivalence-check corpora without
// enumerating huge classes.
func (c ClassRanges) Sample(limit int) []rune {
	if limit <= 0 {
		return nil
	}
	seen := make(map[rune]bool)
	out := make([]rune, 0, limit)
	add := func(r rune) bool {
		if seen[r] {
			return len(out) < limit
		}
		seen[r] = true
		out = append(out, r)
		return len(out) < limit
	}
	for _, r := range c {
		if !add(r.Lo) {
			return out
		}
		if r.Hi != r.Lo && !add(r.Hi) {
			return out
		}
	}
	for _, r := range c {
		for x := r.Lo + 1; x < r.Hi; x++ {
			if !add(x) {
				return out
			}
		}
	}
	return out
}

// matchSet resolves the effective rune set of a CharClass node, expanding
// negation.
func (n *CharClass) matchSet() ClassRanges {
	if n.Negated {
		return n.Ranges.Negate()
	}
	return n.Ranges
}

// FirstSet derives the set of runes with which n can begin a match. Anchors
// and empty-matching constructs contribute the first set of whatever
// follows, which the caller handles by consulting MatchesEmpty.
func FirstSet(n Node) ClassRanges {
	switch t := n.(type) {
	case *Literal:
		if len(t.Runes) == 0 {
			return nil
		}
		return SingleRune(t.Runes[0])
	case *CharClass:
		return t.matchSet()
	case *Concat:
		var out ClassRanges
		for _, c := range t.Nodes {
			out = out.Union(FirstSet(c))
			if !MatchesEmpty(c) {
				break
			}
		}
		return out
	case *Alternation:
		var out ClassRanges
		for _, b := range t.Branches {
			out = out.Union(FirstSet(b))
		}
		return out
	case *Quantifier:
		return FirstSet(t.Child)
	case *Group:
		return FirstSet(t.Child)
	case *Anchor, *Backreference:
		return nil
	}
	return nil
}

// LastSet derives the set of runes a match of n can end with. Together with
// FirstSet it detects repetitions that can overlap themselves.
func LastSet(n Node) ClassRanges {
	switch t := n.(type) {
	case *Literal:
		if len(t.Runes) == 0 {
			return nil
		}
		return SingleRune(t.Runes[len(t.Runes)-1])
	case *CharClass:
		return t.matchSet()
	case *Concat:
		var out ClassRanges
		for i := len(t.Nodes) - 1; i >= 0; i-- {
			out = out.Union(LastSet(t.Nodes[i]))
			if !MatchesEmpty(t.Nodes[i]) {
				break
			}
		}
		return out
	case *Alternation:
		var out ClassRanges
		for _, b := range t.Branches {
			out = out.Union(LastSet(b))
		}
		return out
	case *Quantifier:
		return LastSet(t.Child)
	case *Group:
		return LastSet(t.Child)
	case *Anchor, *Backreference:
		return nil
	}
	return nil
}

// MatchesEmpty reports whether n can match the empty string.
func MatchesEmpty(n Node) bool {
	switch t := n.(type) {
	case *Literal:
		return len(t.Runes) == 0
	case *CharClass:
		return false
	case *Concat:
		for _, c := range t.Nodes {
			if !MatchesEmpty(c) {
				return false
			}
		}
		return true
	case *Alternation:
		for _, b := range t.Branches {
			if MatchesEmpty(b) {
				return true
			}
		}
		return false
	case *Quantifier:
		return t.Min == 0 || MatchesEmpty(t.Child)
	case *Group:
		return MatchesEmpty(t.Child)
	case *Anchor:
		return true
	case *Backreference:
		// A backreference to a group that matched empty is empty; assume the
		// permissive answer for analysis.
		return true
	}
	return false
}

// Alphabet collects every rune set the pattern can consume anywhere, used to
// derive test corpora for the equivalence check.
func Alphabet(n Node) ClassRanges {
	var out ClassRanges
	Walk(n, func(m Node) bool {
		switch t := m.(type) {
		case *Literal:
			for _, r := range t.Runes {
				out = out.Union(SingleRune(r))
			}
		case *CharClass:
			out = out.Union(t.matchSet())
		}
		return true
	})
	return out
}
