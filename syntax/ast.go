package syntax

import "fmt"

// NodeKind identifies the concrete type of an AST node.
type NodeKind int

const (
	KindLiteral NodeKind = iota
	KindCharClass
	KindConcat
	KindAlternation
	KindQuantifier
	KindGroup
	KindAnchor
	KindBackreference
)

// String returns the lower-case name used in reports and metrics labels.
func (k NodeKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindCharClass:
		return "charclass"
	case KindConcat:
		return "concat"
	case KindAlternation:
		return "alternation"
	case KindQuantifier:
		return "quantifier"
	case KindGroup:
		return "group"
	case KindAnchor:
		return "anchor"
	case KindBackreference:
		return "backreference"
	default:
		return "unknown"
	}
}

// Unbounded is the sentinel for a quantifier with no upper repetition bound.
// It is distinct from every legal finite bound.
const Unbounded = -1

// Span locates a node in the original pattern source as byte offsets.
// End is exclusive. Nodes produced by rewriting keep the span of the node
// they were derived from so findings can still be reported against the
// original source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Node is the interface implemented by every AST node. Trees are uniquely
// owned by a single analysis pipeline run; rewriting clones, never mutates.
type Node interface {
	Kind() NodeKind
	Span() Span
}

// Literal matches a fixed sequence of runes.
type Literal struct {
	Runes []rune
	Pos   Span
}

func (n *Literal) Kind() NodeKind { return KindLiteral }
func (n *Literal) Span() Span     { return n.Pos }

// CharClass matches any single rune inside (or, when Negated, outside) a
// normalized set of ranges. Ranges are always sorted and non-overlapping.
type CharClass struct {
	Ranges  ClassRanges
	Negated bool
	Pos     Span
}

func (n *CharClass) Kind() NodeKind { return KindCharClass }
func (n *CharClass) Span() Span     { return n.Pos }

// Concat matches its children in sequence.
type Concat struct {
	Nodes []Node
	Pos   Span
}

func (n *Concat) Kind() NodeKind { return KindConcat }
func (n *Concat) Span() Span     { return n.Pos }

// Alternation matches exactly one of its branches. Branch order is
// significant: leftmost-match engines prefer earlier branches, so reordering
// is a semantic change unless the branches are disjoint.
type Alternation struct {
	Branches []Node
	Pos      Span
}

func (n *Alternation) Kind() NodeKind { return KindAlternation }
func (n *Alternation) Span() Span     { return n.Pos }

// QuantifierMode selects the backtracking behavior of a repetition.
type QuantifierMode int

const (
	Greedy QuantifierMode = iota
	Lazy
	Possessive
)

func (m QuantifierMode) String() string {
	switch m {
	case Greedy:
		return "greedy"
	case Lazy:
		return "lazy"
	case Possessive:
		return "possessive"
	default:
		return "unknown"
	}
}

// Quantifier repeats Child between Min and Max times. Max is Unbounded for
// open-ended repetition. Invariant: Min >= 0 and Min <= Max when Max is
// bounded (enforced by the parser, re-checked by Validate).
type Quantifier struct {
	Child Node
	Min   int
	Max   int
	Mode  QuantifierMode
	Pos   Span
}

func (n *Quantifier) Kind() NodeKind { return KindQuantifier }
func (n *Quantifier) Span() Span     { return n.Pos }

// IsUnbounded reports whether the quantifier has no upper repetition bound.
func (n *Quantifier) IsUnbounded() bool { return n.Max == Unbounded }

// Group wraps a sub-pattern. Atomic groups forbid backtracking into the
// already-matched body.
type Group struct {
	Child     Node
	Capturing bool
	Name      string
	Atomic    bool
	Index     int // 1-based capture index, 0 for non-capturing
	Pos       Span
}

func (n *Group) Kind() NodeKind { return KindGroup }
func (n *Group) Span() Span     { return n.Pos }

// AnchorKind identifies a zero-width position assertion.
type AnchorKind int

const (
	AnchorLineStart AnchorKind = iota // ^
	AnchorLineEnd                     // $
	AnchorWordBoundary                // \b
	AnchorNotWordBoundary             // \B
	AnchorTextStart                   // \A
	AnchorTextEnd                     // \z
)

func (k AnchorKind) String() string {
	switch k {
	case AnchorLineStart:
		return "^"
	case AnchorLineEnd:
		return "$"
	case AnchorWordBoundary:
		return `\b`
	case AnchorNotWordBoundary:
		return `\B`
	case AnchorTextStart:
		return `\A`
	case AnchorTextEnd:
		return `\z`
	default:
		return "?"
	}
}

// Anchor matches a position without consuming input.
type Anchor struct {
	AnchorKind AnchorKind
	Pos        Span
}

func (n *Anchor) Kind() NodeKind { return KindAnchor }
func (n *Anchor) Span() Span     { return n.Pos }

// Backreference matches the text captured by an earlier group. It is parsed
// so the compatibility checker can flag it; the rewriter never touches
// subtrees containing one.
type Backreference struct {
	Index int
	Pos   Span
}

func (n *Backreference) Kind() NodeKind { return KindBackreference }
func (n *Backreference) Span() Span     { return n.Pos }

// Clone returns a deep structural copy of the tree. The copy shares no nodes
// with the original, so rewriting a clone can never disturb the tree the
// findings were reported against.
func Clone(n Node) Node {
	switch t := n.(type) {
	case *Literal:
		runes := make([]rune, len(t.Runes))
		copy(runes, t.Runes)
		return &Literal{Runes: runes, Pos: t.Pos}
	case *CharClass:
		ranges := make(ClassRanges, len(t.Ranges))
		copy(ranges, t.Ranges)
		return &CharClass{Ranges: ranges, Negated: t.Negated, Pos: t.Pos}
	case *Concat:
		nodes := make([]Node, len(t.Nodes))
		for i, c := range t.Nodes {
			nodes[i] = Clone(c)
		}
		return &Concat{Nodes: nodes, Pos: t.Pos}
	case *Alternation:
		branches := make([]Node, len(t.Branches))
		for i, b := range t.Branches {
			branches[i] = Clone(b)
		}
		return &Alternation{Branches: branches, Pos: t.Pos}
	case *Quantifier:
		return &Quantifier{Child: Clone(t.Child), Min: t.Min, Max: t.Max, Mode: t.Mode, Pos: t.Pos}
	case *Group:
		return &Group{Child: Clone(t.Child), Capturing: t.Capturing, Name: t.Name, Atomic: t.Atomic, Index: t.Index, Pos: t.Pos}
	case *Anchor:
		return &Anchor{AnchorKind: t.AnchorKind, Pos: t.Pos}
	case *Backreference:
		return &Backreference{Index: t.Index, Pos: t.Pos}
	default:
		panic(fmt.Sprintf("syntax: unknown node type %T", n))
	}
}

// Walk visits n and every descendant in depth-first pre-order. The visitor
// returns false to stop the walk early.
func Walk(n Node, visit func(Node) bool) bool {
	if !visit(n) {
		return false
	}
	switch t := n.(type) {
	case *Concat:
		for _, c := range t.Nodes {
			if !Walk(c, visit) {
				return false
			}
		}
	case *Alternation:
		for _, b := range t.Branches {
			if !Walk(b, visit) {
				return false
			}
		}
	case *Quantifier:
		return Walk(t.Child, visit)
	case *Group:
		return Walk(t.Child, visit)
	}
	return true
}

// Validate checks tree well-formedness: quantifier bounds, normalized class
// ranges, non-empty sequences. A failure indicates a bug in the parser or a
// rewrite strategy, not bad user input.
func Validate(n Node) error {
	ok := true
	var firstErr error
	Walk(n, func(m Node) bool {
		switch t := m.(type) {
		case *Quantifier:
			if t.Min < 0 {
				firstErr = fmt.Errorf("syntax: quantifier min %d is negative", t.Min)
			} else if t.Max != Unbounded && t.Max < t.Min {
				firstErr = fmt.Errorf("syntax: quantifier bounds {%d,%d} inverted", t.Min, t.Max)
			}
		case *CharClass:
			if len(t.Ranges) == 0 {
				firstErr = fmt.Errorf("syntax: empty character class")
			} else if !t.Ranges.normalized() {
				firstErr = fmt.Errorf("syntax: character class ranges not normalized")
			}
		case *Concat:
			if len(t.Nodes) == 0 {
				firstErr = fmt.Errorf("syntax: empty concatenation")
			}
		case *Alternation:
			if len(t.Branches) < 2 {
				firstErr = fmt.Errorf("syntax: alternation with %d branches", len(t.Branches))
			}
		}
		if firstErr != nil {
			ok = false
			return false
		}
		return true
	})
	if !ok {
		return firstErr
	}
	return nil
}

// Equal reports structural equivalence of two trees: same shape, same
// quantifier bounds and modes, same class contents. Spans are ignored, so a
// serialized-and-reparsed tree compares equal to the tree it came from.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch ta := a.(type) {
	case *Literal:
		tb := b.(*Literal)
		if len(ta.Runes) != len(tb.Runes) {
			return false
		}
		for i := range ta.Runes {
			if ta.Runes[i] != tb.Runes[i] {
				return false
			}
		}
		return true
	case *CharClass:
		tb := b.(*CharClass)
		if ta.Negated != tb.Negated || len(ta.Ranges) != len(tb.Ranges) {
			return false
		}
		for i := range ta.Ranges {
			if ta.Ranges[i] != tb.Ranges[i] {
				return false
			}
		}
		return true
	case *Concat:
		tb := b.(*Concat)
		if len(ta.Nodes) != len(tb.Nodes) {
			return false
		}
		for i := range ta.Nodes {
			if !Equal(ta.Nodes[i], tb.Nodes[i]) {
				return false
			}
		}
		return true
	case *Alternation:
		tb := b.(*Alternation)
		if len(ta.Branches) != len(tb.Branches) {
			return false
		}
		for i := range ta.Branches {
			if !Equal(ta.Branches[i], tb.Branches[i]) {
				return false
			}
		}
		return true
	case *Quantifier:
		tb := b.(*Quantifier)
		return ta.Min == tb.Min && ta.Max == tb.Max && ta.Mode == tb.Mode && Equal(ta.Child, tb.Child)
	case *Group:
		tb := b.(*Group)
		return ta.Capturing == tb.Capturing && ta.Name == tb.Name && ta.Atomic == tb.Atomic && Equal(ta.Child, tb.Child)
	case *Anchor:
		return ta.AnchorKind == b.(*Anchor).AnchorKind
	case *Backreference:
		return ta.Index == b.(*Backreference).Index
	}
	return false
}
