package syntax

import (
	"fmt"
	"strings"
)

// Serialize renders the tree back into pattern syntax. Re-parsing the output
// under a dialect that accepts every construct in the tree yields a
// structurally equivalent AST.
func Serialize(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	switch t := n.(type) {
	case *Literal:
		for _, r := range t.Runes {
			writeLiteralRune(b, r)
		}
	case *CharClass:
		writeClass(b, t)
	case *Concat:
		for _, c := range t.Nodes {
			if alt, ok := c.(*Alternation); ok {
				// A bare alternation inside a sequence needs explicit
				// grouping to keep precedence; the parser never produces
				// this shape but rewrite strategies may.
				b.WriteString("(?:")
				writeNode(b, alt)
				b.WriteByte(')')
				continue
			}
			writeNode(b, c)
		}
	case *Alternation:
		for i, br := range t.Branches {
			if i > 0 {
				b.WriteByte('|')
			}
			writeNode(b, br)
		}
	case *Quantifier:
		writeQuantified(b, t)
	case *Group:
		switch {
		case t.Atomic:
			b.WriteString("(?>")
		case !t.Capturing:
			b.WriteString("(?:")
		case t.Name != "":
			fmt.Fprintf(b, "(?P<%s>", t.Name)
		default:
			b.WriteByte('(')
		}
		writeNode(b, t.Child)
		b.WriteByte(')')
	case *Anchor:
		b.WriteString(t.AnchorKind.String())
	case *Backreference:
		fmt.Fprintf(b, `\%d`, t.Index)
	}
}

func writeQuantified(b *strings.Builder, q *Quantifier) {
	switch child := q.Child.(type) {
	case *Group, *CharClass, *Anchor, *Backreference:
		writeNode(b, child)
	case *Literal:
		if len(child.Runes) == 1 {
			writeNode(b, child)
		} else {
			b.WriteString("(?:")
			writeNode(b, child)
			b.WriteByte(')')
		}
	default:
		// Concat or Alternation directly under a quantifier only arises
		// from rewriting; group it so the quantifier binds the whole body.
		b.WriteString("(?:")
		writeNode(b, child)
		b.WriteByte(')')
	}
	switch {
	case q.Min == 0 && q.Max == Unbounded:
		b.WriteByte('*')
	case q.Min == 1 && q.Max == Unbounded:
		b.WriteByte('+')
	case q.Min == 0 && q.Max == 1:
		b.WriteByte('?')
	case q.Max == Unbounded:
		fmt.Fprintf(b, "{%d,}", q.Min)
	case q.Min == q.Max:
		fmt.Fprintf(b, "{%d}", q.Min)
	default:
		fmt.Fprintf(b, "{%d,%d}", q.Min, q.Max)
	}
	switch q.Mode {
	case Lazy:
		b.WriteByte('?')
	case Possessive:
		b.WriteByte('+')
	}
}

var dotClass = &CharClass{Ranges: SingleRune('\n'), Negated: true}

func writeClass(b *strings.Builder, c *CharClass) {
	if c.Negated && len(c.Ranges) == 1 && c.Ranges[0] == dotClass.Ranges[0] {
		b.WriteByte('.')
		return
	}
	b.WriteByte('[')
	if c.Negated {
		b.WriteByte('^')
	}
	for _, r := range c.Ranges {
		if r.Lo == r.Hi {
			writeClassRune(b, r.Lo)
		} else {
			writeClassRune(b, r.Lo)
			b.WriteByte('-')
			writeClassRune(b, r.Hi)
		}
	}
	b.WriteByte(']')
}

func writeLiteralRune(b *strings.Builder, r rune) {
	switch r {
	case '\\', '.', '+', '*', '?', '(', ')', '[', ']', '{', '}', '|', '^', '$', '-':
		b.WriteByte('\\')
		b.WriteRune(r)
	case '\n':
		b.WriteString(`\n`)
	case '\t':
		b.WriteString(`\t`)
	case '\r':
		b.WriteString(`\r`)
	case '\f':
		b.WriteString(`\f`)
	case '\v':
		b.WriteString(`\v`)
	default:
		b.WriteRune(r)
	}
}

func writeClassRune(b *strings.Builder, r rune) {
	switch r {
	case '\\', ']', '^', '-', '[':
		b.WriteByte('\\')
		b.WriteRune(r)
	case '\n':
		b.WriteString(`\n`)
	case '\t':
		b.WriteString(`\t`)
	case '\r':
		b.WriteString(`\r`)
	case '\f':
		b.WriteString(`\f`)
	case '\v':
		b.WriteString(`\v`)
	default:
		b.WriteRune(r)
	}
}
