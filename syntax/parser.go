package syntax

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Dialect selects the operator set the parser accepts.
type Dialect string

const (
	// DialectPCRE accepts possessive quantifiers, atomic groups, named
	// groups and backreferences.
	DialectPCRE Dialect = "pcre"
	// DialectRE2 rejects constructs RE2-family engines cannot compile:
	// possessive quantifiers, atomic groups and backreferences.
	DialectRE2 Dialect = "re2"
)

type dialectFeatures struct {
	possessive   bool
	atomicGroups bool
	backrefs     bool
}

func featuresFor(d Dialect) (dialectFeatures, error) {
	switch d {
	case DialectPCRE:
		return dialectFeatures{possessive: true, atomicGroups: true, backrefs: true}, nil
	case DialectRE2:
		return dialectFeatures{}, nil
	default:
		return dialectFeatures{}, fmt.Errorf("syntax: unknown dialect %q", d)
	}
}

// ParseErrorKind classifies a parse failure.
type ParseErrorKind int

const (
	ErrUnbalancedGroup ParseErrorKind = iota
	ErrInvalidQuantifierRange
	ErrUnknownEscape
	ErrUnsupportedConstruct
	ErrEmptyPattern
	ErrDanglingQuantifier
	ErrInvalidClassRange
)

func (k ParseErrorKind) String() string {
	switch k {
	case ErrUnbalancedGroup:
		return "unbalanced group"
	case ErrInvalidQuantifierRange:
		return "invalid quantifier range"
	case ErrUnknownEscape:
		return "unknown escape"
	case ErrUnsupportedConstruct:
		return "unsupported construct"
	case ErrEmptyPattern:
		return "empty pattern"
	case ErrDanglingQuantifier:
		return "dangling quantifier"
	case ErrInvalidClassRange:
		return "invalid class range"
	default:
		return "parse error"
	}
}

// ParseError reports a malformed pattern. Offset is the byte offset of the
// first character of the offending token, suitable for caret diagnostics.
type ParseError struct {
	ErrKind ParseErrorKind
	Offset  int
	Msg     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.ErrKind, e.Offset, e.Msg)
}

// Parse parses a pattern into its AST under the given dialect. The returned
// tree is single-rooted; a pattern with top-level alternation yields an
// Alternation root, a multi-atom pattern a Concat root.
func Parse(source string, dialect Dialect) (Node, error) {
	feats, err := featuresFor(dialect)
	if err != nil {
		return nil, err
	}
	if source == "" {
		return nil, &ParseError{ErrKind: ErrEmptyPattern, Offset: 0, Msg: "pattern must not be empty"}
	}
	p := &parser{input: source, feats: feats}
	node, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.input) {
		// The only way parseAlternation stops early is a stray ')'.
		return nil, &ParseError{ErrKind: ErrUnbalancedGroup, Offset: p.pos, Msg: "unmatched closing parenthesis"}
	}
	return node, nil
}

type parser struct {
	input    string
	pos      int
	feats    dialectFeatures
	captures int
}

func (p *parser) peek() byte {
	return p.input[p.pos]
}

func (p *parser) errf(kind ParseErrorKind, offset int, format string, args ...interface{}) error {
	return &ParseError{ErrKind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// parseAlternation: concat ('|' concat)*. Lowest precedence.
func (p *parser) parseAlternation() (Node, error) {
	start := p.pos
	first, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	if p.pos >= len(p.input) || p.peek() != '|' {
		return first, nil
	}
	branches := []Node{first}
	for p.pos < len(p.input) && p.peek() == '|' {
		p.pos++
		b, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return &Alternation{Branches: branches, Pos: Span{Start: start, End: p.pos}}, nil
}

// parseConcat: repeat*. Stops at '|' or ')' so the caller decides whether
// the terminator is legal.
func (p *parser) parseConcat() (Node, error) {
	start := p.pos
	var nodes []Node
	for p.pos < len(p.input) && p.peek() != '|' && p.peek() != ')' {
		n, err := p.parseRepeat()
		if err != nil {
			return nil, err
		}
		// Fold adjacent unquantified literals into one run.
		if lit, ok := n.(*Literal); ok && len(nodes) > 0 {
			if prev, ok := nodes[len(nodes)-1].(*Literal); ok {
				prev.Runes = append(prev.Runes, lit.Runes...)
				prev.Pos.End = lit.Pos.End
				continue
			}
		}
		nodes = append(nodes, n)
	}
	switch len(nodes) {
	case 0:
		// An empty branch like the middle of "a||b" matches the empty string.
		return &Literal{Runes: nil, Pos: Span{Start: start, End: start}}, nil
	case 1:
		return nodes[0], nil
	default:
		return &Concat{Nodes: nodes, Pos: Span{Start: start, End: p.pos}}, nil
	}
}

// parseRepeat: atom followed by an optional postfix quantifier. Highest
// binding operator.
func (p *parser) parseRepeat() (Node, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.pos >= len(p.input) {
		return atom, nil
	}
	opStart := p.pos
	var min, max int
	switch p.peek() {
	case '*':
		min, max = 0, Unbounded
		p.pos++
	case '+':
		min, max = 1, Unbounded
		p.pos++
	case '?':
		min, max = 0, 1
		p.pos++
	case '{':
		var ok bool
		min, max, ok, err = p.parseBraceRange()
		if err != nil {
			return nil, err
		}
		if !ok {
			return atom, nil
		}
	default:
		return atom, nil
	}
	if _, isAnchor := atom.(*Anchor); isAnchor {
		return nil, p.errf(ErrUnsupportedConstruct, opStart, "quantifier applied to anchor")
	}
	mode := Greedy
	if p.pos < len(p.input) {
		switch p.peek() {
		case '?':
			mode = Lazy
			p.pos++
		case '+':
			if !p.feats.possessive {
				return nil, p.errf(ErrUnsupportedConstruct, p.pos, "possessive quantifier not available in this dialect")
			}
			mode = Possessive
			p.pos++
		}
	}
	return &Quantifier{Child: atom, Min: min, Max: max, Mode: mode, Pos: Span{Start: opStart, End: p.pos}}, nil
}

// parseBraceRange parses "{m}", "{m,}" or "{m,n}" starting at '{'. A brace
// that does not open a well-formed range is treated as a literal '{' by
// returning ok=false with pos unchanged, matching PCRE behavior.
func (p *parser) parseBraceRange() (min, max int, ok bool, err error) {
	open := p.pos
	i := p.pos + 1
	numStart := i
	for i < len(p.input) && p.input[i] >= '0' && p.input[i] <= '9' {
		i++
	}
	if i == numStart {
		return 0, 0, false, nil
	}
	minVal, convErr := strconv.Atoi(p.input[numStart:i])
	if convErr != nil {
		return 0, 0, false, nil
	}
	switch {
	case i < len(p.input) && p.input[i] == '}':
		p.pos = i + 1
		return minVal, minVal, true, nil
	case i < len(p.input) && p.input[i] == ',':
		i++
		if i < len(p.input) && p.input[i] == '}' {
			p.pos = i + 1
			return minVal, Unbounded, true, nil
		}
		maxStart := i
		for i < len(p.input) && p.input[i] >= '0' && p.input[i] <= '9' {
			i++
		}
		if i == maxStart || i >= len(p.input) || p.input[i] != '}' {
			return 0, 0, false, nil
		}
		maxVal, convErr := strconv.Atoi(p.input[maxStart:i])
		if convErr != nil {
			return 0, 0, false, nil
		}
		if maxVal < minVal {
			return 0, 0, false, p.errf(ErrInvalidQuantifierRange, open, "range {%d,%d} has max below min", minVal, maxVal)
		}
		p.pos = i + 1
		return minVal, maxVal, true, nil
	default:
		return 0, 0, false, nil
	}
}

// parseAtom: group, class, anchor, escape, dot or literal rune.
func (p *parser) parseAtom() (Node, error) {
	start := p.pos
	switch p.peek() {
	case '(':
		return p.parseGroup()
	case '[':
		return p.parseClass()
	case '^':
		p.pos++
		return &Anchor{AnchorKind: AnchorLineStart, Pos: Span{Start: start, End: p.pos}}, nil
	case '$':
		p.pos++
		return &Anchor{AnchorKind: AnchorLineEnd, Pos: Span{Start: start, End: p.pos}}, nil
	case '.':
		p.pos++
		return &CharClass{Ranges: SingleRune('\n'), Negated: true, Pos: Span{Start: start, End: p.pos}}, nil
	case '\\':
		return p.parseEscape()
	case '*', '+', '?':
		return nil, p.errf(ErrDanglingQuantifier, start, "quantifier %q has nothing to repeat", p.peek())
	default:
		r, size := utf8.DecodeRuneInString(p.input[p.pos:])
		p.pos += size
		return &Literal{Runes: []rune{r}, Pos: Span{Start: start, End: p.pos}}, nil
	}
}

func (p *parser) parseGroup() (Node, error) {
	start := p.pos
	p.pos++ // '('
	capturing := true
	atomic := false
	name := ""
	index := 0
	if p.pos < len(p.input) && p.peek() == '?' {
		if p.pos+1 >= len(p.input) {
			return nil, p.errf(ErrUnbalancedGroup, start, "unterminated group")
		}
		switch p.input[p.pos+1] {
		case ':':
			capturing = false
			p.pos += 2
		case '>':
			if !p.feats.atomicGroups {
				return nil, p.errf(ErrUnsupportedConstruct, start, "atomic group not available in this dialect")
			}
			capturing = false
			atomic = true
			p.pos += 2
		case '=', '!':
			return nil, p.errf(ErrUnsupportedConstruct, start, "lookahead is outside the analyzed grammar")
		case '<':
			if p.pos+2 < len(p.input) && (p.input[p.pos+2] == '=' || p.input[p.pos+2] == '!') {
				return nil, p.errf(ErrUnsupportedConstruct, start, "lookbehind is outside the analyzed grammar")
			}
			p.pos += 2
			var err error
			name, err = p.parseGroupName(start)
			if err != nil {
				return nil, err
			}
		case 'P':
			if p.pos+2 >= len(p.input) || p.input[p.pos+2] != '<' {
				return nil, p.errf(ErrUnsupportedConstruct, start, "unrecognized group modifier")
			}
			p.pos += 3
			var err error
			name, err = p.parseGroupName(start)
			if err != nil {
				return nil, err
			}
		default:
			return nil, p.errf(ErrUnsupportedConstruct, start, "unrecognized group modifier")
		}
	}
	if capturing {
		p.captures++
		index = p.captures
	}
	body, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}
	if p.pos >= len(p.input) || p.peek() != ')' {
		return nil, p.errf(ErrUnbalancedGroup, start, "unterminated group")
	}
	p.pos++
	return &Group{Child: body, Capturing: capturing, Name: name, Atomic: atomic, Index: index, Pos: Span{Start: start, End: p.pos}}, nil
}

func (p *parser) parseGroupName(groupStart int) (string, error) {
	nameStart := p.pos
	for p.pos < len(p.input) && p.peek() != '>' {
		c := p.peek()
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return "", p.errf(ErrUnsupportedConstruct, p.pos, "invalid character in group name")
		}
		p.pos++
	}
	if p.pos >= len(p.input) {
		return "", p.errf(ErrUnbalancedGroup, groupStart, "unterminated group name")
	}
	if p.pos == nameStart {
		return "", p.errf(ErrUnsupportedConstruct, nameStart, "empty group name")
	}
	name := p.input[nameStart:p.pos]
	p.pos++ // '>'
	return name, nil
}

func (p *parser) parseClass() (Node, error) {
	start := p.pos
	p.pos++ // '['
	negated := false
	if p.pos < len(p.input) && p.peek() == '^' {
		negated = true
		p.pos++
	}
	var ranges []RuneRange
	first := true
	for {
		if p.pos >= len(p.input) {
			return nil, p.errf(ErrUnbalancedGroup, start, "unterminated character class")
		}
		if p.peek() == ']' && !first {
			p.pos++
			break
		}
		first = false
		lo, loRanges, err := p.parseClassAtom(start)
		if err != nil {
			return nil, err
		}
		if loRanges != nil {
			// A class escape like \d contributes its ranges and cannot be a
			// range endpoint.
			ranges = append(ranges, loRanges...)
			continue
		}
		if p.pos+1 < len(p.input) && p.peek() == '-' && p.input[p.pos+1] != ']' {
			dashOffset := p.pos
			p.pos++
			hi, hiRanges, err := p.parseClassAtom(start)
			if err != nil {
				return nil, err
			}
			if hiRanges != nil {
				return nil, p.errf(ErrUnsupportedConstruct, dashOffset, "class escape cannot terminate a range")
			}
			if hi < lo {
				return nil, p.errf(ErrInvalidClassRange, dashOffset, "class range out of order")
			}
			ranges = append(ranges, RuneRange{Lo: lo, Hi: hi})
			continue
		}
		ranges = append(ranges, RuneRange{Lo: lo, Hi: lo})
	}
	return &CharClass{Ranges: NewClassRanges(ranges...), Negated: negated, Pos: Span{Start: start, End: p.pos}}, nil
}

// parseClassAtom returns either a single rune or, for class escapes like
// \d, a set of ranges.
func (p *parser) parseClassAtom(classStart int) (rune, ClassRanges, error) {
	if p.peek() == '\\' {
		escStart := p.pos
		if p.pos+1 >= len(p.input) {
			return 0, nil, p.errf(ErrUnbalancedGroup, classStart, "unterminated character class")
		}
		p.pos++
		c := p.peek()
		if set, ok := perlClass(c); ok {
			if c == 'D' || c == 'W' || c == 'S' {
				return 0, nil, p.errf(ErrUnsupportedConstruct, escStart, "negated class escape \\%c inside a character class", c)
			}
			p.pos++
			return 0, set, nil
		}
		r, ok := simpleEscape(c)
		if !ok {
			return 0, nil, p.errf(ErrUnknownEscape, escStart, "unknown escape \\%c in character class", c)
		}
		p.pos++
		return r, nil, nil
	}
	r, size := utf8.DecodeRuneInString(p.input[p.pos:])
	p.pos += size
	return r, nil, nil
}

func (p *parser) parseEscape() (Node, error) {
	start := p.pos
	if p.pos+1 >= len(p.input) {
		return nil, p.errf(ErrUnknownEscape, start, "trailing backslash")
	}
	p.pos++
	c := p.peek()
	switch c {
	case 'b':
		p.pos++
		return &Anchor{AnchorKind: AnchorWordBoundary, Pos: Span{Start: start, End: p.pos}}, nil
	case 'B':
		p.pos++
		return &Anchor{AnchorKind: AnchorNotWordBoundary, Pos: Span{Start: start, End: p.pos}}, nil
	case 'A':
		p.pos++
		return &Anchor{AnchorKind: AnchorTextStart, Pos: Span{Start: start, End: p.pos}}, nil
	case 'z':
		p.pos++
		return &Anchor{AnchorKind: AnchorTextEnd, Pos: Span{Start: start, End: p.pos}}, nil
	}
	if c >= '1' && c <= '9' {
		if !p.feats.backrefs {
			return nil, p.errf(ErrUnsupportedConstruct, start, "backreference not available in this dialect")
		}
		idx := 0
		for p.pos < len(p.input) && p.peek() >= '0' && p.peek() <= '9' {
			idx = idx*10 + int(p.peek()-'0')
			p.pos++
		}
		return &Backreference{Index: idx, Pos: Span{Start: start, End: p.pos}}, nil
	}
	if set, ok := perlClass(c); ok {
		p.pos++
		negated := c == 'D' || c == 'W' || c == 'S'
		return &CharClass{Ranges: set, Negated: negated, Pos: Span{Start: start, End: p.pos}}, nil
	}
	r, ok := simpleEscape(c)
	if !ok {
		return nil, p.errf(ErrUnknownEscape, start, "unknown escape \\%c", c)
	}
	p.pos++
	return &Literal{Runes: []rune{r}, Pos: Span{Start: start, End: p.pos}}, nil
}

// perlClass resolves \d, \w, \s and their upper-case complements. The
// complements are resolved at the call site so the node can record them as
// negated classes.
func perlClass(c byte) (ClassRanges, bool) {
	switch c {
	case 'd', 'D':
		return NewClassRanges(RuneRange{Lo: '0', Hi: '9'}), true
	case 'w', 'W':
		return NewClassRanges(
			RuneRange{Lo: '0', Hi: '9'},
			RuneRange{Lo: 'A', Hi: 'Z'},
			RuneRange{Lo: '_', Hi: '_'},
			RuneRange{Lo: 'a', Hi: 'z'},
		), true
	case 's', 'S':
		return NewClassRanges(
			RuneRange{Lo: '\t', Hi: '\n'},
			RuneRange{Lo: '\v', Hi: '\r'},
			RuneRange{Lo: ' ', Hi: ' '},
		), true
	default:
		return nil, false
	}
}

func simpleEscape(c byte) (rune, bool) {
	switch c {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case 'f':
		return '\f', true
	case 'v':
		return '\v', true
	case '0':
		return 0, true
	case '\\', '.', '+', '*', '?', '(', ')', '[', ']', '{', '}', '|', '^', '$', '-', '/':
		return rune(c), true
	default:
		return 0, false
	}
}
