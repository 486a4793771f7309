package rewrite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"regexguard/metrics"
	"regexguard/syntax"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// Equivalence-check defaults. With the default alphabet sample the full
// corpus stays in the low thousands of strings, small enough to run inside
// an interactive request.
const (
	DefaultMaxLength     = 6
	DefaultMaxStrings    = 4000
	DefaultMatchTimeout  = 250 * time.Millisecond
	defaultAlphabetLimit = 6
)

// Verdict is the outcome of one bounded language comparison.
type Verdict struct {
	// Equivalent is false only when a concrete counterexample was found.
	Equivalent bool
	// Exhaustive is true when the whole planned corpus was compared. A
	// truncated or timed-out comparison can still report Equivalent but
	// never Exhaustive: the caller must downgrade to an approximate label.
	Exhaustive bool
	// Counterexample is a string one pattern matches and the other does
	// not, when Equivalent is false.
	Counterexample string
	// Caveat explains why the comparison was not exhaustive.
	Caveat string
}

// Checker compares the matched languages of two ASTs by brute force over a
// generated corpus, delegating the actual matching to regexp2 so possessive
// and atomic constructs are evaluated by a real backtracking engine under a
// match timeout.
type Checker struct {
	maxLength    int
	maxStrings   int
	matchTimeout time.Duration
	logger       *zap.SugaredLogger
}

// NewChecker creates a Checker. Non-positive bounds select the defaults.
func NewChecker(maxLength, maxStrings int, matchTimeout time.Duration, logger *zap.SugaredLogger) *Checker {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if maxStrings <= 0 {
		maxStrings = DefaultMaxStrings
	}
	if matchTimeout <= 0 {
		matchTimeout = DefaultMatchTimeout
	}
	return &Checker{maxLength: maxLength, maxStrings: maxStrings, matchTimeout: matchTimeout, logger: logger}
}

// Compare tests membership of every corpus string in both languages. The
// context deadline is checked once per string; on expiry it returns the
// context error so a deadline can never be mistaken for an exact verdict.
func (c *Checker) Compare(ctx context.Context, a, b syntax.Node) (Verdict, error) {
	start := time.Now()
	defer func() {
		metrics.EquivalenceDuration.Observe(time.Since(start).Seconds())
	}()
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	reA, err := compileForMatching(a, c.matchTimeout)
	if err != nil {
		return Verdict{}, fmt.Errorf("rewrite: compiling original for comparison: %w", err)
	}
	reB, err := compileForMatching(b, c.matchTimeout)
	if err != nil {
		return Verdict{}, fmt.Errorf("rewrite: compiling candidate for comparison: %w", err)
	}

	alphabet := corpusAlphabet(a, b)
	gen := newCorpusGen(alphabet, c.maxLength)
	checked := 0
	for {
		if err := ctx.Err(); err != nil {
			return Verdict{}, err
		}
		s, ok := gen.next()
		if !ok {
			metrics.EquivalenceChecksTotal.WithLabelValues("exhaustive").Inc()
			return Verdict{Equivalent: true, Exhaustive: true}, nil
		}
		if checked >= c.maxStrings {
			metrics.EquivalenceChecksTotal.WithLabelValues("truncated").Inc()
			return Verdict{
				Equivalent: true,
				Caveat:     fmt.Sprintf("comparison truncated after %d of the planned test strings", checked),
			}, nil
		}
		checked++
		ma, errA := reA.MatchString(s)
		mb, errB := reB.MatchString(s)
		if errA != nil || errB != nil {
			// regexp2 reports its MatchTimeout as an error; treat any
			// engine failure as an exhausted step budget and fail closed.
			c.logger.Warnw("equivalence matching aborted", "errA", errA, "errB", errB, "input_len", len(s))
			metrics.EquivalenceChecksTotal.WithLabelValues("timeout").Inc()
			return Verdict{
				Equivalent: true,
				Caveat:     "matching engine timed out before the corpus was exhausted",
			}, nil
		}
		if ma != mb {
			metrics.EquivalenceChecksTotal.WithLabelValues("counterexample").Inc()
			return Verdict{Equivalent: false, Counterexample: s}, nil
		}
	}
}

// compileForMatching serializes a tree into syntax regexp2 accepts, anchored
// so the comparison is over whole-string membership.
func compileForMatching(n syntax.Node, timeout time.Duration) (*regexp2.Regexp, error) {
	pattern := `\A(?:` + syntax.Serialize(toMatchable(n)) + `)\z`
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = timeout
	return re, nil
}

// toMatchable rewrites constructs regexp2 does not accept: possessive
// quantifiers become greedy quantifiers inside atomic groups, and group
// names are dropped (regexp2 uses .NET name syntax, and names do not affect
// the matched language).
func toMatchable(n syntax.Node) syntax.Node {
	switch t := n.(type) {
	case *syntax.Quantifier:
		child := toMatchable(t.Child)
		if t.Mode == syntax.Possessive {
			inner := &syntax.Quantifier{Child: child, Min: t.Min, Max: t.Max, Mode: syntax.Greedy, Pos: t.Pos}
			return &syntax.Group{Child: inner, Atomic: true, Pos: t.Pos}
		}
		return &syntax.Quantifier{Child: child, Min: t.Min, Max: t.Max, Mode: t.Mode, Pos: t.Pos}
	case *syntax.Group:
		return &syntax.Group{Child: toMatchable(t.Child), Capturing: t.Capturing, Atomic: t.Atomic, Index: t.Index, Pos: t.Pos}
	case *syntax.Concat:
		nodes := make([]syntax.Node, len(t.Nodes))
		for i, c := range t.Nodes {
			nodes[i] = toMatchable(c)
		}
		return &syntax.Concat{Nodes: nodes, Pos: t.Pos}
	case *syntax.Alternation:
		branches := make([]syntax.Node, len(t.Branches))
		for i, b := range t.Branches {
			branches[i] = toMatchable(b)
		}
		return &syntax.Alternation{Branches: branches, Pos: t.Pos}
	default:
		return syntax.Clone(n)
	}
}

// corpusAlphabet samples runes from both patterns' alphabets and adds one
// rune neither pattern can consume, so divergence on rejected characters is
// also visible.
func corpusAlphabet(a, b syntax.Node) []rune {
	set := syntax.Alphabet(a).Union(syntax.Alphabet(b))
	runes := set.Sample(defaultAlphabetLimit)
	for _, outsider := range []rune{'!', '#', '0', 'q', 'Z'} {
		if !set.Contains(outsider) {
			runes = append(runes, outsider)
			break
		}
	}
	if len(runes) == 0 {
		runes = []rune{'a'}
	}
	return runes
}

// corpusGen enumerates every string over the alphabet with length 0..max,
// shortest first.
type corpusGen struct {
	alphabet []rune
	max      int
	length   int
	counters []int
	done     bool
}

func newCorpusGen(alphabet []rune, max int) *corpusGen {
	return &corpusGen{alphabet: alphabet, max: max}
}

func (g *corpusGen) next() (string, bool) {
	if g.done {
		return "", false
	}
	if g.counters == nil {
		g.counters = []int{}
		return "", true // the empty string
	}
	// Advance the base-|alphabet| counter, growing length on overflow.
	i := len(g.counters) - 1
	for i >= 0 {
		g.counters[i]++
		if g.counters[i] < len(g.alphabet) {
			break
		}
		g.counters[i] = 0
		i--
	}
	if i < 0 {
		g.length++
		if g.length > g.max {
			g.done = true
			return "", false
		}
		g.counters = make([]int, g.length)
	}
	var sb strings.Builder
	for _, c := range g.counters {
		sb.WriteRune(g.alphabet[c])
	}
	return sb.String(), true
}
