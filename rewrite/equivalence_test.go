package rewrite

import (
	"context"
	"testing"
	"time"

	"regexguard/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustParse(t *testing.T, pattern string) syntax.Node {
	t.Helper()
	n, err := syntax.Parse(pattern, syntax.DialectPCRE)
	require.NoError(t, err)
	return n
}

func compare(t *testing.T, c *Checker, a, b string) Verdict {
	t.Helper()
	v, err := c.Compare(context.Background(), mustParse(t, a), mustParse(t, b))
	require.NoError(t, err)
	return v
}

func TestCompareEquivalentPatterns(t *testing.T) {
	c := NewChecker(0, 0, 0, zap.NewNop().Sugar())
	tests := []struct{ a, b string }{
		{"a+", "aa*"},
		{"(a+)+b", "a+b"},
		{"(foo|foobar)*x", "(foo(?:|bar))*x"},
		{"a++", "a+"},
		{"(?>a+)", "a+"},
	}
	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			v := compare(t, c, tt.a, tt.b)
			assert.True(t, v.Equivalent)
			assert.Empty(t, v.Counterexample)
		})
	}
}

func TestCompareFindsCounterexample(t *testing.T) {
	c := NewChecker(0, 0, 0, zap.NewNop().Sugar())

	v := compare(t, c, "a+", "a*")
	assert.False(t, v.Equivalent)
	assert.Equal(t, "", v.Counterexample, "a* accepts the empty string and a+ does not")

	v = compare(t, c, "ab", "ac")
	assert.False(t, v.Equivalent)
	assert.NotEmpty(t, v.Counterexample)
}

func TestCompareExhaustiveOnSmallAlphabet(t *testing.T) {
	c := NewChecker(0, 0, 0, zap.NewNop().Sugar())
	v := compare(t, c, "a+b", "a+b")
	assert.True(t, v.Equivalent)
	assert.True(t, v.Exhaustive)
	assert.Empty(t, v.Caveat)
}

func TestCompareTruncatesLargeCorpus(t *testing.T) {
	c := NewChecker(0, 50, 0, zap.NewNop().Sugar())
	v := compare(t, c, "[a-z]+", "[a-z][a-z]*")
	assert.True(t, v.Equivalent)
	assert.False(t, v.Exhaustive)
	assert.Contains(t, v.Caveat, "truncated")
}

func TestCompareHonorsDeadline(t *testing.T) {
	c := NewChecker(0, 0, 0, zap.NewNop().Sugar())
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := c.Compare(ctx, mustParse(t, "a+"), mustParse(t, "a+"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCorpusGenEnumeratesShortestFirst(t *testing.T) {
	g := newCorpusGen([]rune{'a', 'b'}, 2)
	var out []string
	for {
		s, ok := g.next()
		if !ok {
			break
		}
		out = append(out, s)
	}
	assert.Equal(t, []string{"", "a", "b", "aa", "ab", "ba", "bb"}, out)
}

func TestCorpusAlphabetAddsOutsider(t *testing.T) {
	a := mustParse(t, "[ab]+")
	runes := corpusAlphabet(a, a)
	assert.Contains(t, runes, 'a')
	assert.Contains(t, runes, 'b')
	assert.Contains(t, runes, '!', "one rune outside both alphabets probes rejection behavior")
}
