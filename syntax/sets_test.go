package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassRangesNormalization(t *testing.T) {
	c := NewClassRanges(
		RuneRange{Lo: 'f', Hi: 'k'},
		RuneRange{Lo: 'a', Hi: 'c'},
		RuneRange{Lo: 'b', Hi: 'g'},
	)
	assert.Equal(t, ClassRanges{{Lo: 'a', Hi: 'k'}}, c, "overlapping ranges should merge")

	adjacent := NewClassRanges(RuneRange{Lo: 'a', Hi: 'b'}, RuneRange{Lo: 'c', Hi: 'd'})
	assert.Equal(t, ClassRanges{{Lo: 'a', Hi: 'd'}}, adjacent, "adjacent ranges should merge")

	inverted := NewClassRanges(RuneRange{Lo: 'z', Hi: 'a'})
	assert.Empty(t, inverted, "inverted ranges are dropped")
}

func TestClassRangesOperations(t *testing.T) {
	lower := NewClassRanges(RuneRange{Lo: 'a', Hi: 'z'})
	digits := NewClassRanges(RuneRange{Lo: '0', Hi: '9'})
	vowels := NewClassRanges(
		RuneRange{Lo: 'a', Hi: 'a'}, RuneRange{Lo: 'e', Hi: 'e'},
		RuneRange{Lo: 'i', Hi: 'i'}, RuneRange{Lo: 'o', Hi: 'o'},
		RuneRange{Lo: 'u', Hi: 'u'},
	)

	assert.Equal(t, 26, lower.Width())
	assert.Equal(t, 5, vowels.Width())

	assert.True(t, vowels.SubsetOf(lower))
	assert.False(t, lower.SubsetOf(vowels))
	assert.False(t, digits.Overlaps(lower))
	assert.True(t, vowels.Overlaps(lower))

	union := lower.Union(digits)
	assert.Equal(t, 36, union.Width())

	inter := lower.Intersect(vowels)
	assert.Equal(t, vowels, inter)

	neg := lower.Negate()
	assert.False(t, neg.Contains('m'))
	assert.True(t, neg.Contains('0'))
	assert.True(t, neg.Contains('A'))
	// Negation partitions the universe.
	assert.Equal(t, maxRune+1, neg.Width()+lower.Width())
}

func TestSample(t *testing.T) {
	c := NewClassRanges(RuneRange{Lo: 'a', Hi: 'z'})
	sample := c.Sample(4)
	require.Len(t, sample, 4)
	for _, r := range sample {
		assert.True(t, c.Contains(r))
	}
	assert.Contains(t, sample, 'a', "endpoints are sampled first")
	assert.Contains(t, sample, 'z', "endpoints are sampled first")
}

func TestFirstSet(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		contains []rune
		excludes []rune
	}{
		{name: "literal", pattern: "abc", contains: []rune{'a'}, excludes: []rune{'b'}},
		{name: "alternation unions branches", pattern: "foo|bar", contains: []rune{'f', 'b'}, excludes: []rune{'o'}},
		{name: "optional prefix exposes successor", pattern: "a?b", contains: []rune{'a', 'b'}, excludes: []rune{'c'}},
		{name: "class", pattern: "[x-z]1", contains: []rune{'x', 'z'}, excludes: []rune{'1'}},
		{name: "group and quantifier pass through", pattern: "(ab)+c", contains: []rune{'a'}, excludes: []rune{'b', 'c'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := FirstSet(mustParse(t, tt.pattern, DialectPCRE))
			for _, r := range tt.contains {
				assert.True(t, set.Contains(r), "first set should contain %q", r)
			}
			for _, r := range tt.excludes {
				assert.False(t, set.Contains(r), "first set should not contain %q", r)
			}
		})
	}
}

func TestLastSet(t *testing.T) {
	set := LastSet(mustParse(t, "ab|cd", DialectPCRE))
	assert.True(t, set.Contains('b'))
	assert.True(t, set.Contains('d'))
	assert.False(t, set.Contains('a'))

	set = LastSet(mustParse(t, "ab?", DialectPCRE))
	assert.True(t, set.Contains('a'), "optional tail exposes the preceding rune")
	assert.True(t, set.Contains('b'))
}

func TestMatchesEmpty(t *testing.T) {
	empty := []string{"a*", "a?", "(a|b)*", "a*b?", "^", "(|x)"}
	nonEmpty := []string{"a", "a+", "[x]", "ab*", "(x|y)"}
	for _, p := range empty {
		assert.True(t, MatchesEmpty(mustParse(t, p, DialectPCRE)), "%q can match empty", p)
	}
	for _, p := range nonEmpty {
		assert.False(t, MatchesEmpty(mustParse(t, p, DialectPCRE)), "%q cannot match empty", p)
	}
}

func TestAlphabet(t *testing.T) {
	set := Alphabet(mustParse(t, "(foo|[0-9]+)x", DialectPCRE))
	for _, r := range "fox0159" {
		assert.True(t, set.Contains(r), "alphabet should contain %q", r)
	}
	assert.False(t, set.Contains('z'))
}
