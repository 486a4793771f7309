package analyze

import (
	"context"
	"testing"
	"time"

	"regexguard/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func analyzePattern(t *testing.T, pattern string) []Finding {
	t.Helper()
	ast, err := syntax.Parse(pattern, syntax.DialectPCRE)
	require.NoError(t, err)
	findings, err := New(zap.NewNop().Sugar()).Analyze(context.Background(), ast)
	require.NoError(t, err)
	return findings
}

func TestNestedQuantifierCritical(t *testing.T) {
	findings := analyzePattern(t, "(a+)+b")
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, ClassNestedQuantifier, f.Class)
	assert.Equal(t, SeverityCritical, f.Severity)
	// The finding points at the outer repetition operator.
	assert.Equal(t, syntax.Span{Start: 4, End: 5}, f.Span)
	assert.Contains(t, f.Explanation, "offset 4-5")
	assert.Contains(t, f.Explanation, `"a"`)
}

func TestNestedQuantifierHighWhenOuterBounded(t *testing.T) {
	findings := analyzePattern(t, "(a+){2,8}b")
	require.Len(t, findings, 1)
	assert.Equal(t, ClassNestedQuantifier, findings[0].Class)
	assert.Equal(t, SeverityHigh, findings[0].Severity)
}

func TestOverlappingAlternation(t *testing.T) {
	findings := analyzePattern(t, "(foo|foobar)*x")
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, ClassOverlappingAlternation, f.Class)
	assert.Equal(t, SeverityHigh, f.Severity)
	assert.Equal(t, 1, f.Span.Start, "finding spans the alternation inside the group")
	assert.Contains(t, f.Explanation, `"foo"`)
	assert.Contains(t, f.Explanation, `"foobar"`)
}

func TestDisjointAlternationIsSafe(t *testing.T) {
	assert.Empty(t, analyzePattern(t, "(foo|bar)*x"))
}

func TestCatastrophicClassRepetition(t *testing.T) {
	findings := analyzePattern(t, `[ab]+a+`)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, ClassCatastrophicClassRepetition, f.Class)
	assert.Equal(t, SeverityMedium, f.Severity)
	assert.Equal(t, 0, f.Span.Start)
}

func TestClassRepetitionDisjointFollowerIsSafe(t *testing.T) {
	assert.Empty(t, analyzePattern(t, `[a-z]+[0-9]+`))
}

func TestUnboundedNestedGroup(t *testing.T) {
	findings := analyzePattern(t, "(a?)*")
	require.Len(t, findings, 1)
	assert.Equal(t, ClassUnboundedNestedGroup, findings[0].Class)
	assert.Equal(t, SeverityLow, findings[0].Severity)
}

func TestSafePatterns(t *testing.T) {
	safe := []string{
		"abc",
		"a+b",
		`^[a-z]{1,16}$`,
		"(cat|dog)house",
		`\d{4}-\d{2}-\d{2}`,
		"(?>a+)+b",
		"(a++)+b",
	}
	for _, p := range safe {
		t.Run(p, func(t *testing.T) {
			assert.Empty(t, analyzePattern(t, p), "pattern %q should produce no findings", p)
		})
	}
}

func TestFindingOrderAndSpanDedupe(t *testing.T) {
	// Two independent constructs: a Critical nesting and a Medium class
	// repetition at a disjoint span. Both must be present, highest first.
	findings := analyzePattern(t, `(x+)+y[ab]+a+`)
	require.Len(t, findings, 2)
	assert.Equal(t, SeverityCritical, findings[0].Severity)
	assert.Equal(t, SeverityMedium, findings[1].Severity)
	assert.NotEqual(t, findings[0].Span, findings[1].Span)
}

func TestAnalysisIsDeterministic(t *testing.T) {
	ast, err := syntax.Parse("(a+)+(foo|foobar)*", syntax.DialectPCRE)
	require.NoError(t, err)
	a := New(zap.NewNop().Sugar())
	first, err := a.Analyze(context.Background(), ast)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), ast)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyzeHonorsDeadline(t *testing.T) {
	ast, err := syntax.Parse("(a+)+b", syntax.DialectPCRE)
	require.NoError(t, err)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = New(zap.NewNop().Sugar()).Analyze(ctx, ast)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHasBlocking(t *testing.T) {
	assert.False(t, HasBlocking(nil))
	assert.False(t, HasBlocking([]Finding{{Severity: SeverityMedium}}))
	assert.True(t, HasBlocking([]Finding{{Severity: SeverityHigh}}))
	assert.True(t, HasBlocking([]Finding{{Severity: SeverityCritical}}))
}
