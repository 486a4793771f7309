package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"regexguard/analyze"
	"regexguard/config"
	"regexguard/engine"
	"regexguard/rewrite"
	"regexguard/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, mutate func(*config.Config)) *Service {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := NewService(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	return svc
}

func TestAnalyzeVulnerablePattern(t *testing.T) {
	svc := newTestService(t, nil)
	rep, err := svc.Analyze(context.Background(), Request{Pattern: "(a+)+b"})
	require.NoError(t, err)

	assert.NotEmpty(t, rep.ID)
	assert.True(t, rep.Vulnerable)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, analyze.SeverityCritical, rep.Findings[0].Severity)
	assert.Equal(t, ComplexityExponential, rep.Complexity)
	assert.Equal(t, 40, rep.PerformanceScore)
	assert.Greater(t, rep.Score.Total, 0.0)

	require.Len(t, rep.Candidates, 1, "default is the first acceptable candidate")
	assert.Equal(t, "(a++)+b", rep.Candidates[0].Pattern)
	assert.Equal(t, rewrite.EquivalenceExact, rep.Candidates[0].Equivalence.Kind)
}

func TestAnalyzeSafePattern(t *testing.T) {
	svc := newTestService(t, nil)
	rep, err := svc.Analyze(context.Background(), Request{Pattern: "^[a-z]{1,16}$"})
	require.NoError(t, err)

	assert.False(t, rep.Vulnerable)
	assert.Empty(t, rep.Findings)
	assert.Empty(t, rep.Candidates)
	assert.Equal(t, ComplexityLinear, rep.Complexity)
	assert.Equal(t, 100, rep.PerformanceScore)
	for name, ok := range rep.Compatibility {
		assert.True(t, ok, "plain pattern should suit profile %s", name)
	}
}

func TestAnalyzeSurfacesParseErrorVerbatim(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Analyze(context.Background(), Request{Pattern: "(a+b"})
	require.Error(t, err)
	var perr *syntax.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, syntax.ErrUnbalancedGroup, perr.ErrKind)
	assert.Equal(t, 0, perr.Offset)
}

func TestAnalyzeRejectsInvalidRequests(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Analyze(context.Background(), Request{})
	assert.ErrorContains(t, err, "invalid request")

	_, err = svc.Analyze(context.Background(), Request{Pattern: "a", MaxCandidates: 99})
	assert.ErrorContains(t, err, "invalid request")

	_, err = svc.Analyze(context.Background(), Request{Pattern: strings.Repeat("a", 1001)})
	assert.ErrorContains(t, err, "exceeds limit")

	_, err = svc.Analyze(context.Background(), Request{Pattern: "a", Profile: "hyperscan"})
	assert.ErrorContains(t, err, "unknown profile")
}

func TestAnalyzeReportsUnsupportedConstructs(t *testing.T) {
	svc := newTestService(t, nil)
	rep, err := svc.Analyze(context.Background(), Request{Pattern: "a++b", Profile: engine.ProfileRE2})
	require.NoError(t, err)
	require.Len(t, rep.Unsupported, 1)
	assert.Equal(t, "possessive quantifier", rep.Unsupported[0].Construct)

	assert.True(t, rep.Compatibility[engine.ProfilePCRE])
	assert.False(t, rep.Compatibility[engine.ProfileRE2])
	assert.False(t, rep.Compatibility[engine.ProfileLinear])
}

func TestAnalyzeMapsDeadline(t *testing.T) {
	svc := newTestService(t, nil)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := svc.Analyze(ctx, Request{Pattern: "(a+)+b"})
	require.ErrorIs(t, err, ErrDeadlineExceeded)
}

func TestAnalyzeMaxCandidates(t *testing.T) {
	svc := newTestService(t, nil)
	rep, err := svc.Analyze(context.Background(), Request{Pattern: "(a+)+b", MaxCandidates: 4})
	require.NoError(t, err)
	assert.Len(t, rep.Candidates, 2)
	for _, c := range rep.Candidates {
		assert.False(t, analyze.HasBlocking(c.Findings),
			"candidate %q must not carry blocking findings", c.Pattern)
	}
}

func TestCacheReturnsSameReport(t *testing.T) {
	svc := newTestService(t, func(c *config.Config) { c.Cache.Enabled = true })

	first, err := svc.Analyze(context.Background(), Request{Pattern: "(a+)+b"})
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), Request{Pattern: "(a+)+b"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "second call should be served from cache")

	other, err := svc.Analyze(context.Background(), Request{Pattern: "(a+)+b", Profile: engine.ProfileRE2})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID, "profile is part of the cache key")
}

func TestRequestOverridesBypassCache(t *testing.T) {
	svc := newTestService(t, func(c *config.Config) { c.Cache.Enabled = true })

	first, err := svc.Analyze(context.Background(), Request{Pattern: "(a+)+b", MaxCandidates: 2})
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), Request{Pattern: "(a+)+b", MaxCandidates: 2})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAnalyzeBatchPreservesOrderAndIndependence(t *testing.T) {
	svc := newTestService(t, nil)
	reqs := []Request{
		{Pattern: "abc"},
		{Pattern: "(a+b"}, // malformed on purpose
		{Pattern: "(a+)+b"},
		{Pattern: "^[a-z]{1,16}$"},
	}
	results := svc.AnalyzeBatch(context.Background(), reqs)
	require.Len(t, results, len(reqs))

	for i, res := range results {
		assert.Equal(t, i, res.Index)
	}
	require.NoError(t, results[0].Err)
	assert.False(t, results[0].Report.Vulnerable)

	require.Error(t, results[1].Err)
	var perr *syntax.ParseError
	assert.True(t, errors.As(results[1].Err, &perr))
	assert.Nil(t, results[1].Report)
	assert.NotEmpty(t, results[1].Error)

	require.NoError(t, results[2].Err)
	assert.True(t, results[2].Report.Vulnerable)

	require.NoError(t, results[3].Err)
	assert.False(t, results[3].Report.Vulnerable)
}

func TestAnalyzeBatchEmpty(t *testing.T) {
	svc := newTestService(t, nil)
	assert.Empty(t, svc.AnalyzeBatch(context.Background(), nil))
}
