package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"regexguard/analyze"
	"regexguard/config"
	"regexguard/cost"
	"regexguard/engine"
	"regexguard/metrics"
	"regexguard/rewrite"
	"regexguard/syntax"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Service runs the analysis pipeline. One instance serves concurrent
// requests: every collaborator is stateless per pattern and the optional
// cache is the only shared structure, which is safe for concurrent use.
type Service struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	validate  *validator.Validate
	analyzer  *analyze.Analyzer
	estimator *cost.Estimator
	cache     *lru.Cache[cacheKey, *Report]
}

// cacheKey keys cached reports strictly on what determines the result:
// pattern, dialect and engine profile. A request overriding per-request
// bounds bypasses the cache entirely so no stale result can leak across
// differing budgets.
type cacheKey struct {
	pattern string
	dialect syntax.Dialect
	profile string
}

// NewService wires the pipeline from configuration.
func NewService(cfg *config.Config, logger *zap.SugaredLogger) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Service{
		cfg:       cfg,
		logger:    logger,
		validate:  validator.New(),
		analyzer:  analyze.New(logger),
		estimator: cost.NewEstimator(cfg.UnboundedCostFactor, logger),
	}
	if cfg.Cache.Enabled {
		c, err := lru.New[cacheKey, *Report](cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("report: creating cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// Analyze runs the full pipeline for one pattern. Parse failures are
// returned verbatim as *syntax.ParseError. A caller deadline is honored at
// every tree walk and inside the equivalence loop; on expiry the error
// wraps ErrDeadlineExceeded and no partial report is returned.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	rep, err := s.analyzeInner(ctx, req)
	outcome := "ok"
	switch {
	case err != nil && errors.Is(err, ErrDeadlineExceeded):
		outcome = "deadline"
	case err != nil:
		outcome = "error"
	}
	metrics.AnalysesTotal.WithLabelValues(string(dialectOrDefault(req.Dialect)), profileOrDefault(req.Profile), outcome).Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	return rep, err
}

func dialectOrDefault(d syntax.Dialect) syntax.Dialect {
	if d == "" {
		return syntax.DialectPCRE
	}
	return d
}

func profileOrDefault(p string) string {
	if p == "" {
		return engine.ProfilePCRE
	}
	return p
}

func (s *Service) analyzeInner(ctx context.Context, req Request) (*Report, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("report: invalid request: %w", err)
	}
	if len(req.Pattern) > s.cfg.MaxPatternLength {
		return nil, fmt.Errorf("report: pattern length %d exceeds limit %d", len(req.Pattern), s.cfg.MaxPatternLength)
	}
	dialect := dialectOrDefault(req.Dialect)
	profileName := profileOrDefault(req.Profile)
	profile, err := engine.Lookup(profileName)
	if err != nil {
		return nil, err
	}

	cacheable := req.EquivalenceMaxLength == 0 && req.MaxCandidates == 0
	key := cacheKey{pattern: req.Pattern, dialect: dialect, profile: profileName}
	if s.cache != nil && cacheable {
		if cached, ok := s.cache.Get(key); ok {
			metrics.CacheHitsTotal.Inc()
			return cached, nil
		}
		metrics.CacheMissesTotal.Inc()
	}

	ast, err := syntax.Parse(req.Pattern, dialect)
	if err != nil {
		// Parse errors are surfaced verbatim, never recovered silently.
		return nil, err
	}

	findings, err := s.analyzer.Analyze(ctx, ast)
	if err != nil {
		return nil, s.mapDeadline(err)
	}
	score, err := s.estimator.Estimate(ctx, ast, profile)
	if err != nil {
		return nil, s.mapDeadline(err)
	}
	unsupported := engine.CheckSupport(ast, profile)

	var candidates []rewrite.Candidate
	if len(findings) > 0 {
		checker := rewrite.NewChecker(
			firstNonZero(req.EquivalenceMaxLength, s.cfg.Equivalence.MaxLength),
			s.cfg.Equivalence.MaxStrings,
			s.cfg.Equivalence.MatchTimeout,
			s.logger,
		)
		rw := rewrite.NewRewriter(s.analyzer, s.estimator, checker, s.logger)
		limit := req.MaxCandidates
		if limit == 0 {
			limit = 1
		}
		candidates, err = rw.Rewrite(ast, findings, profile).Collect(ctx, limit)
		if err != nil {
			return nil, s.mapDeadline(err)
		}
	}
	for _, f := range findings {
		metrics.FindingsTotal.WithLabelValues(string(f.Class), f.Severity.String()).Inc()
	}

	complexity := classifyComplexity(findings)
	rep := &Report{
		ID:               uuid.NewString(),
		Pattern:          req.Pattern,
		Dialect:          string(dialect),
		Profile:          profileName,
		Vulnerable:       len(findings) > 0,
		Findings:         findings,
		Complexity:       complexity,
		Score:            score,
		PerformanceScore: performanceScore(complexity),
		Candidates:       candidates,
		Unsupported:      unsupported,
		Compatibility:    s.compatibilityMatrix(ast),
	}
	if s.cache != nil && cacheable {
		s.cache.Add(key, rep)
	}
	s.logger.Infow("pattern analyzed",
		"report_id", rep.ID,
		"vulnerable", rep.Vulnerable,
		"findings", len(rep.Findings),
		"candidates", len(rep.Candidates),
		"complexity", rep.Complexity,
	)
	return rep, nil
}

// compatibilityMatrix evaluates the pattern against every builtin profile.
func (s *Service) compatibilityMatrix(ast syntax.Node) map[string]bool {
	out := make(map[string]bool)
	for _, p := range engine.Builtins() {
		out[p.Name] = len(engine.CheckSupport(ast, p)) == 0
	}
	return out
}

// mapDeadline folds context expiry into the report error taxonomy.
func (s *Service) mapDeadline(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrDeadlineExceeded, err)
	}
	return err
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}
