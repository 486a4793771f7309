// Package cost computes a static evaluation-cost score for a pattern, an
// approximation of vendor WAF capacity units. The score is documented as an
// estimate, not a guarantee: its one hard property is monotonicity — adding
// repetitions or widening character classes never lowers it.
package cost

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"regexguard/engine"
	"regexguard/syntax"

	"go.uber.org/zap"
)

// ErrInvariantViolation indicates the breakdown stopped summing to the
// total. It is a bug in the estimator, never a property of the input, and
// must be surfaced rather than swallowed.
var ErrInvariantViolation = errors.New("cost: breakdown does not sum to total")

// DefaultUnboundedFactor stands in for an unbounded repetition bound so
// scores stay finite and comparable across patterns.
const DefaultUnboundedFactor = 64

// classWidthCap bounds the width term so negated classes over the full rune
// space do not drown every other contribution. Capping keeps the score
// monotonic: width growth beyond the cap simply stops adding cost.
const classWidthCap = 4096

// Contribution is one node's share of the total, addressed by a slash-path
// from the root.
type Contribution struct {
	Path string  `json:"path"`
	Cost float64 `json:"cost"`
}

// Score is the total static cost plus its per-node breakdown. The breakdown
// always sums to the total.
type Score struct {
	Total     float64        `json:"total"`
	Breakdown []Contribution `json:"breakdown"`
}

// Estimator derives cost scores. It is stateless apart from configuration
// and safe for concurrent use.
type Estimator struct {
	unboundedFactor float64
	logger          *zap.SugaredLogger
}

// NewEstimator creates an Estimator. A non-positive unboundedFactor selects
// DefaultUnboundedFactor.
func NewEstimator(unboundedFactor float64, logger *zap.SugaredLogger) *Estimator {
	if unboundedFactor <= 0 {
		unboundedFactor = DefaultUnboundedFactor
	}
	return &Estimator{unboundedFactor: unboundedFactor, logger: logger}
}

// Estimate walks the tree summing a per-node base cost scaled by the
// profile's kind weight and by the amplification of every enclosing
// quantifier (bounded max, or the unbounded factor). The context deadline
// is checked once per node.
func (e *Estimator) Estimate(ctx context.Context, ast syntax.Node, profile engine.Profile) (Score, error) {
	w := &costWalker{ctx: ctx, est: e, profile: profile}
	total, err := w.visit(ast, "", 1)
	if err != nil {
		return Score{}, err
	}
	sum := 0.0
	for _, c := range w.breakdown {
		sum += c.Cost
	}
	if math.Abs(sum-total) > 1e-6 {
		e.logger.Errorw("cost breakdown diverged from total", "total", total, "breakdown_sum", sum)
		return Score{}, fmt.Errorf("%w: total %.6f, breakdown %.6f", ErrInvariantViolation, total, sum)
	}
	return Score{Total: total, Breakdown: w.breakdown}, nil
}

type costWalker struct {
	ctx       context.Context
	est       *Estimator
	profile   engine.Profile
	breakdown []Contribution
}

func (w *costWalker) visit(n syntax.Node, path string, amp float64) (float64, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	self := w.baseCost(n) * w.profile.Weight(n.Kind().String()) * amp
	nodePath := path + "/" + n.Kind().String()
	w.breakdown = append(w.breakdown, Contribution{Path: nodePath, Cost: self})
	total := self
	switch t := n.(type) {
	case *syntax.Concat:
		for i, c := range t.Nodes {
			sub, err := w.visit(c, nodePath+"["+strconv.Itoa(i)+"]", amp)
			if err != nil {
				return 0, err
			}
			total += sub
		}
	case *syntax.Alternation:
		for i, b := range t.Branches {
			sub, err := w.visit(b, nodePath+"["+strconv.Itoa(i)+"]", amp)
			if err != nil {
				return 0, err
			}
			total += sub
		}
	case *syntax.Quantifier:
		sub, err := w.visit(t.Child, nodePath, amp*w.effectiveMax(t))
		if err != nil {
			return 0, err
		}
		total += sub
	case *syntax.Group:
		sub, err := w.visit(t.Child, nodePath, amp)
		if err != nil {
			return 0, err
		}
		total += sub
	}
	return total, nil
}

// effectiveMax is the amplification a quantifier applies to its subtree.
func (w *costWalker) effectiveMax(q *syntax.Quantifier) float64 {
	if q.Max == syntax.Unbounded {
		return w.est.unboundedFactor
	}
	if q.Max < 1 {
		return 1
	}
	return float64(q.Max)
}

// baseCost assigns the per-node-type cost before weighting and
// amplification.
func (w *costWalker) baseCost(n syntax.Node) float64 {
	switch t := n.(type) {
	case *syntax.Literal:
		return float64(len(t.Runes))
	case *syntax.CharClass:
		width := t.Ranges.Width()
		if t.Negated {
			width = t.Ranges.Negate().Width()
		}
		if width > classWidthCap {
			width = classWidthCap
		}
		return 1 + float64(width)/64
	case *syntax.Quantifier:
		return 2
	case *syntax.Alternation:
		return float64(len(t.Branches))
	case *syntax.Group:
		if t.Capturing {
			return 2
		}
		return 1
	case *syntax.Anchor:
		return 1
	case *syntax.Backreference:
		// Backreferences force backtracking engines to keep capture state
		// live across the whole attempt.
		return 8
	case *syntax.Concat:
		return 0
	default:
		return 1
	}
}

// FormatBreakdown renders the breakdown for human-facing CLI output.
func FormatBreakdown(s Score) string {
	var b strings.Builder
	for _, c := range s.Breakdown {
		fmt.Fprintf(&b, "%-60s %10.2f\n", c.Path, c.Cost)
	}
	fmt.Fprintf(&b, "%-60s %10.2f\n", "total", s.Total)
	return b.String()
}
