package engine

import (
	"fmt"

	"regexguard/syntax"
)

// Unsupported reports a construct the target engine cannot evaluate, with a
// suggested fallback the caller can surface next to the span.
type Unsupported struct {
	Span      syntax.Span `json:"span"`
	Construct string      `json:"construct"`
	Fallback  string      `json:"fallback"`
}

// CheckSupport walks the tree and reports every construct the profile's
// feature set does not include. It runs on the original pattern and on every
// rewrite candidate; candidates carrying unsupported constructs are filtered
// before being offered to the caller.
func CheckSupport(ast syntax.Node, p Profile) []Unsupported {
	var out []Unsupported
	syntax.Walk(ast, func(n syntax.Node) bool {
		switch t := n.(type) {
		case *syntax.Backreference:
			if !p.Supports(FeatureBackreferences) {
				out = append(out, Unsupported{
					Span:      t.Span(),
					Construct: fmt.Sprintf(`backreference \%d`, t.Index),
					Fallback:  "repeat the referenced sub-pattern inline, accepting that the two occurrences may match different text",
				})
			}
		case *syntax.Quantifier:
			switch t.Mode {
			case syntax.Possessive:
				if !p.Supports(FeaturePossessive) {
					out = append(out, Unsupported{
						Span:      t.Span(),
						Construct: "possessive quantifier",
						Fallback:  "use a greedy quantifier; on a linear-time engine the possessive form is unnecessary",
					})
				}
			case syntax.Lazy:
				if !p.Supports(FeatureLazy) {
					out = append(out, Unsupported{
						Span:      t.Span(),
						Construct: "lazy quantifier",
						Fallback:  "use a greedy quantifier, possibly with a narrowed character class to bound the match",
					})
				}
			}
		case *syntax.Group:
			if t.Atomic && !p.Supports(FeatureAtomicGroups) {
				out = append(out, Unsupported{
					Span:      t.Span(),
					Construct: "atomic group",
					Fallback:  "use a plain group; on a linear-time engine atomicity is unnecessary",
				})
			}
			if t.Name != "" && !p.Supports(FeatureNamedGroups) {
				out = append(out, Unsupported{
					Span:      t.Span(),
					Construct: fmt.Sprintf("named group %q", t.Name),
					Fallback:  "use a positional capture group",
				})
			}
		}
		return true
	})
	return out
}
