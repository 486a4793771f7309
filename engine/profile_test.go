package engine

import (
	"strings"
	"testing"

	"regexguard/syntax"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{ProfilePCRE, ProfileRE2, ProfileLinear, ProfilePOSIX} {
		p, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)
	}
	_, err := Lookup("hyperscan")
	assert.ErrorContains(t, err, `unknown profile "hyperscan"`)
}

func TestBuiltinFeatureSets(t *testing.T) {
	pcre, _ := Lookup(ProfilePCRE)
	re2, _ := Lookup(ProfileRE2)
	linear, _ := Lookup(ProfileLinear)
	posix, _ := Lookup(ProfilePOSIX)

	assert.True(t, pcre.Backtracking)
	assert.True(t, pcre.Supports(FeaturePossessive))
	assert.True(t, pcre.Supports(FeatureBackreferences))

	assert.False(t, re2.Backtracking)
	assert.True(t, re2.Supports(FeatureLazy))
	assert.False(t, re2.Supports(FeaturePossessive))
	assert.False(t, re2.Supports(FeatureBackreferences))

	assert.False(t, linear.Supports(FeatureLazy))
	assert.False(t, linear.Supports(FeatureNamedGroups))

	assert.True(t, posix.Backtracking)
	assert.True(t, posix.Supports(FeatureBackreferences))
	assert.False(t, posix.Supports(FeatureNamedGroups))
}

func TestBuiltinsSortedByName(t *testing.T) {
	all := Builtins()
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}
}

func TestWeightDefaultsToOne(t *testing.T) {
	pcre, _ := Lookup(ProfilePCRE)
	assert.Equal(t, 2.0, pcre.Weight("quantifier"))
	assert.Equal(t, 1.0, pcre.Weight("literal"))

	linear, _ := Lookup(ProfileLinear)
	assert.Equal(t, 1.0, linear.Weight("quantifier"))
}

func TestLoadProfiles(t *testing.T) {
	doc := `
profiles:
  - name: vendor-waf
    backtracking: true
    features:
      backreferences: true
      lazy-quantifiers: true
    cost_weights:
      alternation: 3.5
`
	profiles, err := LoadProfiles(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	p := profiles[0]
	assert.Equal(t, "vendor-waf", p.Name)
	assert.True(t, p.Backtracking)
	assert.True(t, p.Supports(FeatureBackreferences))
	assert.True(t, p.Supports(FeatureLazy))
	assert.False(t, p.Supports(FeatureAtomicGroups))
	assert.Equal(t, 3.5, p.Weight("alternation"))
}

func TestLoadProfilesRejectsUnnamed(t *testing.T) {
	_, err := LoadProfiles(strings.NewReader("profiles:\n  - backtracking: true\n"))
	assert.ErrorContains(t, err, "has no name")
}

func TestLoadProfilesRejectsMalformedYAML(t *testing.T) {
	_, err := LoadProfiles(strings.NewReader("profiles: [\n"))
	assert.ErrorContains(t, err, "parsing profiles")
}

func checkPattern(t *testing.T, pattern, profileName string) []Unsupported {
	t.Helper()
	ast, err := syntax.Parse(pattern, syntax.DialectPCRE)
	require.NoError(t, err)
	p, err := Lookup(profileName)
	require.NoError(t, err)
	return CheckSupport(ast, p)
}

func TestCheckSupport(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		profile   string
		construct string
	}{
		{name: "backreference on re2", pattern: `(a)\1`, profile: ProfileRE2, construct: `backreference \1`},
		{name: "possessive on re2", pattern: "a++b", profile: ProfileRE2, construct: "possessive quantifier"},
		{name: "atomic group on re2", pattern: "(?>a+)b", profile: ProfileRE2, construct: "atomic group"},
		{name: "lazy on linear", pattern: "a+?b", profile: ProfileLinear, construct: "lazy quantifier"},
		{name: "named group on posix", pattern: "(?P<x>a)", profile: ProfilePOSIX, construct: `named group "x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := checkPattern(t, tt.pattern, tt.profile)
			require.Len(t, out, 1)
			assert.Equal(t, tt.construct, out[0].Construct)
			assert.NotEmpty(t, out[0].Fallback)
		})
	}
}

func TestCheckSupportCleanOnPCRE(t *testing.T) {
	for _, p := range []string{`(a)\1`, "a++b", "(?>a+)b", "a+?b", "(?P<x>a)"} {
		assert.Empty(t, checkPattern(t, p, ProfilePCRE), "pattern %q", p)
	}
}

func TestCheckSupportReportsEveryOccurrence(t *testing.T) {
	out := checkPattern(t, "a++b++", ProfileRE2)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0].Span, out[1].Span)
}
