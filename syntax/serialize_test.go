package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Round-trip property: serializing a parsed pattern and re-parsing the
// output yields a structurally equivalent tree.
func TestSerializeRoundTrip(t *testing.T) {
	patterns := []string{
		"abc",
		"a|b|c",
		"(a+)+b",
		"(foo|foobar)*x",
		`[a-z0-9]+@[a-z]+\.[a-z]{2,6}`,
		"a*?",
		"a+?",
		"a*+",
		"a{3}",
		"a{2,}",
		"a{2,7}",
		"(?:ab)+c",
		"(?P<label>x+)y",
		"(?>a+)b",
		`(a)\1`,
		"^start.*end$",
		`\bword\b`,
		`\A[^\n]+\z`,
		"[^a-z]",
		`\d+\.\d{2}`,
		`\w+\s\W`,
		"a||b",
		`\*literal\+meta\?`,
		"x" + string(rune(0x00e9)) + "y",
	}
	for _, p := range patterns {
		t.Run(p, func(t *testing.T) {
			first := mustParse(t, p, DialectPCRE)
			rendered := Serialize(first)
			second, err := Parse(rendered, DialectPCRE)
			require.NoError(t, err, "serialized form %q should re-parse", rendered)
			assert.True(t, Equal(first, second),
				"round trip changed structure: %q -> %q", p, rendered)
		})
	}
}

func TestSerializeWrapsRewrittenShapes(t *testing.T) {
	// The parser never quantifies a multi-rune literal, but rewrite
	// strategies can build that shape; the serializer must group it so the
	// quantifier binds the whole run.
	q := &Quantifier{Child: &Literal{Runes: []rune("ab")}, Min: 0, Max: Unbounded, Mode: Greedy}
	assert.Equal(t, "(?:ab)*", Serialize(q))

	alts := &Concat{Nodes: []Node{
		&Literal{Runes: []rune("x")},
		&Alternation{Branches: []Node{
			&Literal{Runes: []rune("a")},
			&Literal{Runes: []rune("b")},
		}},
	}}
	assert.Equal(t, "x(?:a|b)", Serialize(alts))
}

func TestSerializeEscapesMetacharacters(t *testing.T) {
	lit := &Literal{Runes: []rune(`a.b*c\d`)}
	rendered := Serialize(lit)
	reparsed, err := Parse(rendered, DialectPCRE)
	require.NoError(t, err)
	assert.True(t, Equal(lit, reparsed), "rendered %q", rendered)
}
