package report

import (
	"testing"

	"regexguard/analyze"

	"github.com/stretchr/testify/assert"
)

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		name     string
		findings []analyze.Finding
		want     Complexity
	}{
		{name: "no findings", findings: nil, want: ComplexityLinear},
		{name: "low only", findings: []analyze.Finding{{Severity: analyze.SeverityLow}}, want: ComplexityLinear},
		{name: "medium", findings: []analyze.Finding{{Severity: analyze.SeverityMedium}}, want: ComplexityPolynomial},
		{name: "high", findings: []analyze.Finding{{Severity: analyze.SeverityHigh}}, want: ComplexityPolynomial},
		{
			name: "critical dominates",
			findings: []analyze.Finding{
				{Severity: analyze.SeverityMedium},
				{Severity: analyze.SeverityCritical},
			},
			want: ComplexityExponential,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyComplexity(tt.findings))
		})
	}
}

func TestPerformanceScore(t *testing.T) {
	assert.Equal(t, 100, performanceScore(ComplexityLinear))
	assert.Equal(t, 70, performanceScore(ComplexityPolynomial))
	assert.Equal(t, 40, performanceScore(ComplexityExponential))
}
