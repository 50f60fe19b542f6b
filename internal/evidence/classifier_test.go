package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/medical-research-service/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		pubTypes []string
		title    string
		want     domain.EvidenceLevel
	}{
		{
			name:  "systematic review in title",
			title: "A Systematic Review of Metformin Therapy",
			want:  domain.EvidenceLevelI,
		},
		{
			name:  "meta-analysis with hyphen",
			title: "Statins and mortality: a meta-analysis",
			want:  domain.EvidenceLevelI,
		},
		{
			name:  "meta analysis with space",
			title: "Meta analysis of SGLT2 inhibitors",
			want:  domain.EvidenceLevelI,
		},
		{
			name:     "review publication type",
			pubTypes: []string{"Review"},
			title:    "Advances in diabetes care",
			want:     domain.EvidenceLevelI,
		},
		{
			name:  "randomized trial",
			title: "A Randomized Controlled Trial of Insulin Dosing",
			want:  domain.EvidenceLevelII,
		},
		{
			name:  "randomised british spelling",
			title: "A randomised trial of exercise therapy",
			want:  domain.EvidenceLevelII,
		},
		{
			name:  "rct as a standalone word",
			title: "An RCT of telehealth interventions",
			want:  domain.EvidenceLevelII,
		},
		{
			name:  "cohort study",
			title: "A prospective cohort study of dietary patterns",
			want:  domain.EvidenceLevelIII,
		},
		{
			name:  "case-control study",
			title: "A case-control analysis of statin exposure",
			want:  domain.EvidenceLevelIII,
		},
		{
			name:  "retrospective study",
			title: "Retrospective analysis of ICU admissions",
			want:  domain.EvidenceLevelIII,
		},
		{
			name:  "case report in title",
			title: "Lactic acidosis after metformin overdose: a case report",
			want:  domain.EvidenceLevelIV,
		},
		{
			name:     "case report publication type",
			pubTypes: []string{"Case Reports"},
			title:    "Unusual presentation of ketoacidosis",
			want:     domain.EvidenceLevelIV,
		},
		{
			name:  "case series",
			title: "A case series of rare adverse events",
			want:  domain.EvidenceLevelIV,
		},
		{
			name:  "no markers",
			title: "Metformin and glycemic outcomes",
			want:  domain.EvidenceLevelUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.pubTypes, tt.title))
		})
	}
}

// Priority order is a contract: higher-tier markers always win even when the
// title also contains lower-tier study design terms.
func TestClassifyPriorityOrder(t *testing.T) {
	t.Run("systematic review beats cohort", func(t *testing.T) {
		got := Classify(nil, "A systematic review of cohort studies on metformin")
		assert.Equal(t, domain.EvidenceLevelI, got)
	})

	t.Run("systematic review beats randomized", func(t *testing.T) {
		got := Classify(nil, "Systematic review of randomized controlled trials")
		assert.Equal(t, domain.EvidenceLevelI, got)
	})

	t.Run("review type beats randomized title", func(t *testing.T) {
		got := Classify([]string{"Review"}, "Randomized trials of statins revisited")
		assert.Equal(t, domain.EvidenceLevelI, got)
	})

	t.Run("randomized beats cohort", func(t *testing.T) {
		got := Classify(nil, "A randomized trial within a prospective cohort")
		assert.Equal(t, domain.EvidenceLevelII, got)
	})

	t.Run("cohort beats case report", func(t *testing.T) {
		got := Classify(nil, "A retrospective cohort with a nested case report")
		assert.Equal(t, domain.EvidenceLevelIII, got)
	})
}
