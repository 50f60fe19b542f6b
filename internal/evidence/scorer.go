package evidence

import (
	"math"

	"github.com/helixir/medical-research-service/internal/domain"
)

// Composite score weights. Fixed across all sources so that composite scores
// are comparable, and documented here once.
const (
	EvidenceWeight = 0.5
	CitationWeight = 0.3
	RecencyWeight  = 0.2
)

// Scoring curve constants.
const (
	// citationSaturation is the citation count at which citationScore
	// reaches 1.0. The logarithmic curve gives diminishing returns well
	// before saturation so a single outlier cannot dominate ranking.
	citationSaturation = 1000

	// recencyHorizonYears is the age at which recencyScore bottoms out.
	recencyHorizonYears = 30

	// recencyFloor is the minimum recency score for very old dated work.
	recencyFloor = 0.1

	// missingYearScore is assigned when the publication year is unknown.
	// Low but above the floor: an undated record should not be penalized
	// as hard as a dated thirty-year-old one.
	missingYearScore = 0.3
)

// Per-tier evidence scores, monotonically decreasing from Level I.
// Unknown scores as the weakest tier.
var evidenceLevelScores = map[domain.EvidenceLevel]float64{
	domain.EvidenceLevelI:       1.0,
	domain.EvidenceLevelII:      0.85,
	domain.EvidenceLevelIII:     0.7,
	domain.EvidenceLevelIV:      0.55,
	domain.EvidenceLevelV:       0.4,
	domain.EvidenceLevelUnknown: 0.4,
}

// Scores holds the sub-scores and composite for one result, all in [0,1].
type Scores struct {
	EvidenceLevel float64
	Citation      float64
	Recency       float64
	Composite     float64
}

// Score computes the ranking scores for a result. It is a pure function:
// identical inputs always yield identical outputs.
//
// citationCount is nil when the source did not report one; publicationYear is
// zero when unknown. currentYear anchors the recency calculation so callers
// control time explicitly.
func Score(level domain.EvidenceLevel, citationCount *int, publicationYear, currentYear int) Scores {
	s := Scores{
		EvidenceLevel: evidenceLevelScores[level],
		Citation:      citationScore(citationCount),
		Recency:       recencyScore(publicationYear, currentYear),
	}
	s.Composite = EvidenceWeight*s.EvidenceLevel + CitationWeight*s.Citation + RecencyWeight*s.Recency
	return s
}

// Apply scores a result in place, deriving its evidence level first if it has
// not been classified yet.
func Apply(r *domain.SearchResult, currentYear int) {
	if r.EvidenceLevel == "" || r.EvidenceLevel == domain.EvidenceLevelUnknown {
		r.EvidenceLevel = Classify(r.PublicationTypes, r.Title)
	}
	s := Score(r.EvidenceLevel, r.CitationCount, r.PublicationYear, currentYear)
	r.EvidenceLevelScore = s.EvidenceLevel
	r.CitationScore = s.Citation
	r.RecencyScore = s.Recency
	r.CompositeScore = s.Composite
}

// citationScore maps a citation count onto [0,1] with a logarithmic curve:
// log1p(count)/log1p(saturation), clamped at 1. Monotone increasing with
// strictly diminishing marginal gain. A missing count scores zero.
func citationScore(count *int) float64 {
	if count == nil || *count <= 0 {
		return 0
	}
	score := math.Log1p(float64(*count)) / math.Log1p(float64(citationSaturation))
	return math.Min(score, 1)
}

// recencyScore decays linearly with age from 1.0 down to recencyFloor at
// recencyHorizonYears. A missing year scores missingYearScore; in-press
// records dated in the future score as current.
func recencyScore(publicationYear, currentYear int) float64 {
	if publicationYear <= 0 {
		return missingYearScore
	}
	age := currentYear - publicationYear
	if age < 0 {
		age = 0
	}
	score := 1 - float64(age)/recencyHorizonYears
	return math.Max(score, recencyFloor)
}
