package matching

import (
	"math"

	"github.com/jwalitptl/identito-api/internal/model"
)

// Weights of the four independent trait checks. Names earn partial credit
// when similar but not identical; dates are never fuzzy-matched.
const (
	weightFamilyName = 15
	weightGivenName  = 15
	weightBirthDate  = 40
	weightSex        = 10
	weightBirthPlace = 20

	partialNameCredit = 10

	exactThreshold = 95
)

// Config holds the policy-driven matcher thresholds.
type Config struct {
	ProbableThreshold   int
	PossibleFloor       int
	SimilarityThreshold float64
}

// ConfigFromPolicy derives matcher thresholds from the facility policy.
func ConfigFromPolicy(p *model.IdentitovigilancePolicy) Config {
	return Config{
		ProbableThreshold:   p.ProbableThreshold,
		PossibleFloor:       p.PossibleFloor,
		SimilarityThreshold: p.SimilarityThreshold,
	}
}

// Result is the outcome of comparing two trait sets.
type Result struct {
	Score          int
	Classification model.MatchClassification
	MatchedTraits  []string
	Differences    []string
}

// Matcher computes 0-100 match scores between trait sets.
type Matcher struct {
	cfg Config
}

func NewMatcher(cfg Config) *Matcher {
	if cfg.ProbableThreshold <= 0 {
		cfg.ProbableThreshold = 80
	}
	if cfg.PossibleFloor <= 0 {
		cfg.PossibleFloor = 50
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.8
	}
	return &Matcher{cfg: cfg}
}

// Match scores two trait sets. A trait absent on both sides drops out of the
// denominator; a trait present on only one side earns zero but keeps its
// weight in play. The final score is round(100 * earned / maxPossible).
func (m *Matcher) Match(a, b model.PatientTraits) Result {
	return m.MatchWithAliases(a, b, nil)
}

// MatchWithAliases additionally compares a's family name against b's alias
// names and keeps the best family-name score.
func (m *Matcher) MatchWithAliases(a, b model.PatientTraits, bAliases []*model.PatientAlias) Result {
	var earned, maxPossible float64
	res := Result{}

	// Family name, best of b's birth name and aliases.
	if a.BirthFamilyName != "" || b.BirthFamilyName != "" {
		maxPossible += weightFamilyName
		credit, matched := m.nameCredit(a.BirthFamilyName, b.BirthFamilyName, weightFamilyName)
		for _, alias := range bAliases {
			aliasCredit, aliasMatched := m.nameCredit(a.BirthFamilyName, alias.FamilyName, weightFamilyName)
			if aliasCredit > credit {
				credit, matched = aliasCredit, aliasMatched
			}
		}
		earned += credit
		if matched {
			res.MatchedTraits = append(res.MatchedTraits, "birth_family_name")
		} else {
			res.Differences = append(res.Differences, "birth_family_name")
		}
	}

	if a.BirthGivenName != "" || b.BirthGivenName != "" {
		maxPossible += weightGivenName
		credit, matched := m.nameCredit(a.BirthGivenName, b.BirthGivenName, weightGivenName)
		earned += credit
		if matched {
			res.MatchedTraits = append(res.MatchedTraits, "birth_given_name")
		} else {
			res.Differences = append(res.Differences, "birth_given_name")
		}
	}

	// Date of birth: all-or-nothing.
	if a.BirthDate != nil || b.BirthDate != nil {
		maxPossible += weightBirthDate
		if a.BirthDate != nil && b.BirthDate != nil && sameDate(a, b) {
			earned += weightBirthDate
			res.MatchedTraits = append(res.MatchedTraits, "birth_date")
		} else {
			res.Differences = append(res.Differences, "birth_date")
		}
	}

	if a.Sex != "" || b.Sex != "" {
		maxPossible += weightSex
		if a.Sex != "" && a.Sex == b.Sex {
			earned += weightSex
			res.MatchedTraits = append(res.MatchedTraits, "sex")
		} else {
			res.Differences = append(res.Differences, "sex")
		}
	}

	if a.BirthPlaceCode != "" || b.BirthPlaceCode != "" {
		maxPossible += weightBirthPlace
		if a.BirthPlaceCode != "" && a.BirthPlaceCode == b.BirthPlaceCode {
			earned += weightBirthPlace
			res.MatchedTraits = append(res.MatchedTraits, "birth_place_code")
		} else {
			res.Differences = append(res.Differences, "birth_place_code")
		}
	}

	if maxPossible == 0 {
		res.Classification = model.MatchNone
		return res
	}

	res.Score = int(math.Round(100 * earned / maxPossible))
	res.Classification = m.Classify(res.Score)
	return res
}

// Classify buckets a 0-100 score. Below the possible floor the pair is not
// surfaced as a candidate at all.
func (m *Matcher) Classify(score int) model.MatchClassification {
	switch {
	case score >= exactThreshold:
		return model.MatchExact
	case score >= m.cfg.ProbableThreshold:
		return model.MatchProbable
	case score >= m.cfg.PossibleFloor:
		return model.MatchPossible
	default:
		return model.MatchNone
	}
}

func (m *Matcher) nameCredit(a, b string, full float64) (float64, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	if Normalize(a) == Normalize(b) {
		return full, true
	}
	if Similarity(a, b) >= m.cfg.SimilarityThreshold {
		return partialNameCredit, true
	}
	return 0, false
}

func sameDate(a, b model.PatientTraits) bool {
	ay, am, ad := a.BirthDate.Date()
	by, bm, bd := b.BirthDate.Date()
	return ay == by && am == bm && ad == bd
}
