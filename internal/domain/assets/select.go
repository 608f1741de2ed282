package assets

import (
	"fmt"

	"ai-shorts-factory/internal/types"
)

// Policy names the rule used to pick a file variant. Callers choose one
// explicitly; the two can disagree on the same input.
type Policy string

const (
	// PolicyScored ranks every variant with ScoreCandidate.
	PolicyScored Policy = "scored"
	// PolicyFirstMatch walks quality tiers and prefers portrait. It needs no
	// duration data.
	PolicyFirstMatch Policy = "first_match"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyScored, PolicyFirstMatch:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown selection policy %q", s)
	}
}

// SelectBest returns the highest scoring candidate. The first of several
// equal scores wins. Nil for an empty slice.
func SelectBest(candidates []types.Candidate) *types.Candidate {
	best := -1
	bestScore := 0.0
	for i, c := range candidates {
		s := ScoreCandidate(c)
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return nil
	}
	return &candidates[best]
}

var tierOrder = []types.Quality{types.QualityHD, types.QualitySD}

// SelectFirstMatch is the tier-first rule: a portrait hd file, else a
// portrait sd file, else the first file of the first non-empty tier, else
// the first candidate overall.
func SelectFirstMatch(candidates []types.Candidate) *types.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	for _, tier := range tierOrder {
		for i, c := range candidates {
			if c.Quality == tier && c.Height > c.Width {
				return &candidates[i]
			}
		}
	}
	for _, tier := range tierOrder {
		for i, c := range candidates {
			if c.Quality == tier {
				return &candidates[i]
			}
		}
	}
	return &candidates[0]
}

// Select applies the named policy.
func Select(p Policy, candidates []types.Candidate) *types.Candidate {
	if p == PolicyFirstMatch {
		return SelectFirstMatch(candidates)
	}
	return SelectBest(candidates)
}

// Pick is a chosen variant together with the result that exposed it.
type Pick struct {
	Result types.SearchResult
	File   types.Candidate
	Score  float64
}

// Flatten lists every file variant across results. Variants inherit the
// result's duration when they lack their own.
func Flatten(results []types.SearchResult) ([]types.Candidate, []int) {
	var (
		out    []types.Candidate
		owners []int
	)
	for ri, r := range results {
		for _, f := range r.Files {
			if f.Duration == nil && r.Duration > 0 {
				d := r.Duration
				f.Duration = &d
			}
			out = append(out, f)
			owners = append(owners, ri)
		}
	}
	return out, owners
}

// Choose picks one variant across all results under policy p.
func Choose(p Policy, results []types.SearchResult) (Pick, bool) {
	flat, owners := Flatten(results)
	c := Select(p, flat)
	if c == nil {
		return Pick{}, false
	}
	i := indexOf(flat, c)
	return Pick{Result: results[owners[i]], File: *c, Score: ScoreCandidate(*c)}, true
}

func indexOf(s []types.Candidate, p *types.Candidate) int {
	for i := range s {
		if &s[i] == p {
			return i
		}
	}
	return 0
}
