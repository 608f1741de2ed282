package assets

import (
	"math"

	"ai-shorts-factory/internal/types"
)

// portraitRatio is the height/width of a 1080x1920 frame.
const portraitRatio = 16.0 / 9.0

// ScoreCandidate rates a file variant for use as a vertical background.
// Every term is independent; the result lies in [0, 100].
func ScoreCandidate(c types.Candidate) float64 {
	var score float64

	if c.Height > c.Width {
		score += 40
		if c.Width > 0 {
			ratio := float64(c.Height) / float64(c.Width)
			score += math.Max(0, 10-5*math.Abs(ratio-portraitRatio))
		}
	}

	switch c.Quality {
	case types.QualityHD:
		score += 20
	case types.QualitySD:
		score += 10
	}

	switch {
	case c.Height >= 1080:
		score += 15
	case c.Height >= 720:
		score += 10
	case c.Height >= 480:
		score += 5
	}

	if c.Duration != nil {
		score += durationBonus(*c.Duration)
	}
	return score
}

// durationBonus favors clips that cover a short without looping much.
func durationBonus(d float64) float64 {
	switch {
	case d >= 15 && d <= 60:
		return 15
	case d >= 10 && d <= 90:
		return 10
	case d >= 5 && d <= 120:
		return 5
	default:
		return 0
	}
}
