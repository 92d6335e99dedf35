// Package rating implements the club's Elo variant. The margin of victory
// scales the actual outcome, so a 10-0 moves ratings further than a 10-9.
// Every rating in the system, live submissions and replays alike, goes
// through Sides; the constants live nowhere else.
package rating

import "math"

const (
	// Default is the rating every player starts at before their first match.
	Default = 1000

	// KFactor bounds how far one match can move a rating.
	KFactor = 32

	deviation   = 400
	marginScale = 10

	// WinThreshold is the score a side must reach to end the match.
	WinThreshold = 10
)

// Outcome holds the post-match ratings for all four slots plus the per-side
// deltas. Both members of a side always receive the same delta.
type Outcome struct {
	Home1, Home2 int
	Away1, Away2 int
	HomeDelta    float64
	AwayDelta    float64
}

// Expected is the logistic win expectancy of a player (or side mean) against
// an opponent rating.
func Expected(player, opponent float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-player)/deviation))
}

// actual maps the score difference onto [0,1] with the same logistic curve,
// so the outcome saturates for blowouts instead of growing without bound.
func actual(scoreDiff int) float64 {
	return 1 / (1 + math.Pow(10, -float64(scoreDiff)/marginScale))
}

func delta(side, opponent float64, scoreDiff int) float64 {
	return KFactor * (actual(scoreDiff) - Expected(side, opponent))
}

// Sides computes both sides' new ratings for one match. Side inputs are the
// arithmetic means of the two members' current ratings; each member's new
// rating is its old rating plus the side delta, rounded to the nearest
// integer exactly once, at the end.
func Sides(home1, home2, away1, away2 int, homeScore, awayScore int) Outcome {
	homeMean := float64(home1+home2) / 2
	awayMean := float64(away1+away2) / 2

	hd := delta(homeMean, awayMean, homeScore-awayScore)
	ad := delta(awayMean, homeMean, awayScore-homeScore)

	return Outcome{
		Home1:     apply(home1, hd),
		Home2:     apply(home2, hd),
		Away1:     apply(away1, ad),
		Away2:     apply(away2, ad),
		HomeDelta: hd,
		AwayDelta: ad,
	}
}

func apply(old int, d float64) int {
	return int(math.Round(float64(old) + d))
}
