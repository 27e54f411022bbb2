package progression

import "math"

// Contest rating is recomputed from a user's full participation history,
// never updated incrementally, so it is always consistent with the ledger.
const (
	BaseContestRating    = 1200
	attendanceBonusPer   = 50
	problemBonusPer      = 75
	baseScorePerContest  = 1000
	performanceBonusMax  = 150
	consistencyBonusPer  = 20
	consistencyThreshold = 5
)

// ContestSummary is the slice of a participation record the formula needs.
type ContestSummary struct {
	TotalScore     int
	ProblemsSolved int
}

type RatingBreakdown struct {
	TotalRating         int `json:"total_rating"`
	BaseRating          int `json:"base_rating"`
	AttendanceBonus     int `json:"attendance_bonus"`
	ProblemSolvingBonus int `json:"problem_solving_bonus"`
	PerformanceBonus    int `json:"performance_bonus"`
	ConsistencyBonus    int `json:"consistency_bonus"`

	ContestsAttended    int `json:"contests_attended"`
	TotalProblemsSolved int `json:"total_problems_solved"`
	AverageScore        int `json:"average_score"`
	TotalScore          int `json:"total_score"`
}

// ContestRating computes the display rating from contest history.
func ContestRating(participations []ContestSummary) int {
	return ContestRatingBreakdown(participations).TotalRating
}

// ContestRatingBreakdown computes the rating with its per-bonus components.
func ContestRatingBreakdown(participations []ContestSummary) RatingBreakdown {
	b := RatingBreakdown{BaseRating: BaseContestRating, TotalRating: BaseContestRating}
	if len(participations) == 0 {
		return b
	}

	b.ContestsAttended = len(participations)
	for _, p := range participations {
		b.TotalProblemsSolved += p.ProblemsSolved
		b.TotalScore += p.TotalScore
	}
	avgScore := float64(b.TotalScore) / float64(b.ContestsAttended)
	b.AverageScore = int(math.Round(avgScore))

	b.AttendanceBonus = b.ContestsAttended * attendanceBonusPer
	b.ProblemSolvingBonus = b.TotalProblemsSolved * problemBonusPer
	b.PerformanceBonus = int(math.Round(math.Min(avgScore/baseScorePerContest, 2) * performanceBonusMax))
	if b.ContestsAttended > consistencyThreshold {
		b.ConsistencyBonus = (b.ContestsAttended - consistencyThreshold) * consistencyBonusPer
	}

	total := b.BaseRating + b.AttendanceBonus + b.ProblemSolvingBonus + b.PerformanceBonus + b.ConsistencyBonus
	if total < BaseContestRating {
		total = BaseContestRating
	}
	b.TotalRating = total
	return b
}

// RatingCategory labels a contest rating for display.
func RatingCategory(rating int) string {
	switch {
	case rating >= 2400:
		return "Legendary"
	case rating >= 2100:
		return "Grandmaster"
	case rating >= 1900:
		return "Master"
	case rating >= 1600:
		return "Expert"
	case rating >= 1400:
		return "Specialist"
	case rating >= 1200:
		return "Beginner"
	default:
		return "Unrated"
	}
}
