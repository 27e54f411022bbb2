// Package progression holds the pure gamification arithmetic: the per-solve
// state transition, the badge decision procedure and the contest rating
// formula. Nothing in here does I/O; callers pass snapshots in and persist
// the results.
package progression

import (
	"fmt"

	"codearena/internal/domain/model"
)

// Rating deltas per difficulty. Flat, not Elo-style; rating never decreases.
const (
	RatingDeltaEasy   = 10
	RatingDeltaMedium = 20
	RatingDeltaHard   = 30
)

var solvedMilestones = []struct {
	at   int
	text string
}{
	{5, "Getting started! 5 problems solved!"},
	{10, "First 10 problems solved!"},
	{25, "Quarter century! 25 problems solved!"},
	{50, "50 problems solved milestone!"},
	{100, "100 problems solved - Expert level!"},
	{200, "200 problems solved - Master level!"},
}

var ratingMilestones = []struct {
	at   int
	text string
}{
	{1500, "Reached 1500 rating!"},
	{1800, "Reached 1800 rating!"},
	{2000, "Reached 2000 rating - Expert!"},
	{2200, "Reached 2200 rating - Master!"},
}

// RatingDelta returns the flat rating award for solving a problem of the
// given difficulty.
func RatingDelta(difficulty model.ProblemDifficulty) int {
	switch difficulty {
	case model.DifficultyEasy:
		return RatingDeltaEasy
	case model.DifficultyMedium:
		return RatingDeltaMedium
	case model.DifficultyHard:
		return RatingDeltaHard
	}
	return 0
}

// RankFor maps a post-solve total solved count onto a rank tier.
func RankFor(totalSolved int) string {
	switch {
	case totalSolved < 11:
		return model.RankBeginner
	case totalSolved < 26:
		return model.RankNovice
	case totalSolved < 51:
		return model.RankIntermediate
	case totalSolved < 101:
		return model.RankAdvanced
	case totalSolved < 201:
		return model.RankExpert
	case totalSolved < 501:
		return model.RankMaster
	default:
		return model.RankGrandmaster
	}
}

// Solve describes the problem being credited.
type Solve struct {
	ProblemTitle string
	Difficulty   model.ProblemDifficulty
	Topics       []string
	Day          model.Date
}

// Outcome carries the post-solve state plus everything the response needs.
type Outcome struct {
	Stats        model.UserStats
	Profile      model.UserProfile
	RatingDelta  int
	Achievements []string
	Promoted     bool
}

// ApplySolve is the state transition for a user's first-ever acceptance of a
// problem. It must not be invoked for re-solves; the caller owns that gate.
// Milestone tokens compare pre- and post-update values so each threshold
// fires exactly once, at the transition.
func ApplySolve(stats model.UserStats, profile model.UserProfile, solve Solve) Outcome {
	out := Outcome{
		RatingDelta:  RatingDelta(solve.Difficulty),
		Achievements: []string{"Solved " + solve.ProblemTitle},
	}
	out.Achievements = append(out.Achievements,
		fmt.Sprintf("+%d rating points (%s problem)", out.RatingDelta, solve.Difficulty))

	// Streak: consecutive calendar days extend, a gap resets, a same-day
	// solve keeps the streak unchanged.
	newStreak := stats.CurrentStreak
	if stats.LastSolvedOn == nil {
		newStreak = 1
	} else {
		switch gap := stats.LastSolvedOn.DaysUntil(solve.Day); {
		case gap == 1:
			newStreak++
		case gap > 1:
			newStreak = 1
		}
	}
	if newStreak > 1 && newStreak != stats.CurrentStreak {
		out.Achievements = append(out.Achievements, fmt.Sprintf("%d day streak!", newStreak))
	}
	if newStreak >= 7 && stats.CurrentStreak < 7 {
		out.Achievements = append(out.Achievements, "Week warrior! 7+ day streak!")
	}
	if newStreak >= 30 && stats.CurrentStreak < 30 {
		out.Achievements = append(out.Achievements, "Streak master! 30+ day streak!")
	}

	newTotal := stats.TotalSolved + 1
	for _, m := range solvedMilestones {
		if newTotal >= m.at && stats.TotalSolved < m.at {
			out.Achievements = append(out.Achievements, m.text)
		}
	}

	newEasy, newMedium, newHard := stats.EasySolved, stats.MediumSolved, stats.HardSolved
	switch solve.Difficulty {
	case model.DifficultyEasy:
		newEasy++
		if newEasy >= 20 && stats.EasySolved < 20 {
			out.Achievements = append(out.Achievements, "Easy master! 20 easy problems solved!")
		}
	case model.DifficultyMedium:
		newMedium++
		if newMedium >= 15 && stats.MediumSolved < 15 {
			out.Achievements = append(out.Achievements, "Medium conqueror! 15 medium problems solved!")
		}
	case model.DifficultyHard:
		newHard++
		if newHard >= 10 && stats.HardSolved < 10 {
			out.Achievements = append(out.Achievements, "Hard hero! 10 hard problems solved!")
		}
	}

	newRating := profile.Rating + out.RatingDelta
	for _, m := range ratingMilestones {
		if newRating >= m.at && profile.Rating < m.at {
			out.Achievements = append(out.Achievements, m.text)
		}
	}

	newRank := RankFor(newTotal)
	if newRank != profile.Rank {
		out.Promoted = true
		out.Achievements = append(out.Achievements, "Promoted to "+newRank+"!")
	}

	// Assemble the post-solve snapshots.
	out.Stats = stats
	out.Stats.TotalSolved = newTotal
	out.Stats.EasySolved = newEasy
	out.Stats.MediumSolved = newMedium
	out.Stats.HardSolved = newHard
	out.Stats.CurrentStreak = newStreak
	if newStreak > out.Stats.MaxStreak {
		out.Stats.MaxStreak = newStreak
	}
	day := solve.Day
	out.Stats.LastSolvedOn = &day
	out.Stats.TopicProgress = bumpTopics(stats.TopicProgress, solve.Topics)

	out.Profile = profile
	out.Profile.Rating = newRating
	if newRating > out.Profile.MaxRating {
		out.Profile.MaxRating = newRating
	}
	out.Profile.Rank = newRank

	return out
}

func bumpTopics(progress map[string]model.TopicProgress, topics []string) map[string]model.TopicProgress {
	if len(topics) == 0 {
		return progress
	}
	next := make(map[string]model.TopicProgress, len(progress)+len(topics))
	for k, v := range progress {
		next[k] = v
	}
	for _, topic := range topics {
		p := next[topic]
		p.Solved++
		next[topic] = p
	}
	return next
}
