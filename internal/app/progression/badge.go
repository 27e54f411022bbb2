package progression

import (
	"time"

	"codearena/internal/domain/model"
)

// EvaluateBadges returns the badges from the catalog that the post-update
// stats snapshot newly qualifies for. Already-owned badges are skipped
// regardless of criteria, so the earned set only ever grows.
func EvaluateBadges(stats model.UserStats, owned map[string]bool, catalog []model.Badge, now time.Time) []model.UserBadge {
	var earned []model.UserBadge
	for _, badge := range catalog {
		if owned[badge.ID] {
			continue
		}
		if qualifies(stats, badge.Criteria) {
			earned = append(earned, model.UserBadge{BadgeID: badge.ID, EarnedAt: now})
		}
	}
	return earned
}

func qualifies(stats model.UserStats, c model.BadgeCriteria) bool {
	switch c.Type {
	case model.CriteriaProblemsSolved:
		return stats.TotalSolved >= c.Value
	case model.CriteriaTopicMastery:
		return stats.TopicProgress[c.Topic].Solved >= c.Value
	case model.CriteriaDifficultyMastery:
		switch c.Difficulty {
		case model.DifficultyEasy:
			return stats.EasySolved >= c.Value
		case model.DifficultyMedium:
			return stats.MediumSolved >= c.Value
		case model.DifficultyHard:
			return stats.HardSolved >= c.Value
		}
		return false
	case model.CriteriaStreak:
		return stats.MaxStreak >= c.Value
	case model.CriteriaContestParticipation:
		return stats.ContestsParticipated >= c.Value
	}
	return false
}
