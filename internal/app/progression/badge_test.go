package progression

import (
	"testing"
	"time"

	"codearena/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func badge(id string, criteria model.BadgeCriteria) model.Badge {
	return model.Badge{ID: id, Name: id, Criteria: criteria}
}

func TestEvaluateBadgesByCriteriaType(t *testing.T) {
	catalog := []model.Badge{
		badge("ten-solved", model.BadgeCriteria{Type: model.CriteriaProblemsSolved, Value: 10}),
		badge("dp-adept", model.BadgeCriteria{Type: model.CriteriaTopicMastery, Value: 5, Topic: "dp"}),
		badge("hard-5", model.BadgeCriteria{Type: model.CriteriaDifficultyMastery, Value: 5, Difficulty: model.DifficultyHard}),
		badge("streak-7", model.BadgeCriteria{Type: model.CriteriaStreak, Value: 7}),
		badge("contestant", model.BadgeCriteria{Type: model.CriteriaContestParticipation, Value: 3}),
	}
	stats := model.UserStats{
		TotalSolved:          12,
		HardSolved:           5,
		MaxStreak:            6,
		ContestsParticipated: 3,
		TopicProgress:        map[string]model.TopicProgress{"dp": {Solved: 4}},
	}

	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	earned := EvaluateBadges(stats, nil, catalog, now)

	ids := make([]string, len(earned))
	for i, b := range earned {
		ids[i] = b.BadgeID
	}
	assert.ElementsMatch(t, []string{"ten-solved", "hard-5", "contestant"}, ids)
	for _, b := range earned {
		assert.Equal(t, now, b.EarnedAt)
	}
}

func TestEvaluateBadgesSkipsOwned(t *testing.T) {
	catalog := []model.Badge{
		badge("ten-solved", model.BadgeCriteria{Type: model.CriteriaProblemsSolved, Value: 10}),
	}
	stats := model.UserStats{TotalSolved: 50}

	earned := EvaluateBadges(stats, map[string]bool{"ten-solved": true}, catalog, time.Now())
	assert.Empty(t, earned)
}

func TestEvaluateBadgesUsesMaxStreakNotCurrent(t *testing.T) {
	catalog := []model.Badge{
		badge("streak-7", model.BadgeCriteria{Type: model.CriteriaStreak, Value: 7}),
	}
	// The streak was broken but the best run still counts.
	stats := model.UserStats{CurrentStreak: 1, MaxStreak: 9}

	earned := EvaluateBadges(stats, nil, catalog, time.Now())
	require.Len(t, earned, 1)
	assert.Equal(t, "streak-7", earned[0].BadgeID)
}

func TestEvaluateBadgesUnknownCriteriaNeverQualifies(t *testing.T) {
	catalog := []model.Badge{
		badge("mystery", model.BadgeCriteria{Type: "moon_phase", Value: 1}),
	}
	earned := EvaluateBadges(model.UserStats{TotalSolved: 1000}, nil, catalog, time.Now())
	assert.Empty(t, earned)
}
