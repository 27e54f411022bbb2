package model

type BadgeCriteriaType string

const (
	CriteriaProblemsSolved       BadgeCriteriaType = "problems_solved"
	CriteriaTopicMastery         BadgeCriteriaType = "topic_mastery"
	CriteriaDifficultyMastery    BadgeCriteriaType = "difficulty_mastery"
	CriteriaStreak               BadgeCriteriaType = "streak"
	CriteriaContestParticipation BadgeCriteriaType = "contest_participation"
)

type BadgeCriteria struct {
	Type       BadgeCriteriaType `json:"type"`
	Value      int               `json:"value"`
	Topic      string            `json:"topic,omitempty"`      // For topic_mastery
	Difficulty ProblemDifficulty `json:"difficulty,omitempty"` // For difficulty_mastery
}

// Badge is a catalog entry. The catalog is read-only to the grading engine.
type Badge struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Color       string        `json:"color"`
	Rarity      string        `json:"rarity"`
	Criteria    BadgeCriteria `json:"criteria"`
}
