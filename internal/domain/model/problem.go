package model

import "time"

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "Easy"
	DifficultyMedium ProblemDifficulty = "Medium"
	DifficultyHard   ProblemDifficulty = "Hard"
)

func (d ProblemDifficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Problem struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Slug           string            `json:"slug"`
	Description    string            `json:"description"`
	Difficulty     ProblemDifficulty `json:"difficulty"`
	Topics         []string          `json:"topics,omitempty"`
	Points         int               `json:"points"` // Contest points; defaults to 10
	IsPublished    bool              `json:"is_published"`
	RuntimeLimitMs int               `json:"runtime_limit_ms"`
	MemoryLimitKb  int               `json:"memory_limit_kb"`
	CreatedByID    *string           `json:"created_by_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`

	TestCases []TestCase `json:"test_cases,omitempty"` // Admin only view
}

// TestCase belongs to exactly one of a problem or a contest, never both.
// Hidden cases are used for scoring only; visible ones also drive trial runs.
type TestCase struct {
	ID             string    `json:"id"`
	ProblemID      *string   `json:"problem_id,omitempty"`
	ContestID      *string   `json:"contest_id,omitempty"`
	Input          string    `json:"input"`
	ExpectedOutput string    `json:"expected_output"`
	IsHidden       bool      `json:"is_hidden"`
	SortOrder      int       `json:"sort_order"`
	CreatedAt      time.Time `json:"created_at"`
}
