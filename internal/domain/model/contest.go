package model

import "time"

type Contest struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Running reports whether the contest accepts scored submissions at t.
func (c *Contest) Running(t time.Time) bool {
	return !t.Before(c.StartsAt) && t.Before(c.EndsAt)
}

// ProblemScore is one problem's entry in a participation ledger. The score
// is credited once, on the first acceptance; later accepted re-submissions
// only bump SubmissionCount.
type ProblemScore struct {
	ProblemID       string `json:"problem_id"`
	Score           int    `json:"score"`
	SubmissionCount int    `json:"submission_count"`
}

// ContestParticipation is the per-(user, contest) ledger. TotalScore always
// equals the sum of ProblemScores[*].Score.
type ContestParticipation struct {
	UserID        string         `json:"user_id"`
	ContestID     string         `json:"contest_id"`
	TotalScore    int            `json:"total_score"`
	ProblemScores []ProblemScore `json:"problem_scores"`
	JoinedAt      time.Time      `json:"joined_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// SolvedProblems derives the solved set from the ledger entries.
func (p *ContestParticipation) SolvedProblems() []string {
	ids := make([]string, 0, len(p.ProblemScores))
	for _, ps := range p.ProblemScores {
		ids = append(ids, ps.ProblemID)
	}
	return ids
}

type ContestLeaderboardEntry struct {
	Rank           int       `json:"rank"`
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	TotalScore     int       `json:"total_score"`
	ProblemsSolved int       `json:"problems_solved"`
	UpdatedAt      time.Time `json:"updated_at"`
}
