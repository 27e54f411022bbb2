package model

// ProblemDistribution is the per-difficulty share of a user's solves, in
// whole percent.
type ProblemDistribution struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Country       string `json:"country,omitempty"`
	Rating        int    `json:"rating"`
	MaxRating     int    `json:"max_rating"`
	TotalSolved   int    `json:"total_solved"`
	CurrentStreak int    `json:"current_streak"`
	MaxStreak     int    `json:"max_streak"`
	EasySolved    int    `json:"easy_solved"`
	MediumSolved  int    `json:"medium_solved"`
	HardSolved    int    `json:"hard_solved"`

	ProblemDistribution ProblemDistribution `json:"problem_distribution"`
}
