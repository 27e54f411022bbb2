package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Rank tiers, ordered. Promotion is a pure function of total solved count
// and lives in the progression package.
const (
	RankBeginner     = "Beginner"
	RankNovice       = "Novice"
	RankIntermediate = "Intermediate"
	RankAdvanced     = "Advanced"
	RankExpert       = "Expert"
	RankMaster       = "Master"
	RankGrandmaster  = "Grandmaster"
)

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Profile UserProfile `json:"profile"`
	Stats   UserStats   `json:"stats"`
}

type UserProfile struct {
	Name      string `json:"name,omitempty"`
	Country   string `json:"country,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Rating    int    `json:"rating"`
	MaxRating int    `json:"max_rating"`
	Rank      string `json:"rank"`
}

// TopicProgress tracks solves per problem topic, keyed by topic name.
type TopicProgress struct {
	Solved int `json:"solved"`
	Total  int `json:"total"`
}

type UserStats struct {
	TotalSolved   int    `json:"total_solved"`
	EasySolved    int    `json:"easy_solved"`
	MediumSolved  int    `json:"medium_solved"`
	HardSolved    int    `json:"hard_solved"`
	CurrentStreak int    `json:"current_streak"`
	MaxStreak     int    `json:"max_streak"`
	LastSolvedOn  *Date  `json:"last_solved_on,omitempty"` // Calendar day, not instant
	TopicProgress map[string]TopicProgress `json:"topic_progress,omitempty"`

	ContestsParticipated int `json:"contests_participated"`
	ContestRating        int `json:"contest_rating"`
}

// UserBadge is one earned badge. Earned badges are never revoked.
type UserBadge struct {
	BadgeID  string    `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`

	Badge *Badge `json:"badge,omitempty"` // For display
}
