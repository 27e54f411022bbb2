package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/cache"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type UserService struct {
	userRepo  repository.UserRepository
	badgeRepo repository.BadgeRepository
	rdb       *redis.Client
	cacheTTL  time.Duration
	logger    *zap.Logger
}

func NewUserService(
	userRepo repository.UserRepository,
	badgeRepo repository.BadgeRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		badgeRepo: badgeRepo,
		rdb:       rdb,
		cacheTTL:  cacheTTL,
		logger:    logger.Named("user"),
	}
}

type ProfileResponse struct {
	User           *model.User       `json:"user"`
	Badges         []model.UserBadge `json:"badges"`
	SolvedProblems []string          `json:"solved_problems"`
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*ProfileResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.HashedPassword = ""

	badges, err := s.badgeRepo.GetUserBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load badges: %w", err)
	}
	solved, err := s.userRepo.GetSolvedProblemIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load solved set: %w", err)
	}

	return &ProfileResponse{User: user, Badges: badges, SolvedProblems: solved}, nil
}

type LeaderboardResponse struct {
	Entries []model.LeaderboardEntry `json:"entries"`
}

func (s *UserService) GetLeaderboard(ctx context.Context, limit int) (*LeaderboardResponse, error) {
	if limit < 1 || limit > 200 {
		limit = 100
	}

	key := fmt.Sprintf("leaderboard:global:%d", limit)
	var cached LeaderboardResponse
	if cache.GetJSON(ctx, s.rdb, key, &cached, s.logger) {
		return &cached, nil
	}

	entries, err := s.userRepo.GetLeaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].ProblemDistribution = distribution(entries[i])
	}

	resp := &LeaderboardResponse{Entries: entries}
	cache.SetJSON(ctx, s.rdb, key, resp, s.cacheTTL, s.logger)
	return resp, nil
}

func distribution(e model.LeaderboardEntry) model.ProblemDistribution {
	if e.TotalSolved == 0 {
		return model.ProblemDistribution{}
	}
	pct := func(n int) int {
		return int(math.Round(float64(n) / float64(e.TotalSolved) * 100))
	}
	return model.ProblemDistribution{
		Easy:   pct(e.EasySolved),
		Medium: pct(e.MediumSolved),
		Hard:   pct(e.HardSolved),
	}
}
