package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codearena/internal/app/progression"
	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/cache"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type ContestService struct {
	contestRepo repository.ContestRepository
	userRepo    repository.UserRepository
	db          *sql.DB
	rdb         *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewContestService(
	contestRepo repository.ContestRepository,
	userRepo repository.UserRepository,
	db *sql.DB,
	rdb *redis.Client,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *ContestService {
	return &ContestService{
		contestRepo: contestRepo,
		userRepo:    userRepo,
		db:          db,
		rdb:         rdb,
		cacheTTL:    cacheTTL,
		logger:      logger.Named("contest"),
	}
}

type CreateContestRequest struct {
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

func (s *ContestService) CreateContest(ctx context.Context, req CreateContestRequest) (*model.Contest, error) {
	if req.Title == "" {
		return nil, common.Errorf("title is required: %w", common.ErrValidation)
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, common.Errorf("contest must end after it starts: %w", common.ErrValidation)
	}

	contest := &model.Contest{
		ID:       uuid.NewString(),
		Title:    req.Title,
		Slug:     slug.Make(req.Title),
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	}
	if err := s.contestRepo.CreateContest(ctx, nil, contest); err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}
	return contest, nil
}

func (s *ContestService) GetContest(ctx context.Context, contestID string) (*model.Contest, error) {
	return s.contestRepo.FindContestByID(ctx, contestID)
}

// Join registers the user for a contest. Joining is idempotent; only the
// first call counts towards contests_participated.
func (s *ContestService) Join(ctx context.Context, userID, contestID string) (*model.ContestParticipation, error) {
	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return nil, common.Errorf("contest not found: %w", err)
	}
	if time.Now().After(contest.EndsAt) {
		return nil, common.Errorf("contest already ended: %w", common.ErrForbidden)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created, err := s.contestRepo.EnsureParticipation(ctx, tx, userID, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to register participation: %w", err)
	}
	if created {
		if err := s.userRepo.IncrementContestsParticipated(ctx, tx, userID); err != nil {
			return nil, fmt.Errorf("failed to count contest participation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit participation: %w", err)
	}

	return s.contestRepo.GetParticipation(ctx, userID, contestID)
}

// GetMyParticipation returns the caller's ledger record for a contest. A
// user who never scored in the contest gets a zero-value record, not an
// error, so clients can render an empty scoreboard row.
func (s *ContestService) GetMyParticipation(ctx context.Context, userID, contestID string) (*model.ContestParticipation, error) {
	if _, err := s.contestRepo.FindContestByID(ctx, contestID); err != nil {
		return nil, common.Errorf("contest not found: %w", err)
	}

	participation, err := s.contestRepo.GetParticipation(ctx, userID, contestID)
	if errors.Is(err, common.ErrNotFound) {
		return &model.ContestParticipation{
			UserID:        userID,
			ContestID:     contestID,
			ProblemScores: []model.ProblemScore{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load participation: %w", err)
	}
	return participation, nil
}

type ContestLeaderboardResponse struct {
	ContestID string                          `json:"contest_id"`
	Entries   []model.ContestLeaderboardEntry `json:"entries"`
	Total     int                             `json:"total"`
}

func (s *ContestService) GetLeaderboard(ctx context.Context, contestID string, limit, offset int) (*ContestLeaderboardResponse, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	key := fmt.Sprintf("contest:leaderboard:%s:%d:%d", contestID, limit, offset)
	var cached ContestLeaderboardResponse
	if cache.GetJSON(ctx, s.rdb, key, &cached, s.logger) {
		return &cached, nil
	}

	if _, err := s.contestRepo.FindContestByID(ctx, contestID); err != nil {
		return nil, common.Errorf("contest not found: %w", err)
	}
	entries, total, err := s.contestRepo.GetLeaderboard(ctx, contestID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest leaderboard: %w", err)
	}

	resp := &ContestLeaderboardResponse{ContestID: contestID, Entries: entries, Total: total}
	cache.SetJSON(ctx, s.rdb, key, resp, s.cacheTTL, s.logger)
	return resp, nil
}

type ContestHistoryResponse struct {
	Participations []model.ContestParticipation `json:"participations"`
	Rating         progression.RatingBreakdown  `json:"rating"`
	RatingCategory string                       `json:"rating_category"`
}

// GetHistory returns the user's contest record with the rating recomputed
// from the full ledger. A stale cached rating on the user row is overwritten
// here, on the read path; grading never touches it.
func (s *ContestService) GetHistory(ctx context.Context, userID string) (*ContestHistoryResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	participations, err := s.contestRepo.ListParticipationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest history: %w", err)
	}

	summaries := make([]progression.ContestSummary, len(participations))
	for i, p := range participations {
		summaries[i] = progression.ContestSummary{
			TotalScore:     p.TotalScore,
			ProblemsSolved: len(p.ProblemScores),
		}
	}
	breakdown := progression.ContestRatingBreakdown(summaries)

	if breakdown.TotalRating != user.Stats.ContestRating {
		if err := s.userRepo.SetContestRating(ctx, userID, breakdown.TotalRating); err != nil {
			s.logger.Warn("failed to refresh cached contest rating",
				zap.String("user_id", userID), zap.Error(err))
		} else {
			s.logger.Info("contest rating refreshed",
				zap.String("user_id", userID),
				zap.Int("old", user.Stats.ContestRating),
				zap.Int("new", breakdown.TotalRating))
		}
	}

	return &ContestHistoryResponse{
		Participations: participations,
		Rating:         breakdown,
		RatingCategory: progression.RatingCategory(breakdown.TotalRating),
	}, nil
}
