package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codearena/internal/app/grader"
	"codearena/internal/app/judge"
	"codearena/internal/app/progression"
	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/cache"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SubmissionService orchestrates grading: it creates the pending submission,
// drives the grader, performs the single pending -> terminal transition and,
// on acceptance, applies the contest ledger and progression updates.
type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	userRepo       repository.UserRepository
	badgeRepo      repository.BadgeRepository
	contestRepo    repository.ContestRepository
	grader         *grader.Grader
	db             *sql.DB // For transactions
	rdb            *redis.Client
	lockTTL        time.Duration
	logger         *zap.Logger
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	userRepo repository.UserRepository,
	badgeRepo repository.BadgeRepository,
	contestRepo repository.ContestRepository,
	g *grader.Grader,
	db *sql.DB,
	rdb *redis.Client,
	lockTTL time.Duration,
	logger *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		userRepo:       userRepo,
		badgeRepo:      badgeRepo,
		contestRepo:    contestRepo,
		grader:         g,
		db:             db,
		rdb:            rdb,
		lockTTL:        lockTTL,
		logger:         logger.Named("submission"),
	}
}

type SubmitRequest struct {
	ProblemID string  `json:"problem_id"`
	ContestID *string `json:"contest_id,omitempty"`
	Language  string  `json:"language"`
	Code      string  `json:"code"`
}

type SubmitResponse struct {
	Submission  *model.Submission      `json:"submission"`
	Status      model.SubmissionStatus `json:"status"`
	Score       int                    `json:"score"`
	PassedTests int                    `json:"passed_tests"`
	TotalTests  int                    `json:"total_tests"`

	// First-solve only; empty and zero on re-solves and rejections.
	Achievements []string          `json:"achievements"`
	RatingChange int               `json:"rating_change"`
	NewStats     *model.UserStats  `json:"new_stats,omitempty"`
	NewBadges    []model.UserBadge `json:"new_badges,omitempty"`

	ContestScore *model.ContestParticipation `json:"contest_score,omitempty"`

	// Set when the verdict was recorded but the gamification bookkeeping
	// failed to persist. The verdict stands; the profile catches up later.
	ProgressionDelayed bool `json:"progression_delayed,omitempty"`
}

type TrialCaseResult struct {
	Passed         bool   `json:"passed"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Output         string `json:"output"`
	Error          string `json:"error,omitempty"`
	RuntimeMs      int    `json:"runtime_ms"`
}

type TrialResponse struct {
	Results []TrialCaseResult `json:"results"`
}

// RunTrial grades the code against the problem's visible test cases only.
// Nothing is persisted; the caller gets per-case diagnostics.
func (s *SubmissionService) RunTrial(ctx context.Context, userID string, req SubmitRequest) (*TrialResponse, error) {
	problem, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	cases, err := s.problemRepo.GetTestCases(ctx, problem.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load visible test cases: %w", err)
	}

	report := s.grader.Grade(ctx, req.Code, req.Language, cases)

	resp := &TrialResponse{Results: make([]TrialCaseResult, len(report.Cases))}
	for i, c := range report.Cases {
		resp.Results[i] = TrialCaseResult{
			Passed:         c.Passed(),
			Input:          c.TestCase.Input,
			ExpectedOutput: c.TestCase.ExpectedOutput,
			Output:         c.Output,
			Error:          c.Error,
			RuntimeMs:      c.RuntimeMs,
		}
	}
	return resp, nil
}

// Submit grades the code against the problem's full test case set and
// records the verdict. The status transition is write-once; the accepted
// path additionally runs the contest ledger and, on a first solve, the
// progression and badge updates.
func (s *SubmissionService) Submit(ctx context.Context, userID string, req SubmitRequest) (*SubmitResponse, error) {
	problem, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.ContestID != nil {
		contest, err := s.contestRepo.FindContestByID(ctx, *req.ContestID)
		if err != nil {
			return nil, common.Errorf("contest not found: %w", err)
		}
		if !contest.Running(time.Now()) {
			return nil, common.Errorf("contest is not running: %w", common.ErrForbidden)
		}
	}

	// One in-flight grading per (user, problem). Closes the double-click
	// window before it ever reaches the database.
	lock := cache.NewMutex(s.rdb, "submit:"+userID+":"+problem.ID, s.lockTTL)
	acquired, err := lock.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire submit lock: %w", err)
	}
	if !acquired {
		return nil, common.ErrSubmitInFlight
	}
	defer lock.Unlock(context.WithoutCancel(ctx))

	submission := &model.Submission{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProblemID: problem.ID,
		ContestID: req.ContestID,
		Code:      req.Code,
		Language:  req.Language,
		Status:    model.StatusPending,
	}
	if err := s.submissionRepo.CreateSubmission(ctx, nil, submission); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	cases, err := s.problemRepo.GetTestCases(ctx, problem.ID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load test cases: %w", err)
	}

	report := s.grader.Grade(ctx, req.Code, req.Language, cases)
	verdict := report.Verdict()

	if err := s.recordVerdict(ctx, submission, report, verdict); err != nil {
		return nil, err
	}
	submission.Status = verdict
	submission.Score = report.Score()
	submission.RuntimeMs = report.MaxRuntimeMs()

	resp := &SubmitResponse{
		Submission:   submission,
		Status:       verdict,
		Score:        submission.Score,
		PassedTests:  report.Passed,
		TotalTests:   report.Total,
		Achievements: []string{},
	}
	if verdict != model.StatusAccepted {
		return resp, nil
	}

	if err := s.applyAccepted(ctx, userID, problem, submission, resp); err != nil {
		// The verdict is already durable; gamification is reported as
		// delayed instead of failing the submission.
		s.logger.Error("post-verdict bookkeeping failed",
			zap.String("submission_id", submission.ID),
			zap.String("user_id", userID),
			zap.Error(err))
		*resp = SubmitResponse{
			Submission:         submission,
			Status:             verdict,
			Score:              submission.Score,
			PassedTests:        report.Passed,
			TotalTests:         report.Total,
			Achievements:       []string{},
			ProgressionDelayed: true,
		}
	}
	return resp, nil
}

func (s *SubmissionService) validate(ctx context.Context, req SubmitRequest) (*model.Problem, error) {
	if req.Code == "" {
		return nil, common.Errorf("code must not be empty: %w", common.ErrValidation)
	}
	if !judge.Supported(req.Language) {
		return nil, common.Errorf("unsupported language %q: %w", req.Language, common.ErrBadRequest)
	}
	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}
	if !problem.IsPublished {
		return nil, common.Errorf("problem is not published: %w", common.ErrForbidden)
	}
	return problem, nil
}

// recordVerdict performs the pending -> terminal transition together with
// the per-case results, atomically.
func (s *SubmissionService) recordVerdict(ctx context.Context, submission *model.Submission, report grader.Report, verdict model.SubmissionStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.submissionRepo.FinalizeSubmission(ctx, tx, submission.ID, verdict, report.Score(), report.MaxRuntimeMs()); err != nil {
		return fmt.Errorf("failed to finalize submission: %w", err)
	}

	results := make([]model.TestCaseResult, len(report.Cases))
	for i, c := range report.Cases {
		results[i] = model.TestCaseResult{
			ID:           uuid.NewString(),
			SubmissionID: submission.ID,
			TestCaseID:   c.TestCase.ID,
			Status:       c.Status,
			Output:       c.Output,
			Error:        c.Error,
			RuntimeMs:    c.RuntimeMs,
		}
	}
	if err := s.submissionRepo.CreateTestCaseResults(ctx, tx, results); err != nil {
		return fmt.Errorf("failed to persist test case results: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit verdict: %w", err)
	}
	return nil
}

// applyAccepted runs the accepted-path bookkeeping in one transaction:
// contest ledger first, then the first-solve gate, then progression and
// badges. The conditional inserts in the ledger and the solved-set make the
// whole path safe against a concurrent acceptance of the same problem.
func (s *SubmissionService) applyAccepted(ctx context.Context, userID string, problem *model.Problem, submission *model.Submission, resp *SubmitResponse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if submission.ContestID != nil {
		if err := s.creditContest(ctx, tx, userID, *submission.ContestID, problem); err != nil {
			return err
		}
	}

	firstSolve, err := s.applyFirstSolve(ctx, tx, userID, problem, submission, resp)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accepted-path updates: %w", err)
	}

	if submission.ContestID != nil {
		// Ledger snapshot for the response; a read, so outside the tx.
		participation, err := s.contestRepo.GetParticipation(ctx, userID, *submission.ContestID)
		if err != nil {
			s.logger.Warn("failed to load contest participation for response",
				zap.String("contest_id", *submission.ContestID), zap.Error(err))
		} else {
			resp.ContestScore = participation
		}
	}

	if firstSolve {
		s.logger.Info("first solve credited",
			zap.String("user_id", userID),
			zap.String("problem_id", problem.ID),
			zap.Int("rating_change", resp.RatingChange))
	}
	return nil
}

func (s *SubmissionService) creditContest(ctx context.Context, tx *sql.Tx, userID, contestID string, problem *model.Problem) error {
	created, err := s.contestRepo.EnsureParticipation(ctx, tx, userID, contestID)
	if err != nil {
		return fmt.Errorf("failed to ensure contest participation: %w", err)
	}
	if created {
		if err := s.userRepo.IncrementContestsParticipated(ctx, tx, userID); err != nil {
			return fmt.Errorf("failed to count contest participation: %w", err)
		}
	}

	points := problem.Points
	if points <= 0 {
		points = 10
	}
	if _, err := s.contestRepo.CreditSolve(ctx, tx, userID, contestID, problem.ID, points); err != nil {
		return fmt.Errorf("failed to credit contest solve: %w", err)
	}
	return nil
}

func (s *SubmissionService) applyFirstSolve(ctx context.Context, tx *sql.Tx, userID string, problem *model.Problem, submission *model.Submission, resp *SubmitResponse) (bool, error) {
	// Fast path: the submission log already shows an earlier acceptance,
	// so the solved-set insert below cannot win.
	prior, err := s.submissionRepo.HasPriorAccepted(ctx, userID, problem.ID, submission.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check prior acceptances: %w", err)
	}
	if prior {
		return false, nil
	}

	// Row lock orders concurrent first-solve attempts for the same user,
	// then the conditional insert decides the single winner.
	user, err := s.userRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to lock user row: %w", err)
	}

	won, err := s.userRepo.TryMarkSolved(ctx, tx, userID, problem.ID, submission.ID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark problem solved: %w", err)
	}
	if !won {
		return false, nil
	}

	outcome := progression.ApplySolve(user.Stats, user.Profile, progression.Solve{
		ProblemTitle: problem.Title,
		Difficulty:   problem.Difficulty,
		Topics:       problem.Topics,
		Day:          model.DateOf(time.Now().UTC()),
	})
	if err := s.userRepo.UpdateProgression(ctx, tx, userID, outcome.Stats, outcome.Profile); err != nil {
		return false, fmt.Errorf("failed to persist progression: %w", err)
	}

	achievements := outcome.Achievements
	attempts, err := s.submissionRepo.CountForUserProblem(ctx, userID, problem.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count attempts: %w", err)
	}
	if attempts == 1 {
		achievements = append(achievements, "First try success!")
	}

	newBadges, err := s.evaluateBadges(ctx, tx, userID, outcome.Stats)
	if err != nil {
		return false, err
	}

	resp.Achievements = achievements
	resp.RatingChange = outcome.RatingDelta
	resp.NewStats = &outcome.Stats
	resp.NewBadges = newBadges
	return true, nil
}

func (s *SubmissionService) evaluateBadges(ctx context.Context, tx *sql.Tx, userID string, stats model.UserStats) ([]model.UserBadge, error) {
	catalog, err := s.badgeRepo.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, nil
	}

	ownedBadges, err := s.badgeRepo.GetUserBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owned badges: %w", err)
	}
	owned := make(map[string]bool, len(ownedBadges))
	for _, b := range ownedBadges {
		owned[b.BadgeID] = true
	}

	earned := progression.EvaluateBadges(stats, owned, catalog, time.Now().UTC())
	if len(earned) == 0 {
		return nil, nil
	}
	if err := s.badgeRepo.AddUserBadges(ctx, tx, userID, earned); err != nil {
		return nil, fmt.Errorf("failed to persist badges: %w", err)
	}

	byID := make(map[string]*model.Badge, len(catalog))
	for i := range catalog {
		byID[catalog[i].ID] = &catalog[i]
	}
	for i := range earned {
		earned[i].Badge = byID[earned[i].BadgeID]
	}
	return earned, nil
}

// GetSubmission returns one submission with its per-case results. Users see
// their own submissions; admins see all.
func (s *SubmissionService) GetSubmission(ctx context.Context, userID, role, submissionID string) (*model.Submission, []model.TestCaseResult, error) {
	submission, err := s.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if submission.UserID != userID && role != model.RoleAdmin {
		return nil, nil, common.ErrForbidden
	}
	results, err := s.submissionRepo.GetTestCaseResults(ctx, submissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load test case results: %w", err)
	}
	return submission, results, nil
}

func (s *SubmissionService) ListMySubmissions(ctx context.Context, userID string, limit, offset int) ([]model.Submission, int, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.submissionRepo.ListForUser(ctx, userID, limit, offset)
}
