package service

import (
	"context"
	"database/sql"
	"fmt"

	"codearena/internal/app/grader"
	"codearena/internal/app/judge"
	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	grader      *grader.Grader
	db          *sql.DB
	logger      *zap.Logger
}

func NewProblemService(problemRepo repository.ProblemRepository, g *grader.Grader, db *sql.DB, logger *zap.Logger) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		grader:      g,
		db:          db,
		logger:      logger.Named("problem"),
	}
}

type TestCaseInput struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
}

type CreateProblemRequest struct {
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	Difficulty     model.ProblemDifficulty `json:"difficulty"`
	Topics         []string                `json:"topics"`
	Points         int                     `json:"points"`
	RuntimeLimitMs int                     `json:"runtime_limit_ms"`
	MemoryLimitKb  int                     `json:"memory_limit_kb"`
	TestCases      []TestCaseInput         `json:"test_cases"`

	// Optional reference solution. When present it is graded against the
	// new test cases and creation fails unless every case passes.
	SolutionCode     string `json:"solution_code,omitempty"`
	SolutionLanguage string `json:"solution_language,omitempty"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, creatorID string, req CreateProblemRequest) (*model.Problem, error) {
	if req.Title == "" || req.Description == "" {
		return nil, common.Errorf("title and description are required: %w", common.ErrValidation)
	}
	if !req.Difficulty.Valid() {
		return nil, common.Errorf("invalid difficulty %q: %w", req.Difficulty, common.ErrValidation)
	}
	if req.Points <= 0 {
		req.Points = 10
	}
	if req.RuntimeLimitMs <= 0 {
		req.RuntimeLimitMs = 2000
	}
	if req.MemoryLimitKb <= 0 {
		req.MemoryLimitKb = 262144
	}

	problem := &model.Problem{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Slug:           slug.Make(req.Title),
		Description:    req.Description,
		Difficulty:     req.Difficulty,
		Topics:         req.Topics,
		Points:         req.Points,
		RuntimeLimitMs: req.RuntimeLimitMs,
		MemoryLimitKb:  req.MemoryLimitKb,
		CreatedByID:    &creatorID,
	}

	cases := make([]model.TestCase, len(req.TestCases))
	for i, tc := range req.TestCases {
		cases[i] = model.TestCase{
			ID:             uuid.NewString(),
			ProblemID:      &problem.ID,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			IsHidden:       tc.IsHidden,
			SortOrder:      i,
		}
	}

	if req.SolutionCode != "" {
		if !judge.Supported(req.SolutionLanguage) {
			return nil, common.Errorf("unsupported solution language %q: %w", req.SolutionLanguage, common.ErrBadRequest)
		}
		report := s.grader.Grade(ctx, req.SolutionCode, req.SolutionLanguage, cases)
		if !report.AllPassed() {
			return nil, common.Errorf("reference solution passed %d/%d cases: %w",
				report.Passed, report.Total, common.ErrValidation)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.CreateProblem(ctx, tx, problem); err != nil {
		return nil, fmt.Errorf("failed to create problem: %w", err)
	}
	if err := s.problemRepo.AddTestCases(ctx, tx, cases); err != nil {
		return nil, fmt.Errorf("failed to add test cases: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit problem: %w", err)
	}

	s.logger.Info("problem created",
		zap.String("problem_id", problem.ID),
		zap.String("slug", problem.Slug),
		zap.Int("test_cases", len(cases)))
	return problem, nil
}

// GetProblem loads a problem with its visible test cases. Admins also see
// hidden cases; everyone else only sees a published problem.
func (s *ProblemService) GetProblem(ctx context.Context, idOrSlug, role string) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemByID(ctx, idOrSlug)
	if err != nil {
		problem, err = s.problemRepo.FindProblemBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, err
	}

	isAdmin := role == model.RoleAdmin
	if !problem.IsPublished && !isAdmin {
		return nil, common.ErrNotFound
	}

	cases, err := s.problemRepo.GetTestCases(ctx, problem.ID, !isAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to load test cases: %w", err)
	}
	problem.TestCases = cases
	return problem, nil
}

type ListProblemsResponse struct {
	Problems []model.Problem `json:"problems"`
	Total    int             `json:"total"`
}

func (s *ProblemService) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, role string) (*ListProblemsResponse, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if difficulty != "" && !difficulty.Valid() {
		return nil, common.Errorf("invalid difficulty %q: %w", difficulty, common.ErrBadRequest)
	}

	onlyPublished := role != model.RoleAdmin
	problems, total, err := s.problemRepo.ListProblems(ctx, limit, offset, difficulty, onlyPublished)
	if err != nil {
		return nil, fmt.Errorf("failed to list problems: %w", err)
	}
	return &ListProblemsResponse{Problems: problems, Total: total}, nil
}

func (s *ProblemService) PublishProblem(ctx context.Context, problemID string, published bool) error {
	if _, err := s.problemRepo.FindProblemByID(ctx, problemID); err != nil {
		return err
	}
	if err := s.problemRepo.SetPublished(ctx, nil, problemID, published); err != nil {
		return fmt.Errorf("failed to update publish state: %w", err)
	}
	return nil
}
