package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codearena/internal/common"
	"codearena/internal/domain/model"
)

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	// FinalizeSubmission performs the single pending -> terminal transition.
	// Returns ErrConflict when the submission was already graded; the status
	// column is write-once.
	FinalizeSubmission(ctx context.Context, tx *sql.Tx, submissionID string, status model.SubmissionStatus, score, runtimeMs int) error

	CreateTestCaseResults(ctx context.Context, tx *sql.Tx, results []model.TestCaseResult) error
	GetTestCaseResults(ctx context.Context, submissionID string) ([]model.TestCaseResult, error)

	// HasPriorAccepted reports whether the user has another accepted
	// submission for the problem, excluding the given submission.
	HasPriorAccepted(ctx context.Context, userID, problemID, excludeSubmissionID string) (bool, error)
	CountForUserProblem(ctx context.Context, userID, problemID string) (int, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, int, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, s *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, contest_id, code, language, status, score, runtime_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := pick(r.db, tx).ExecContext(ctx, query,
		s.ID, s.UserID, s.ProblemID, s.ContestID, s.Code, s.Language, s.Status, s.Score, s.RuntimeMs)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT s.id, s.user_id, s.problem_id, s.contest_id, s.code, s.language,
	                 s.status, s.score, s.runtime_ms, s.submitted_at, u.username, p.title
	          FROM submissions s
	          JOIN users u ON s.user_id = u.id
	          JOIN problems p ON s.problem_id = p.id
	          WHERE s.id = $1`
	s := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.ProblemID, &s.ContestID, &s.Code, &s.Language,
		&s.Status, &s.Score, &s.RuntimeMs, &s.SubmittedAt, &s.UserUsername, &s.ProblemTitle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) FinalizeSubmission(ctx context.Context, tx *sql.Tx, submissionID string, status model.SubmissionStatus, score, runtimeMs int) error {
	query := `UPDATE submissions SET status = $1, score = $2, runtime_ms = $3
	          WHERE id = $4 AND status = $5`
	res, err := pick(r.db, tx).ExecContext(ctx, query, status, score, runtimeMs, submissionID, model.StatusPending)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.FinalizeSubmission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.FinalizeSubmission rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission %s already graded: %w", submissionID, common.ErrConflict)
	}
	return nil
}

func (r *pgSubmissionRepository) CreateTestCaseResults(ctx context.Context, tx *sql.Tx, results []model.TestCaseResult) error {
	if len(results) == 0 {
		return nil
	}
	query := `INSERT INTO test_case_results (id, submission_id, test_case_id, status, output, error, runtime_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, res := range results {
		_, err := pick(r.db, tx).ExecContext(ctx, query,
			res.ID, res.SubmissionID, res.TestCaseID, res.Status, res.Output, res.Error, res.RuntimeMs)
		if err != nil {
			return fmt.Errorf("pgSubmissionRepository.CreateTestCaseResults exec for %s: %w", res.ID, err)
		}
	}
	return nil
}

func (r *pgSubmissionRepository) GetTestCaseResults(ctx context.Context, submissionID string) ([]model.TestCaseResult, error) {
	query := `SELECT id, submission_id, test_case_id, status, output, error, runtime_ms, created_at
	          FROM test_case_results WHERE submission_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GetTestCaseResults: %w", err)
	}
	defer rows.Close()

	var results []model.TestCaseResult
	for rows.Next() {
		var res model.TestCaseResult
		if err := rows.Scan(&res.ID, &res.SubmissionID, &res.TestCaseID, &res.Status,
			&res.Output, &res.Error, &res.RuntimeMs, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.GetTestCaseResults scan: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *pgSubmissionRepository) HasPriorAccepted(ctx context.Context, userID, problemID, excludeSubmissionID string) (bool, error) {
	query := `SELECT EXISTS (
	            SELECT 1 FROM submissions
	            WHERE user_id = $1 AND problem_id = $2 AND status = $3 AND id <> $4
	          )`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, problemID, model.StatusAccepted, excludeSubmissionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.HasPriorAccepted: %w", err)
	}
	return exists, nil
}

func (r *pgSubmissionRepository) CountForUserProblem(ctx context.Context, userID, problemID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE user_id = $1 AND problem_id = $2`,
		userID, problemID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountForUserProblem: %w", err)
	}
	return count, nil
}

func (r *pgSubmissionRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUser count: %w", err)
	}

	query := `SELECT s.id, s.user_id, s.problem_id, s.contest_id, s.language,
	                 s.status, s.score, s.runtime_ms, s.submitted_at, p.title
	          FROM submissions s
	          JOIN problems p ON s.problem_id = p.id
	          WHERE s.user_id = $1
	          ORDER BY s.submitted_at DESC
	          LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUser query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		// Code is omitted from listings.
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.ContestID, &s.Language,
			&s.Status, &s.Score, &s.RuntimeMs, &s.SubmittedAt, &s.ProblemTitle); err != nil {
			return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUser scan: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, total, rows.Err()
}
