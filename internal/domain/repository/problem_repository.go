package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codearena/internal/common"
	"codearena/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
	ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, onlyPublished bool) ([]model.Problem, int, error)
	SetPublished(ctx context.Context, tx *sql.Tx, problemID string, published bool) error

	AddTestCases(ctx context.Context, tx *sql.Tx, cases []model.TestCase) error
	// GetTestCases returns a problem's cases in sort order. With visibleOnly
	// set it returns only the non-hidden subset used by trial runs.
	GetTestCases(ctx context.Context, problemID string, visibleOnly bool) ([]model.TestCase, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (id, title, slug, description, difficulty, topics, points, is_published, runtime_limit_ms, memory_limit_kb, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := pick(r.db, tx).ExecContext(ctx, query,
		p.ID, p.Title, p.Slug, p.Description, p.Difficulty, encodeTopics(p.Topics),
		p.Points, p.IsPublished, p.RuntimeLimitMs, p.MemoryLimitKb, p.CreatedByID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

const problemColumns = `id, title, slug, description, difficulty, topics, points,
       is_published, runtime_limit_ms, memory_limit_kb, created_by, created_at, updated_at`

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	return r.findBy(ctx, "id", id)
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	return r.findBy(ctx, "slug", slug)
}

func (r *pgProblemRepository) findBy(ctx context.Context, column, value string) (*model.Problem, error) {
	query := fmt.Sprintf(`SELECT %s FROM problems WHERE %s = $1`, problemColumns, column)
	p, err := scanProblem(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.findBy %s: %w", column, err)
	}
	return p, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, onlyPublished bool) ([]model.Problem, int, error) {
	conditions := " WHERE 1=1"
	args := []interface{}{}
	argID := 1

	if onlyPublished {
		conditions += " AND is_published = TRUE"
	}
	if difficulty != "" {
		conditions += fmt.Sprintf(" AND difficulty = $%d", argID)
		args = append(args, difficulty)
		argID++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM problems"+conditions, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM problems%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		problemColumns, conditions, argID, argID+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, *p)
	}
	return problems, total, rows.Err()
}

func (r *pgProblemRepository) SetPublished(ctx context.Context, tx *sql.Tx, problemID string, published bool) error {
	query := `UPDATE problems SET is_published = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if _, err := pick(r.db, tx).ExecContext(ctx, query, published, problemID); err != nil {
		return fmt.Errorf("pgProblemRepository.SetPublished: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) AddTestCases(ctx context.Context, tx *sql.Tx, cases []model.TestCase) error {
	if len(cases) == 0 {
		return nil
	}
	query := `INSERT INTO test_cases (id, problem_id, contest_id, input, expected_output, is_hidden, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, tc := range cases {
		if (tc.ProblemID == nil) == (tc.ContestID == nil) {
			return fmt.Errorf("test case must reference exactly one of problem or contest: %w", common.ErrValidation)
		}
		_, err := pick(r.db, tx).ExecContext(ctx, query,
			tc.ID, tc.ProblemID, tc.ContestID, tc.Input, tc.ExpectedOutput, tc.IsHidden, i+1)
		if err != nil {
			return fmt.Errorf("pgProblemRepository.AddTestCases exec for case %s: %w", tc.ID, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetTestCases(ctx context.Context, problemID string, visibleOnly bool) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, contest_id, input, expected_output, is_hidden, sort_order, created_at
	          FROM test_cases WHERE problem_id = $1`
	if visibleOnly {
		query += ` AND is_hidden = FALSE`
	}
	query += ` ORDER BY sort_order ASC`

	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCases: %w", err)
	}
	defer rows.Close()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.ContestID, &tc.Input, &tc.ExpectedOutput,
			&tc.IsHidden, &tc.SortOrder, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetTestCases scan: %w", err)
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

func scanProblem(row rowScanner) (*model.Problem, error) {
	p := &model.Problem{}
	var topics []byte
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Difficulty, &topics, &p.Points,
		&p.IsPublished, &p.RuntimeLimitMs, &p.MemoryLimitKb, &p.CreatedByID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Topics = decodeTopics(topics)
	return p, nil
}
