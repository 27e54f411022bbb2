package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codearena/internal/common"
	"codearena/internal/domain/model"
)

type ContestRepository interface {
	FindContestByID(ctx context.Context, id string) (*model.Contest, error)
	CreateContest(ctx context.Context, tx *sql.Tx, contest *model.Contest) error

	// EnsureParticipation creates the (user, contest) ledger record if it
	// does not exist yet. Returns true when this call created it.
	EnsureParticipation(ctx context.Context, tx *sql.Tx, userID, contestID string) (bool, error)
	GetParticipation(ctx context.Context, userID, contestID string) (*model.ContestParticipation, error)
	ListParticipationsByUser(ctx context.Context, userID string) ([]model.ContestParticipation, error)

	// CreditSolve is the ledger write for one accepted contest submission.
	// The first acceptance of a problem inserts its score row and adds the
	// points to the running total; every later acceptance only increments
	// that row's submission count. Both shapes are single conditional
	// statements, so concurrent acceptances cannot double-credit.
	CreditSolve(ctx context.Context, tx *sql.Tx, userID, contestID, problemID string, points int) (bool, error)

	GetLeaderboard(ctx context.Context, contestID string, limit, offset int) ([]model.ContestLeaderboardEntry, int, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT id, title, slug, starts_at, ends_at, created_at FROM contests WHERE id = $1`
	c := &model.Contest{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Title, &c.Slug, &c.StartsAt, &c.EndsAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestByID: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) CreateContest(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	query := `INSERT INTO contests (id, title, slug, starts_at, ends_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := pick(r.db, tx).ExecContext(ctx, query, c.ID, c.Title, c.Slug, c.StartsAt, c.EndsAt); err != nil {
		return fmt.Errorf("pgContestRepository.CreateContest: %w", err)
	}
	return nil
}

func (r *pgContestRepository) EnsureParticipation(ctx context.Context, tx *sql.Tx, userID, contestID string) (bool, error) {
	query := `INSERT INTO contest_participations (user_id, contest_id, total_score)
	          VALUES ($1, $2, 0)
	          ON CONFLICT (user_id, contest_id) DO NOTHING`
	res, err := pick(r.db, tx).ExecContext(ctx, query, userID, contestID)
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.EnsureParticipation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.EnsureParticipation rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *pgContestRepository) GetParticipation(ctx context.Context, userID, contestID string) (*model.ContestParticipation, error) {
	query := `SELECT user_id, contest_id, total_score, joined_at, updated_at
	          FROM contest_participations WHERE user_id = $1 AND contest_id = $2`
	p := &model.ContestParticipation{}
	err := r.db.QueryRowContext(ctx, query, userID, contestID).Scan(
		&p.UserID, &p.ContestID, &p.TotalScore, &p.JoinedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.GetParticipation: %w", err)
	}

	if p.ProblemScores, err = r.problemScores(ctx, userID, contestID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgContestRepository) problemScores(ctx context.Context, userID, contestID string) ([]model.ProblemScore, error) {
	query := `SELECT problem_id, score, submission_count
	          FROM contest_problem_scores
	          WHERE user_id = $1 AND contest_id = $2
	          ORDER BY first_solved_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.problemScores: %w", err)
	}
	defer rows.Close()

	var scores []model.ProblemScore
	for rows.Next() {
		var ps model.ProblemScore
		if err := rows.Scan(&ps.ProblemID, &ps.Score, &ps.SubmissionCount); err != nil {
			return nil, fmt.Errorf("pgContestRepository.problemScores scan: %w", err)
		}
		scores = append(scores, ps)
	}
	return scores, rows.Err()
}

func (r *pgContestRepository) ListParticipationsByUser(ctx context.Context, userID string) ([]model.ContestParticipation, error) {
	query := `SELECT user_id, contest_id, total_score, joined_at, updated_at
	          FROM contest_participations WHERE user_id = $1 ORDER BY joined_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListParticipationsByUser: %w", err)
	}
	defer rows.Close()

	var participations []model.ContestParticipation
	for rows.Next() {
		var p model.ContestParticipation
		if err := rows.Scan(&p.UserID, &p.ContestID, &p.TotalScore, &p.JoinedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListParticipationsByUser scan: %w", err)
		}
		participations = append(participations, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range participations {
		scores, err := r.problemScores(ctx, userID, participations[i].ContestID)
		if err != nil {
			return nil, err
		}
		participations[i].ProblemScores = scores
	}
	return participations, nil
}

func (r *pgContestRepository) CreditSolve(ctx context.Context, tx *sql.Tx, userID, contestID, problemID string, points int) (bool, error) {
	insert := `INSERT INTO contest_problem_scores (user_id, contest_id, problem_id, score, submission_count, first_solved_at)
	           VALUES ($1, $2, $3, $4, 1, CURRENT_TIMESTAMP)
	           ON CONFLICT (user_id, contest_id, problem_id) DO NOTHING`
	res, err := pick(r.db, tx).ExecContext(ctx, insert, userID, contestID, problemID, points)
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.CreditSolve insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.CreditSolve rows affected: %w", err)
	}

	if n == 1 {
		// First acceptance: the points count toward the total exactly once.
		bump := `UPDATE contest_participations
		         SET total_score = total_score + $1, updated_at = CURRENT_TIMESTAMP
		         WHERE user_id = $2 AND contest_id = $3`
		if _, err := pick(r.db, tx).ExecContext(ctx, bump, points, userID, contestID); err != nil {
			return false, fmt.Errorf("pgContestRepository.CreditSolve bump total: %w", err)
		}
		return true, nil
	}

	recount := `UPDATE contest_problem_scores
	            SET submission_count = submission_count + 1
	            WHERE user_id = $1 AND contest_id = $2 AND problem_id = $3`
	if _, err := pick(r.db, tx).ExecContext(ctx, recount, userID, contestID, problemID); err != nil {
		return false, fmt.Errorf("pgContestRepository.CreditSolve recount: %w", err)
	}
	touch := `UPDATE contest_participations SET updated_at = CURRENT_TIMESTAMP
	          WHERE user_id = $1 AND contest_id = $2`
	if _, err := pick(r.db, tx).ExecContext(ctx, touch, userID, contestID); err != nil {
		return false, fmt.Errorf("pgContestRepository.CreditSolve touch: %w", err)
	}
	return false, nil
}

func (r *pgContestRepository) GetLeaderboard(ctx context.Context, contestID string, limit, offset int) ([]model.ContestLeaderboardEntry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contest_participations WHERE contest_id = $1`, contestID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.GetLeaderboard count: %w", err)
	}

	query := `SELECT cp.user_id, u.username, cp.total_score, cp.updated_at,
	                 (SELECT COUNT(*) FROM contest_problem_scores cps
	                  WHERE cps.user_id = cp.user_id AND cps.contest_id = cp.contest_id)
	          FROM contest_participations cp
	          JOIN users u ON cp.user_id = u.id
	          WHERE cp.contest_id = $1
	          ORDER BY cp.total_score DESC, cp.updated_at ASC
	          LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, contestID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.GetLeaderboard query: %w", err)
	}
	defer rows.Close()

	entries := []model.ContestLeaderboardEntry{}
	for rows.Next() {
		var e model.ContestLeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.TotalScore, &e.UpdatedAt, &e.ProblemsSolved); err != nil {
			return nil, 0, fmt.Errorf("pgContestRepository.GetLeaderboard scan: %w", err)
		}
		e.Rank = offset + len(entries) + 1
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
