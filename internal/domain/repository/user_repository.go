package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// GetForUpdate loads the user row under a row lock; must run inside tx.
	GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error)
	// UpdateProgression persists the post-solve stats and profile snapshots.
	UpdateProgression(ctx context.Context, tx *sql.Tx, userID string, stats model.UserStats, profile model.UserProfile) error
	// TryMarkSolved records (user, problem) in the solved set. Returns false
	// when the problem was already solved; the insert winning is the
	// authoritative first-solve signal.
	TryMarkSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string, solvedAt time.Time) (bool, error)
	GetSolvedProblemIDs(ctx context.Context, userID string) ([]string, error)

	IncrementContestsParticipated(ctx context.Context, tx *sql.Tx, userID string) error
	SetContestRating(ctx context.Context, userID string, rating int) error

	GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, email, hashed_password, role,
       name, country, avatar, rating, max_rating, rank,
       total_solved, easy_solved, medium_solved, hard_solved,
       current_streak, max_streak, last_solved_on, topic_progress,
       contests_participated, contest_rating, created_at, updated_at`

func (r *pgUserRepository) Create(ctx context.Context, u *model.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password, role, name, rating, max_rating, rank, contest_rating)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.HashedPassword, u.Role, u.Profile.Name,
		u.Profile.Rating, u.Profile.MaxRating, u.Profile.Rank, u.Stats.ContestRating)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("username or email already taken: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findBy(ctx, "id", id)
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(ctx, "email", email)
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findBy(ctx, "username", username)
}

func (r *pgUserRepository) findBy(ctx context.Context, column, value string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.findBy %s: %w", column, err)
	}
	return user, nil
}

func (r *pgUserRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 FOR UPDATE`, userColumns)
	user, err := scanUser(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.GetForUpdate: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) UpdateProgression(ctx context.Context, tx *sql.Tx, userID string, stats model.UserStats, profile model.UserProfile) error {
	progress, err := json.Marshal(stats.TopicProgress)
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdateProgression marshal topic progress: %w", err)
	}

	var lastSolved *time.Time
	if stats.LastSolvedOn != nil {
		t := stats.LastSolvedOn.Time()
		lastSolved = &t
	}

	query := `UPDATE users SET
	            rating = $1, max_rating = $2, rank = $3,
	            total_solved = $4, easy_solved = $5, medium_solved = $6, hard_solved = $7,
	            current_streak = $8, max_streak = $9, last_solved_on = $10,
	            topic_progress = $11, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $12`
	_, err = pick(r.db, tx).ExecContext(ctx, query,
		profile.Rating, profile.MaxRating, profile.Rank,
		stats.TotalSolved, stats.EasySolved, stats.MediumSolved, stats.HardSolved,
		stats.CurrentStreak, stats.MaxStreak, lastSolved, progress, userID)
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdateProgression: %w", err)
	}
	return nil
}

func (r *pgUserRepository) TryMarkSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string, solvedAt time.Time) (bool, error) {
	query := `INSERT INTO user_solved_problems (user_id, problem_id, submission_id, solved_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (user_id, problem_id) DO NOTHING`
	res, err := pick(r.db, tx).ExecContext(ctx, query, userID, problemID, submissionID, solvedAt)
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.TryMarkSolved: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.TryMarkSolved rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *pgUserRepository) GetSolvedProblemIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT problem_id FROM user_solved_problems WHERE user_id = $1 ORDER BY solved_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.GetSolvedProblemIDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgUserRepository.GetSolvedProblemIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgUserRepository) IncrementContestsParticipated(ctx context.Context, tx *sql.Tx, userID string) error {
	query := `UPDATE users SET contests_participated = contests_participated + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := pick(r.db, tx).ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("pgUserRepository.IncrementContestsParticipated: %w", err)
	}
	return nil
}

func (r *pgUserRepository) SetContestRating(ctx context.Context, userID string, rating int) error {
	query := `UPDATE users SET contest_rating = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, rating, userID); err != nil {
		return fmt.Errorf("pgUserRepository.SetContestRating: %w", err)
	}
	return nil
}

func (r *pgUserRepository) GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := `SELECT id, username, country, rating, max_rating, total_solved,
	                 current_streak, max_streak, easy_solved, medium_solved, hard_solved
	          FROM users
	          ORDER BY rating DESC, total_solved DESC
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.GetLeaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		var country sql.NullString
		if err := rows.Scan(&e.UserID, &e.Username, &country, &e.Rating, &e.MaxRating,
			&e.TotalSolved, &e.CurrentStreak, &e.MaxStreak,
			&e.EasySolved, &e.MediumSolved, &e.HardSolved); err != nil {
			return nil, fmt.Errorf("pgUserRepository.GetLeaderboard scan: %w", err)
		}
		e.Country = country.String
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var name, country, avatar, rank sql.NullString
	var lastSolved sql.NullTime
	var progress []byte

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.Role,
		&name, &country, &avatar, &u.Profile.Rating, &u.Profile.MaxRating, &rank,
		&u.Stats.TotalSolved, &u.Stats.EasySolved, &u.Stats.MediumSolved, &u.Stats.HardSolved,
		&u.Stats.CurrentStreak, &u.Stats.MaxStreak, &lastSolved, &progress,
		&u.Stats.ContestsParticipated, &u.Stats.ContestRating, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Profile.Name = name.String
	u.Profile.Country = country.String
	u.Profile.Avatar = avatar.String
	u.Profile.Rank = rank.String
	if lastSolved.Valid {
		d := model.DateOf(lastSolved.Time.UTC())
		u.Stats.LastSolvedOn = &d
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &u.Stats.TopicProgress); err != nil {
			return nil, fmt.Errorf("unmarshal topic progress: %w", err)
		}
	}
	return u, nil
}
