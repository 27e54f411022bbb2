package repository

import (
	"context"
	"database/sql"
	"fmt"

	"codearena/internal/domain/model"
)

type BadgeRepository interface {
	// ListBadges returns the full catalog. The catalog is read-only to the
	// grading engine.
	ListBadges(ctx context.Context) ([]model.Badge, error)
	GetUserBadges(ctx context.Context, userID string) ([]model.UserBadge, error)
	// AddUserBadges appends newly earned badges. Conflicts are ignored so a
	// concurrent award of the same badge stays a single row.
	AddUserBadges(ctx context.Context, tx *sql.Tx, userID string, badges []model.UserBadge) error
}

type pgBadgeRepository struct {
	db *sql.DB
}

func NewPgBadgeRepository(db *sql.DB) BadgeRepository {
	return &pgBadgeRepository{db: db}
}

func (r *pgBadgeRepository) ListBadges(ctx context.Context) ([]model.Badge, error) {
	query := `SELECT id, name, description, icon, color, rarity,
	                 criteria_type, criteria_value, criteria_topic, criteria_difficulty
	          FROM badges ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgBadgeRepository.ListBadges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		var b model.Badge
		var topic, difficulty sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.Color, &b.Rarity,
			&b.Criteria.Type, &b.Criteria.Value, &topic, &difficulty); err != nil {
			return nil, fmt.Errorf("pgBadgeRepository.ListBadges scan: %w", err)
		}
		b.Criteria.Topic = topic.String
		b.Criteria.Difficulty = model.ProblemDifficulty(difficulty.String)
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func (r *pgBadgeRepository) GetUserBadges(ctx context.Context, userID string) ([]model.UserBadge, error) {
	query := `SELECT ub.badge_id, ub.earned_at,
	                 b.id, b.name, b.description, b.icon, b.color, b.rarity,
	                 b.criteria_type, b.criteria_value, b.criteria_topic, b.criteria_difficulty
	          FROM user_badges ub
	          JOIN badges b ON ub.badge_id = b.id
	          WHERE ub.user_id = $1
	          ORDER BY ub.earned_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgBadgeRepository.GetUserBadges: %w", err)
	}
	defer rows.Close()

	var badges []model.UserBadge
	for rows.Next() {
		var ub model.UserBadge
		var b model.Badge
		var topic, difficulty sql.NullString
		if err := rows.Scan(&ub.BadgeID, &ub.EarnedAt,
			&b.ID, &b.Name, &b.Description, &b.Icon, &b.Color, &b.Rarity,
			&b.Criteria.Type, &b.Criteria.Value, &topic, &difficulty); err != nil {
			return nil, fmt.Errorf("pgBadgeRepository.GetUserBadges scan: %w", err)
		}
		b.Criteria.Topic = topic.String
		b.Criteria.Difficulty = model.ProblemDifficulty(difficulty.String)
		ub.Badge = &b
		badges = append(badges, ub)
	}
	return badges, rows.Err()
}

func (r *pgBadgeRepository) AddUserBadges(ctx context.Context, tx *sql.Tx, userID string, badges []model.UserBadge) error {
	if len(badges) == 0 {
		return nil
	}
	query := `INSERT INTO user_badges (user_id, badge_id, earned_at)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (user_id, badge_id) DO NOTHING`
	for _, ub := range badges {
		if _, err := pick(r.db, tx).ExecContext(ctx, query, userID, ub.BadgeID, ub.EarnedAt); err != nil {
			return fmt.Errorf("pgBadgeRepository.AddUserBadges exec for %s: %w", ub.BadgeID, err)
		}
	}
	return nil
}
