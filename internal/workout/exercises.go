package workout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const exerciseColumns = `id, user_id, name, category, COALESCE(muscle_groups, '[]'), COALESCE(equipment, ''), is_verified, created_at`

// CreateExercise adds a custom exercise owned by userID.
func (s *Service) CreateExercise(ctx context.Context, userID string, in ExerciseInput) (*Exercise, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("exercise name is required")
	}
	if !ValidCategory(in.Category) {
		return nil, fmt.Errorf("invalid category %q", in.Category)
	}

	ex := &Exercise{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         in.Name,
		Category:     in.Category,
		MuscleGroups: in.MuscleGroups,
		Equipment:    in.Equipment,
		IsVerified:   in.IsVerified,
		CreatedAt:    time.Now().UTC(),
	}

	groups, err := json.Marshal(ex.MuscleGroups)
	if err != nil {
		return nil, fmt.Errorf("encode muscle groups: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exercises (id, user_id, name, category, muscle_groups, equipment, is_verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ex.ID, nullIfEmpty(ex.UserID), ex.Name, ex.Category, string(groups), ex.Equipment, ex.IsVerified, ex.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create exercise: %w", err)
	}

	s.logger.Info("created exercise", "user_id", userID, "name", ex.Name, "category", ex.Category)
	return ex, nil
}

// GetExercise fetches an exercise by ID. Global exercises are visible
// to everyone; custom exercises only to their owner.
func (s *Service) GetExercise(ctx context.Context, exerciseID, userID string) (*Exercise, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, exerciseID)

	ex, err := scanExercise(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exercise: %w", err)
	}

	if ex.UserID != "" && ex.UserID != userID {
		return nil, ErrNotFound
	}
	return ex, nil
}

// DeleteExercise removes a user's custom exercise. Returns false when
// nothing was deleted.
func (s *Service) DeleteExercise(ctx context.Context, exerciseID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM exercises WHERE id = ? AND user_id = ?
	`, exerciseID, userID)
	if err != nil {
		return false, fmt.Errorf("delete exercise: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SearchExercises finds exercises by name and/or category among global
// exercises and the user's custom ones. Verified exercises sort first.
// Empty query matches everything. Returns at most limit exercises plus
// the total match count.
func (s *Service) SearchExercises(ctx context.Context, userID, query, category string, limit int) ([]Exercise, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := `(user_id IS NULL OR user_id = ?)`
	args := []any{userID}
	if query != "" {
		where += ` AND name LIKE ? COLLATE NOCASE`
		args = append(args, "%"+query+"%")
	}
	if category != "" {
		where += ` AND category = ?`
		args = append(args, category)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exercises WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count exercises: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+exerciseColumns+` FROM exercises
		WHERE `+where+`
		ORDER BY is_verified DESC, name ASC
		LIMIT ?
	`, append(args, limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search exercises: %w", err)
	}
	defer rows.Close()

	var exercises []Exercise
	for rows.Next() {
		ex, err := scanExercise(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan exercise: %w", err)
		}
		exercises = append(exercises, *ex)
	}
	return exercises, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExercise(row rowScanner) (*Exercise, error) {
	var ex Exercise
	var owner sql.NullString
	var groups string
	err := row.Scan(&ex.ID, &owner, &ex.Name, &ex.Category, &groups, &ex.Equipment, &ex.IsVerified, &ex.CreatedAt)
	if err != nil {
		return nil, err
	}
	ex.UserID = owner.String
	if err := json.Unmarshal([]byte(groups), &ex.MuscleGroups); err != nil {
		return nil, fmt.Errorf("decode muscle groups: %w", err)
	}
	return &ex, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
