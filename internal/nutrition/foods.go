package nutrition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a food or entry does not exist or is not
// visible to the requesting user.
var ErrNotFound = errors.New("not found")

const foodColumns = `id, user_id, name, COALESCE(brand, ''), serving_size, serving_unit,
	calories, protein_g, carbs_g, fat_g, fiber_g, sugar_g, sodium_mg, is_verified, created_at`

// CreateFood adds a custom food owned by userID.
func (s *Service) CreateFood(ctx context.Context, userID string, in FoodInput) (*Food, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("food name is required")
	}
	if in.ServingSize <= 0 {
		in.ServingSize = 1
	}
	if in.ServingUnit == "" {
		in.ServingUnit = "serving"
	}

	food := &Food{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        in.Name,
		Brand:       in.Brand,
		ServingSize: in.ServingSize,
		ServingUnit: in.ServingUnit,
		Calories:    in.Calories,
		ProteinG:    in.ProteinG,
		CarbsG:      in.CarbsG,
		FatG:        in.FatG,
		FiberG:      in.FiberG,
		SugarG:      in.SugarG,
		SodiumMg:    in.SodiumMg,
		IsVerified:  in.IsVerified,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO foods (id, user_id, name, brand, serving_size, serving_unit,
			calories, protein_g, carbs_g, fat_g, fiber_g, sugar_g, sodium_mg, is_verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, food.ID, nullIfEmpty(food.UserID), food.Name, food.Brand, food.ServingSize, food.ServingUnit,
		food.Calories, food.ProteinG, food.CarbsG, food.FatG, food.FiberG, food.SugarG, food.SodiumMg,
		food.IsVerified, food.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create food: %w", err)
	}

	s.logger.Info("created food", "user_id", userID, "name", food.Name)
	return food, nil
}

// GetFood fetches a food by ID. Global foods are visible to everyone;
// custom foods only to their owner.
func (s *Service) GetFood(ctx context.Context, foodID, userID string) (*Food, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+foodColumns+` FROM foods WHERE id = ?`, foodID)

	food, err := scanFood(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get food: %w", err)
	}

	if food.UserID != "" && food.UserID != userID {
		return nil, ErrNotFound
	}
	return food, nil
}

// DeleteFood removes a user's custom food. Returns false when nothing
// was deleted (global foods cannot be deleted).
func (s *Service) DeleteFood(ctx context.Context, foodID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM foods WHERE id = ? AND user_id = ?
	`, foodID, userID)
	if err != nil {
		return false, fmt.Errorf("delete food: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SearchFoods finds foods by name, case-insensitively, among global
// foods and the user's custom foods. Verified foods sort first.
// Returns at most limit foods plus the total match count.
func (s *Service) SearchFoods(ctx context.Context, userID, query string, limit int) ([]Food, int, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM foods
		WHERE (user_id IS NULL OR user_id = ?) AND name LIKE ? COLLATE NOCASE
	`, userID, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count foods: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+foodColumns+` FROM foods
		WHERE (user_id IS NULL OR user_id = ?) AND name LIKE ? COLLATE NOCASE
		ORDER BY is_verified DESC, name ASC
		LIMIT ?
	`, userID, pattern, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("search foods: %w", err)
	}
	defer rows.Close()

	foods, err := collectFoods(rows)
	if err != nil {
		return nil, 0, err
	}
	return foods, total, nil
}

// ListUserFoods returns the user's custom foods ordered by name.
func (s *Service) ListUserFoods(ctx context.Context, userID string, limit int) ([]Food, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+foodColumns+` FROM foods
		WHERE user_id = ?
		ORDER BY name ASC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list foods: %w", err)
	}
	defer rows.Close()

	return collectFoods(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFood(row rowScanner) (*Food, error) {
	var food Food
	var owner sql.NullString
	err := row.Scan(&food.ID, &owner, &food.Name, &food.Brand, &food.ServingSize, &food.ServingUnit,
		&food.Calories, &food.ProteinG, &food.CarbsG, &food.FatG, &food.FiberG, &food.SugarG,
		&food.SodiumMg, &food.IsVerified, &food.CreatedAt)
	if err != nil {
		return nil, err
	}
	food.UserID = owner.String
	return &food, nil
}

func collectFoods(rows *sql.Rows) ([]Food, error) {
	var foods []Food
	for rows.Next() {
		food, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("scan food: %w", err)
		}
		foods = append(foods, *food)
	}
	return foods, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
