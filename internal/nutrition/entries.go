package nutrition

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogEntry records a meal entry. The food must be visible to the user.
// The returned entry carries the food and computed macro totals.
func (s *Service) LogEntry(ctx context.Context, userID string, in EntryInput) (*Entry, error) {
	if !ValidMealType(in.MealType) {
		return nil, fmt.Errorf("invalid meal type %q", in.MealType)
	}
	if in.Servings <= 0 {
		in.Servings = 1
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	food, err := s.GetFood(ctx, in.FoodID, userID)
	if err != nil {
		return nil, fmt.Errorf("food %s: %w", in.FoodID, err)
	}

	entry := &Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		FoodID:    in.FoodID,
		MealType:  in.MealType,
		Servings:  in.Servings,
		EntryDate: in.Date.Format(DateLayout),
		LoggedAt:  time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO food_entries (id, user_id, food_id, meal_type, servings, entry_date, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.UserID, entry.FoodID, entry.MealType, entry.Servings, entry.EntryDate, entry.LoggedAt)
	if err != nil {
		return nil, fmt.Errorf("log entry: %w", err)
	}

	entry.attachFood(food)
	s.logger.Info("logged food entry", "user_id", userID, "food", food.Name, "meal", entry.MealType)
	return entry, nil
}

// DeleteEntry removes a user's food entry. Returns false when nothing
// was deleted.
func (s *Service) DeleteEntry(ctx context.Context, entryID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM food_entries WHERE id = ? AND user_id = ?
	`, entryID, userID)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// EntriesByDate returns the user's entries for one day in logged order,
// each with its food and computed totals.
func (s *Service) EntriesByDate(ctx context.Context, userID string, day time.Time) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.food_id, e.meal_type, e.servings, e.entry_date, e.logged_at,
			f.id, f.user_id, f.name, COALESCE(f.brand, ''), f.serving_size, f.serving_unit,
			f.calories, f.protein_g, f.carbs_g, f.fat_g, f.fiber_g, f.sugar_g, f.sodium_mg,
			f.is_verified, f.created_at
		FROM food_entries e
		JOIN foods f ON f.id = e.food_id
		WHERE e.user_id = ? AND e.entry_date = ?
		ORDER BY e.logged_at ASC, e.id ASC
	`, userID, day.Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("entries by date: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var food Food
		var owner sql.NullString
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.FoodID, &entry.MealType, &entry.Servings,
			&entry.EntryDate, &entry.LoggedAt,
			&food.ID, &owner, &food.Name, &food.Brand, &food.ServingSize, &food.ServingUnit,
			&food.Calories, &food.ProteinG, &food.CarbsG, &food.FatG, &food.FiberG, &food.SugarG,
			&food.SodiumMg, &food.IsVerified, &food.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		food.UserID = owner.String
		entry.attachFood(&food)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// attachFood sets the entry's food and scales its macros by servings.
func (e *Entry) attachFood(food *Food) {
	e.Food = food
	e.TotalCalories = food.Calories * e.Servings
	e.TotalProteinG = food.ProteinG * e.Servings
	e.TotalCarbsG = food.CarbsG * e.Servings
	e.TotalFatG = food.FatG * e.Servings
}
