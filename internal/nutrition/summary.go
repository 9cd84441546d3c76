package nutrition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maxTrendDays caps the range a trend report covers.
const maxTrendDays = 30

// DailySummary aggregates a day's entries by meal and attaches the
// user's goal targets when set.
func (s *Service) DailySummary(ctx context.Context, userID string, day time.Time) (*DaySummary, error) {
	goals, err := s.GetGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.dailySummary(ctx, userID, day, goals)
}

func (s *Service) dailySummary(ctx context.Context, userID string, day time.Time, goals *Goals) (*DaySummary, error) {
	entries, err := s.EntriesByDate(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	summary := &DaySummary{Date: day.Format(DateLayout)}
	for _, mealType := range MealTypes {
		meal := MealSummary{MealType: mealType, Entries: []Entry{}}
		for _, e := range entries {
			if e.MealType != mealType {
				continue
			}
			meal.Entries = append(meal.Entries, e)
			meal.TotalCalories += e.TotalCalories
			meal.TotalProteinG += e.TotalProteinG
			meal.TotalCarbsG += e.TotalCarbsG
			meal.TotalFatG += e.TotalFatG
		}
		summary.Meals = append(summary.Meals, meal)
		summary.TotalCalories += meal.TotalCalories
		summary.TotalProteinG += meal.TotalProteinG
		summary.TotalCarbsG += meal.TotalCarbsG
		summary.TotalFatG += meal.TotalFatG
	}

	for _, e := range entries {
		if e.Food != nil {
			summary.TotalFiberG += e.Food.FiberG * e.Servings
		}
	}

	if goals != nil {
		summary.CaloriesTarget = goals.CaloriesTarget
		summary.ProteinGTarget = goals.ProteinGTarget
		summary.CarbsGTarget = goals.CarbsGTarget
		summary.FatGTarget = goals.FatGTarget
	}

	return summary, nil
}

// Trends builds a per-day breakdown over [start, end] with averages
// across tracked days and goal adherence percentages. Ranges longer
// than 30 days are clipped to the trailing 30; a reversed range is
// swapped.
func (s *Service) Trends(ctx context.Context, userID string, start, end time.Time) (*TrendReport, error) {
	if start.After(end) {
		start, end = end, start
	}
	if end.Sub(start) > maxTrendDays*24*time.Hour {
		start = end.AddDate(0, 0, -maxTrendDays)
	}

	goals, err := s.GetGoals(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{Goals: goals}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		summary, err := s.dailySummary(ctx, userID, day, goals)
		if err != nil {
			return nil, err
		}
		report.DailyData = append(report.DailyData, *summary)
	}
	report.DaysInRange = len(report.DailyData)

	var sums TrendAverages
	for _, d := range report.DailyData {
		if d.TotalCalories <= 0 {
			continue
		}
		report.DaysTracked++
		sums.Calories += d.TotalCalories
		sums.ProteinG += d.TotalProteinG
		sums.CarbsG += d.TotalCarbsG
		sums.FatG += d.TotalFatG
	}

	if report.DaysTracked > 0 {
		n := float64(report.DaysTracked)
		report.Averages = &TrendAverages{
			Calories: round1(sums.Calories / n),
			ProteinG: round1(sums.ProteinG / n),
			CarbsG:   round1(sums.CarbsG / n),
			FatG:     round1(sums.FatG / n),
		}

		if goals != nil {
			report.GoalAdherence = map[string]float64{}
			if goals.CaloriesTarget != nil && *goals.CaloriesTarget > 0 {
				report.GoalAdherence["calories_pct"] = round1(report.Averages.Calories / *goals.CaloriesTarget * 100)
			}
			if goals.ProteinGTarget != nil && *goals.ProteinGTarget > 0 {
				report.GoalAdherence["protein_pct"] = round1(report.Averages.ProteinG / *goals.ProteinGTarget * 100)
			}
		}
	}

	return report, nil
}

// GetGoals returns the user's nutrition goals, or nil when none are set.
func (s *Service) GetGoals(ctx context.Context, userID string) (*Goals, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, calories_target, protein_g_target, carbs_g_target, fat_g_target, fiber_g_target, updated_at
		FROM nutrition_goals
		WHERE user_id = ?
	`, userID)

	var g Goals
	var calories, protein, carbs, fat, fiber sql.NullFloat64
	err := row.Scan(&g.UserID, &calories, &protein, &carbs, &fat, &fiber, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get goals: %w", err)
	}

	g.CaloriesTarget = nullableFloat(calories)
	g.ProteinGTarget = nullableFloat(protein)
	g.CarbsGTarget = nullableFloat(carbs)
	g.FatGTarget = nullableFloat(fat)
	g.FiberGTarget = nullableFloat(fiber)
	return &g, nil
}

// UpsertGoals creates or replaces the user's nutrition goals.
func (s *Service) UpsertGoals(ctx context.Context, userID string, goals Goals) (*Goals, error) {
	goals.UserID = userID
	goals.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nutrition_goals (user_id, calories_target, protein_g_target, carbs_g_target, fat_g_target, fiber_g_target, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			calories_target = excluded.calories_target,
			protein_g_target = excluded.protein_g_target,
			carbs_g_target = excluded.carbs_g_target,
			fat_g_target = excluded.fat_g_target,
			fiber_g_target = excluded.fiber_g_target,
			updated_at = excluded.updated_at
	`, userID, goals.CaloriesTarget, goals.ProteinGTarget, goals.CarbsGTarget, goals.FatGTarget,
		goals.FiberGTarget, goals.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert goals: %w", err)
	}

	return &goals, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
