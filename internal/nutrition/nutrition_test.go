package nutrition

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewWithDB(db, nil)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	return s
}

func mustCreateFood(t *testing.T, s *Service, userID string, in FoodInput) *Food {
	t.Helper()
	food, err := s.CreateFood(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("CreateFood: %v", err)
	}
	return food
}

func TestCreateFoodDefaults(t *testing.T) {
	s := newTestService(t)

	food := mustCreateFood(t, s, "user-1", FoodInput{Name: "Protein Shake", Calories: 220, ProteinG: 30})

	if food.ServingSize != 1 || food.ServingUnit != "serving" {
		t.Errorf("serving defaults = %v %q", food.ServingSize, food.ServingUnit)
	}
	if food.IsVerified {
		t.Error("custom food should not be verified")
	}
}

func TestGetFoodAccess(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	global := mustCreateFood(t, s, "", FoodInput{Name: "Banana", Calories: 105, IsVerified: true})
	custom := mustCreateFood(t, s, "user-1", FoodInput{Name: "My Shake", Calories: 220})

	if _, err := s.GetFood(ctx, global.ID, "user-2"); err != nil {
		t.Errorf("global food should be visible to any user: %v", err)
	}
	if _, err := s.GetFood(ctx, custom.ID, "user-1"); err != nil {
		t.Errorf("owner should see custom food: %v", err)
	}
	if _, err := s.GetFood(ctx, custom.ID, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's custom food: err = %v, want ErrNotFound", err)
	}
}

func TestSearchFoodsOrderAndScope(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreateFood(t, s, "", FoodInput{Name: "Chicken Breast, raw", Calories: 120, IsVerified: true})
	mustCreateFood(t, s, "user-1", FoodInput{Name: "chicken stir fry", Calories: 400})
	mustCreateFood(t, s, "user-2", FoodInput{Name: "Chicken Curry", Calories: 500})

	foods, total, err := s.SearchFoods(ctx, "user-1", "chicken", 10)
	if err != nil {
		t.Fatalf("SearchFoods: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2 (global + own, not user-2's)", total)
	}
	if len(foods) != 2 {
		t.Fatalf("got %d foods, want 2", len(foods))
	}
	if !foods[0].IsVerified {
		t.Errorf("verified food should sort first, got %q", foods[0].Name)
	}
}

func TestLogEntryComputesTotals(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	food := mustCreateFood(t, s, "user-1", FoodInput{
		Name: "Oats", Calories: 150, ProteinG: 5, CarbsG: 27, FatG: 3,
	})

	entry, err := s.LogEntry(ctx, "user-1", EntryInput{
		FoodID: food.ID, MealType: "breakfast", Servings: 2,
	})
	if err != nil {
		t.Fatalf("LogEntry: %v", err)
	}

	if entry.TotalCalories != 300 || entry.TotalProteinG != 10 || entry.TotalCarbsG != 54 || entry.TotalFatG != 6 {
		t.Errorf("totals = %+v", entry)
	}
	if entry.Food == nil || entry.Food.Name != "Oats" {
		t.Error("entry should carry its food")
	}
}

func TestLogEntryRejectsInvalidInput(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	food := mustCreateFood(t, s, "user-1", FoodInput{Name: "Oats", Calories: 150})

	if _, err := s.LogEntry(ctx, "user-1", EntryInput{FoodID: food.ID, MealType: "brunch"}); err == nil {
		t.Error("expected error for unknown meal type")
	}
	if _, err := s.LogEntry(ctx, "user-2", EntryInput{FoodID: food.ID, MealType: "lunch"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("logging someone else's food: err = %v, want ErrNotFound", err)
	}
	if _, err := s.LogEntry(ctx, "user-1", EntryInput{FoodID: "missing", MealType: "lunch"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing food: err = %v, want ErrNotFound", err)
	}
}

func TestDailySummaryGroupsByMeal(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	oats := mustCreateFood(t, s, "user-1", FoodInput{Name: "Oats", Calories: 150, ProteinG: 5, FiberG: 4})
	rice := mustCreateFood(t, s, "user-1", FoodInput{Name: "Rice", Calories: 200, CarbsG: 45})

	if _, err := s.LogEntry(ctx, "user-1", EntryInput{FoodID: oats.ID, MealType: "breakfast", Date: day}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LogEntry(ctx, "user-1", EntryInput{FoodID: rice.ID, MealType: "dinner", Servings: 2, Date: day}); err != nil {
		t.Fatal(err)
	}

	summary, err := s.DailySummary(ctx, "user-1", day)
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}

	if len(summary.Meals) != 4 {
		t.Fatalf("got %d meals, want 4", len(summary.Meals))
	}
	if summary.Meals[0].MealType != "breakfast" || summary.Meals[0].TotalCalories != 150 {
		t.Errorf("breakfast = %+v", summary.Meals[0])
	}
	if summary.Meals[1].TotalCalories != 0 {
		t.Errorf("lunch should be empty, got %+v", summary.Meals[1])
	}
	if summary.Meals[2].MealType != "dinner" || summary.Meals[2].TotalCalories != 400 {
		t.Errorf("dinner = %+v", summary.Meals[2])
	}
	if summary.TotalCalories != 550 {
		t.Errorf("total calories = %v, want 550", summary.TotalCalories)
	}
	if summary.TotalFiberG != 4 {
		t.Errorf("fiber = %v, want 4", summary.TotalFiberG)
	}
	if summary.CaloriesTarget != nil {
		t.Error("no goals set, target should be nil")
	}
}

func TestGoalsRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	got, err := s.GetGoals(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetGoals: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil goals, got %+v", got)
	}

	calories, protein := 2200.0, 160.0
	if _, err := s.UpsertGoals(ctx, "user-1", Goals{CaloriesTarget: &calories, ProteinGTarget: &protein}); err != nil {
		t.Fatalf("UpsertGoals: %v", err)
	}

	// Second upsert replaces.
	calories2 := 2000.0
	if _, err := s.UpsertGoals(ctx, "user-1", Goals{CaloriesTarget: &calories2}); err != nil {
		t.Fatalf("UpsertGoals again: %v", err)
	}

	got, err = s.GetGoals(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetGoals: %v", err)
	}
	if got == nil || got.CaloriesTarget == nil || *got.CaloriesTarget != 2000 {
		t.Errorf("goals = %+v", got)
	}
	if got.ProteinGTarget != nil {
		t.Error("replaced goals should drop the protein target")
	}
}

func TestTrendsAveragesAndAdherence(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	food := mustCreateFood(t, s, "user-1", FoodInput{Name: "Meal", Calories: 2000, ProteinG: 150})
	calories, protein := 2000.0, 200.0
	if _, err := s.UpsertGoals(ctx, "user-1", Goals{CaloriesTarget: &calories, ProteinGTarget: &protein}); err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// Log on 2 of 5 days.
	for _, offset := range []int{0, 2} {
		if _, err := s.LogEntry(ctx, "user-1", EntryInput{
			FoodID: food.ID, MealType: "lunch", Date: start.AddDate(0, 0, offset),
		}); err != nil {
			t.Fatal(err)
		}
	}

	report, err := s.Trends(ctx, "user-1", start, start.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("Trends: %v", err)
	}

	if report.DaysInRange != 5 || report.DaysTracked != 2 {
		t.Errorf("days = %d/%d, want 2/5", report.DaysTracked, report.DaysInRange)
	}
	if report.Averages == nil || report.Averages.Calories != 2000 {
		t.Errorf("averages = %+v", report.Averages)
	}
	if got := report.GoalAdherence["calories_pct"]; got != 100 {
		t.Errorf("calories adherence = %v, want 100", got)
	}
	if got := report.GoalAdherence["protein_pct"]; got != 75 {
		t.Errorf("protein adherence = %v, want 75", got)
	}
}

func TestTrendsClampsRange(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	report, err := s.Trends(ctx, "user-1", end.AddDate(0, 0, -60), end)
	if err != nil {
		t.Fatalf("Trends: %v", err)
	}
	if report.DaysInRange != maxTrendDays+1 {
		t.Errorf("days in range = %d, want %d", report.DaysInRange, maxTrendDays+1)
	}

	// Reversed bounds are swapped, not an error.
	if _, err := s.Trends(ctx, "user-1", end, end.AddDate(0, 0, -3)); err != nil {
		t.Errorf("reversed range: %v", err)
	}
}
