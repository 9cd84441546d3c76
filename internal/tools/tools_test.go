package tools

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"testing"

	"github.com/myhealth-io/myhealthd/internal/config"
	"github.com/myhealth-io/myhealthd/internal/nutrition"
	"github.com/myhealth-io/myhealthd/internal/usda"
	"github.com/myhealth-io/myhealthd/internal/whoop"
	"github.com/myhealth-io/myhealthd/internal/workout"

	_ "modernc.org/sqlite"
)

func newTestRegistry(t *testing.T) (*Registry, Deps) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	openDB := func() *sql.DB {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		return db
	}

	nut, err := nutrition.NewWithDB(openDB(), logger)
	if err != nil {
		t.Fatalf("nutrition service: %v", err)
	}
	wk, err := workout.NewWithDB(openDB(), logger)
	if err != nil {
		t.Fatalf("workout service: %v", err)
	}
	wh, err := whoop.NewWithDB(openDB(), logger)
	if err != nil {
		t.Fatalf("whoop service: %v", err)
	}

	deps := Deps{
		Nutrition: nut,
		Workout:   wk,
		Whoop:     wh,
		USDA:      usda.New(config.USDAConfig{}, logger),
	}
	return NewRegistry(deps, logger), deps
}

func errorField(t *testing.T, result any) string {
	t.Helper()
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want map", result)
	}
	msg, _ := m["error"].(string)
	return msg
}

func TestSpecsCoverCatalog(t *testing.T) {
	r, _ := newTestRegistry(t)

	want := []string{
		"get_nutrition_summary",
		"search_foods",
		"search_usda_foods",
		"get_nutrition_trends",
		"log_food_entry",
		"create_food",
		"get_workout_summary",
		"search_exercises",
		"get_workout_progression",
		"get_workout_trends",
		"log_workout",
		"create_exercise",
		"get_whoop_summary",
		"get_recovery_trends",
	}

	specs := r.Specs()
	if len(specs) != len(want) {
		t.Fatalf("got %d specs, want %d", len(specs), len(want))
	}
	for i, name := range want {
		if specs[i].Name != name {
			t.Errorf("specs[%d] = %q, want %q", i, specs[i].Name, name)
		}
		if specs[i].Description == "" {
			t.Errorf("%s has no description", name)
		}
		if specs[i].InputSchema["type"] != "object" {
			t.Errorf("%s schema is not an object", name)
		}
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r, _ := newTestRegistry(t)

	result := r.Execute(context.Background(), "teleport", nil, "u1")
	if got := errorField(t, result); got != "Unknown tool: teleport" {
		t.Errorf("error = %q", got)
	}
}

func TestExecuteAbsorbsHandlerErrors(t *testing.T) {
	r, _ := newTestRegistry(t)

	// An invalid meal type makes the nutrition service return an
	// error; the dispatcher must fold it into the payload.
	result := r.Execute(context.Background(), "log_food_entry", map[string]any{
		"food_id":   "nope",
		"meal_type": "brunch",
	}, "u1")
	msg := errorField(t, result)
	if !strings.HasPrefix(msg, "Tool 'log_food_entry' failed: ") {
		t.Errorf("error = %q, want wrapped failure", msg)
	}
}

func TestExecuteRecoversPanics(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.byName["get_whoop_summary"].Handler = func(ctx context.Context, userID string, input map[string]any) (any, error) {
		panic("boom")
	}

	result := r.Execute(context.Background(), "get_whoop_summary", nil, "u1")
	if got := errorField(t, result); got != "Tool 'get_whoop_summary' failed: boom" {
		t.Errorf("error = %q", got)
	}
}

func TestActionLabels(t *testing.T) {
	r, _ := newTestRegistry(t)

	labels := map[string]string{
		"get_nutrition_summary":   "Checked nutrition data",
		"search_foods":            "Searched foods",
		"search_usda_foods":       "Searched USDA database",
		"get_workout_summary":     "Checked workout data",
		"search_exercises":        "Searched exercises",
		"get_whoop_summary":       "Checked Whoop metrics",
		"get_nutrition_trends":    "Analyzed nutrition trends",
		"get_workout_progression": "Analyzed exercise progression",
		"get_workout_trends":      "Analyzed workout trends",
		"get_recovery_trends":     "Analyzed recovery trends",
		"log_food_entry":          "Logged food entry",
		"create_food":             "Created custom food",
		"log_workout":             "Logged workout",
		"create_exercise":         "Created exercise",
	}
	for name, want := range labels {
		if got := r.ActionLabel(name); got != want {
			t.Errorf("ActionLabel(%s) = %q, want %q", name, got, want)
		}
	}
	if got := r.ActionLabel("mystery_tool"); got != "mystery_tool" {
		t.Errorf("unknown tool label = %q, want the name back", got)
	}
}

func TestLogFoodEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, deps := newTestRegistry(t)

	food, err := deps.Nutrition.CreateFood(ctx, "u1", nutrition.FoodInput{
		Name: "Oatmeal", Calories: 150, ProteinG: 5, CarbsG: 27, FatG: 3,
	})
	if err != nil {
		t.Fatalf("create food: %v", err)
	}

	result := r.Execute(ctx, "log_food_entry", map[string]any{
		"food_id":   food.ID,
		"meal_type": "breakfast",
		"servings":  float64(2),
	}, "u1")
	entry, ok := result.(*nutrition.Entry)
	if !ok {
		t.Fatalf("result is %T, want *nutrition.Entry", result)
	}
	if entry.TotalCalories != 300 {
		t.Errorf("TotalCalories = %v, want 300", entry.TotalCalories)
	}

	result = r.Execute(ctx, "log_food_entry", map[string]any{
		"food_id":   "missing-id",
		"meal_type": "breakfast",
	}, "u1")
	if got := errorField(t, result); got != "Failed to create food entry. Check that the food_id is valid." {
		t.Errorf("error = %q", got)
	}
}

func TestWorkoutProgressionUnknownExercise(t *testing.T) {
	r, _ := newTestRegistry(t)

	result := r.Execute(context.Background(), "get_workout_progression", map[string]any{
		"exercise_name": "zercher squat",
	}, "u1")
	want := "Exercise 'zercher squat' not found. Try searching with search_exercises first."
	if got := errorField(t, result); got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestLogWorkoutTool(t *testing.T) {
	ctx := context.Background()
	r, deps := newTestRegistry(t)

	bench, err := deps.Workout.CreateExercise(ctx, "u1", workout.ExerciseInput{
		Name: "Bench Press", Category: "strength",
	})
	if err != nil {
		t.Fatalf("create exercise: %v", err)
	}

	result := r.Execute(ctx, "log_workout", map[string]any{
		"workout_type": "strength",
		"name":         "Upper Body",
		"sets": []any{
			map[string]any{
				"exercise_id": bench.ID,
				"set_type":    "strength",
				"reps":        float64(8),
				"weight_kg":   float64(80),
			},
			map[string]any{
				"exercise_id": bench.ID,
				"set_type":    "strength",
				"reps":        float64(6),
				"weight_kg":   float64(85),
			},
		},
	}, "u1")

	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want map", result)
	}
	if m["sets_created"] != 2 {
		t.Errorf("sets_created = %v, want 2", m["sets_created"])
	}
	session, ok := m["session"].(*workout.Session)
	if !ok {
		t.Fatalf("session is %T", m["session"])
	}
	if session.Name != "Upper Body" || len(session.Sets) != 2 {
		t.Errorf("unexpected session: %+v", session)
	}

	// All sets referencing unknown exercises: nothing is saved.
	result = r.Execute(ctx, "log_workout", map[string]any{
		"workout_type": "strength",
		"sets": []any{
			map[string]any{"exercise_id": "missing", "set_type": "strength"},
		},
	}, "u1")
	if got := errorField(t, result); got != "Failed to create any workout sets. Session was not saved." {
		t.Errorf("error = %q", got)
	}
}

func TestRecoveryTrendsNotConnected(t *testing.T) {
	r, _ := newTestRegistry(t)

	result := r.Execute(context.Background(), "get_recovery_trends", nil, "u1")
	want := "Whoop is not connected. The user needs to connect their Whoop account first."
	if got := errorField(t, result); got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestWhoopSummaryTool(t *testing.T) {
	ctx := context.Background()
	r, deps := newTestRegistry(t)

	if _, err := deps.Whoop.Connect(ctx, "u1", "whoop-1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	result := r.Execute(ctx, "get_whoop_summary", nil, "u1")
	sum, ok := result.(*whoop.DashboardSummary)
	if !ok {
		t.Fatalf("result is %T, want *whoop.DashboardSummary", result)
	}
	if !sum.IsConnected {
		t.Error("IsConnected = false after Connect")
	}
}
