package workout

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

func mustCreateExercise(t *testing.T, s *Service, userID string, in ExerciseInput) *Exercise {
	t.Helper()
	ex, err := s.CreateExercise(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("CreateExercise: %v", err)
	}
	return ex
}

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func TestCreateExerciseValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.CreateExercise(ctx, "user-1", ExerciseInput{Name: "Bench Press", Category: "lifting"}); err == nil {
		t.Error("expected error for unknown category")
	}
	if _, err := s.CreateExercise(ctx, "user-1", ExerciseInput{Category: "strength"}); err == nil {
		t.Error("expected error for missing name")
	}

	ex := mustCreateExercise(t, s, "user-1", ExerciseInput{
		Name: "Incline Press", Category: "strength",
		MuscleGroups: []string{"chest", "shoulders"}, Equipment: "dumbbell",
	})
	got, err := s.GetExercise(ctx, ex.ID, "user-1")
	if err != nil {
		t.Fatalf("GetExercise: %v", err)
	}
	if len(got.MuscleGroups) != 2 || got.MuscleGroups[0] != "chest" {
		t.Errorf("muscle groups = %v", got.MuscleGroups)
	}
}

func TestSearchExercisesFilters(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreateExercise(t, s, "", ExerciseInput{Name: "Bench Press", Category: "strength", IsVerified: true})
	mustCreateExercise(t, s, "", ExerciseInput{Name: "Running", Category: "cardio", IsVerified: true})
	mustCreateExercise(t, s, "user-1", ExerciseInput{Name: "band press", Category: "strength"})
	mustCreateExercise(t, s, "user-2", ExerciseInput{Name: "Press Machine", Category: "strength"})

	exercises, total, err := s.SearchExercises(ctx, "user-1", "press", "", 10)
	if err != nil {
		t.Fatalf("SearchExercises: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if !exercises[0].IsVerified {
		t.Errorf("verified first, got %q", exercises[0].Name)
	}

	_, total, err = s.SearchExercises(ctx, "user-1", "", "cardio", 10)
	if err != nil {
		t.Fatalf("SearchExercises by category: %v", err)
	}
	if total != 1 {
		t.Errorf("cardio total = %d, want 1", total)
	}
}

func TestLogWorkoutAndGetSession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	bench := mustCreateExercise(t, s, "user-1", ExerciseInput{Name: "Bench Press", Category: "strength"})

	session, err := s.LogWorkout(ctx, "user-1", WorkoutInput{
		WorkoutType: "strength",
		Name:        "Upper Body",
		Date:        day,
		Sets: []SetInput{
			{ExerciseID: bench.ID, SetType: SetStrength, Reps: intp(5), WeightKg: floatp(100)},
			{ExerciseID: bench.ID, SetType: SetStrength, Reps: intp(3), WeightKg: floatp(110)},
		},
	})
	if err != nil {
		t.Fatalf("LogWorkout: %v", err)
	}

	if session.TotalSets != 2 {
		t.Errorf("total sets = %d, want 2", session.TotalSets)
	}
	if session.SessionDate != "2026-02-02" {
		t.Errorf("session date = %q", session.SessionDate)
	}
	if session.Sets[0].SetOrder != 1 || session.Sets[1].SetOrder != 2 {
		t.Errorf("set order = %d, %d", session.Sets[0].SetOrder, session.Sets[1].SetOrder)
	}
	if session.Sets[0].Exercise == nil || session.Sets[0].Exercise.Name != "Bench Press" {
		t.Error("sets should carry their exercise")
	}

	if _, err := s.GetSession(ctx, session.ID, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's session: err = %v, want ErrNotFound", err)
	}
}

func TestLogWorkoutCleansUpEmptySession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.LogWorkout(ctx, "user-1", WorkoutInput{
		WorkoutType: "strength",
		Sets:        []SetInput{{ExerciseID: "missing", SetType: SetStrength}},
	})
	if err == nil {
		t.Fatal("expected error when no set can be created")
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM workout_sessions`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("orphan sessions left behind: %d", count)
	}
}

func TestExerciseHistoryAggregation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	bench := mustCreateExercise(t, s, "user-1", ExerciseInput{Name: "Bench Press", Category: "strength"})
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := s.LogWorkout(ctx, "user-1", WorkoutInput{
		WorkoutType: "strength", Date: day,
		Sets: []SetInput{
			{ExerciseID: bench.ID, SetType: SetStrength, Reps: intp(5), WeightKg: floatp(100), RPE: floatp(8)},
			{ExerciseID: bench.ID, SetType: SetStrength, Reps: intp(3), WeightKg: floatp(110), RPE: floatp(9)},
			{ExerciseID: bench.ID, SetType: SetStrength, Reps: intp(8), WeightKg: floatp(90)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	points, err := s.ExerciseHistory(ctx, "user-1", bench.ID, day.AddDate(0, 0, -14), day.AddDate(0, 0, 14))
	if err != nil {
		t.Fatalf("ExerciseHistory: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}

	p := points[0]
	if p.MaxWeightKg == nil || *p.MaxWeightKg != 110 {
		t.Errorf("max weight = %v, want 110", p.MaxWeightKg)
	}
	// 100*5 + 110*3 + 90*8 = 1550
	if p.TotalVolumeKg != 1550 {
		t.Errorf("volume = %v, want 1550", p.TotalVolumeKg)
	}
	if p.TotalReps != 16 {
		t.Errorf("reps = %d, want 16", p.TotalReps)
	}
	if p.AvgRPE == nil || *p.AvgRPE != 8.5 {
		t.Errorf("avg rpe = %v, want 8.5", p.AvgRPE)
	}
	if p.TotalSets != 3 {
		t.Errorf("sets = %d, want 3", p.TotalSets)
	}
}

func TestExerciseHistoryGroupsByDate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	bench := mustCreateExercise(t, s, "user-1", ExerciseInput{Name: "Bench Press", Category: "strength"})
	day1 := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	// Two sessions on day1, one on day2.
	for _, w := range []struct {
		day    time.Time
		weight float64
		reps   int
	}{{day1, 100, 5}, {day1, 105, 5}, {day2, 80, 10}} {
		if _, err := s.LogWorkout(ctx, "user-1", WorkoutInput{
			WorkoutType: "strength", Date: w.day,
			Sets: []SetInput{{ExerciseID: bench.ID, SetType: SetStrength, Reps: intp(w.reps), WeightKg: floatp(w.weight)}},
		}); err != nil {
			t.Fatal(err)
		}
	}

	points, err := s.ExerciseHistory(ctx, "user-1", bench.ID, day1.AddDate(0, 0, -1), day2.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ExerciseHistory: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].Date != "2026-01-15" || points[0].MaxWeightKg == nil || *points[0].MaxWeightKg != 105 || points[0].TotalReps != 10 {
		t.Errorf("day1 point = %+v", points[0])
	}
	if points[1].Date != "2026-01-16" || *points[1].MaxWeightKg != 80 {
		t.Errorf("day2 point = %+v", points[1])
	}
}

func TestCardioHistoryPaceAndHeartRate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	run := mustCreateExercise(t, s, "user-1", ExerciseInput{Name: "Running", Category: "cardio"})
	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := s.LogWorkout(ctx, "user-1", WorkoutInput{
		WorkoutType: "cardio", Date: day,
		Sets: []SetInput{
			{ExerciseID: run.ID, SetType: SetCardio, DistanceMeters: floatp(5000), DurationSeconds: intp(1000), AvgHeartRate: intp(160)},
			{ExerciseID: run.ID, SetType: SetCardio, DistanceMeters: floatp(5000), DurationSeconds: intp(3000), AvgHeartRate: intp(140), CaloriesBurned: intp(650)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	points, err := s.CardioHistory(ctx, "user-1", run.ID, day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("CardioHistory: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}

	p := points[0]
	if p.TotalDistanceMeters != 10000 || p.TotalDurationSeconds != 4000 {
		t.Errorf("totals = %v m, %d s", p.TotalDistanceMeters, p.TotalDurationSeconds)
	}
	if p.TotalCalories != 650 {
		t.Errorf("calories = %d, want 650", p.TotalCalories)
	}
	// 4000s / 10km = 400 s/km
	if p.AvgPaceSecondsPerKm == nil || *p.AvgPaceSecondsPerKm != 400 {
		t.Errorf("pace = %v, want 400", p.AvgPaceSecondsPerKm)
	}
	// (160*1000 + 140*3000) / 4000 = 145
	if p.AvgHeartRate == nil || *p.AvgHeartRate != 145 {
		t.Errorf("heart rate = %v, want 145", p.AvgHeartRate)
	}
}

func TestWeeklyTrendsGrouping(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	bench := mustCreateExercise(t, s, "user-1", ExerciseInput{Name: "Bench Press", Category: "strength"})

	// Sun 2026-01-11 is W02; Mon 2026-01-12 is W03.
	sunday := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)

	for _, w := range []struct {
		day    time.Time
		weight float64
	}{{sunday, 50}, {monday, 60}} {
		if _, err := s.LogWorkout(ctx, "user-1", WorkoutInput{
			WorkoutType: "strength", Date: w.day,
			Sets: []SetInput{{ExerciseID: bench.ID, SetType: SetStrength, Reps: intp(10), WeightKg: floatp(w.weight)}},
		}); err != nil {
			t.Fatal(err)
		}
	}

	weeks, err := s.WeeklyTrends(ctx, "user-1", sunday.AddDate(0, 0, -7), monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("WeeklyTrends: %v", err)
	}
	if len(weeks) != 2 {
		t.Fatalf("got %d weeks, want 2", len(weeks))
	}
	if weeks[0].Week != "2026-W02" || weeks[0].TotalSessions != 1 || weeks[0].TotalVolumeKg != 500 {
		t.Errorf("week 1 = %+v", weeks[0])
	}
	if weeks[1].Week != "2026-W03" || weeks[1].TotalVolumeKg != 600 {
		t.Errorf("week 2 = %+v", weeks[1])
	}
}

func TestWeeklyTrendsEmpty(t *testing.T) {
	s := newTestService(t)

	weeks, err := s.WeeklyTrends(context.Background(), "user-1",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WeeklyTrends: %v", err)
	}
	if len(weeks) != 0 {
		t.Errorf("expected no weeks, got %d", len(weeks))
	}
}

func TestDailySummaryTotals(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	day := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	bench := mustCreateExercise(t, s, "user-1", ExerciseInput{Name: "Bench Press", Category: "strength"})
	run := mustCreateExercise(t, s, "user-1", ExerciseInput{Name: "Running", Category: "cardio"})

	if _, err := s.LogWorkout(ctx, "user-1", WorkoutInput{
		WorkoutType: "strength", Date: day,
		Sets: []SetInput{
			{ExerciseID: bench.ID, SetType: SetStrength, Reps: intp(5), WeightKg: floatp(100)},
			{ExerciseID: run.ID, SetType: SetCardio, DistanceMeters: floatp(5000), DurationSeconds: intp(1500)},
		},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.UpsertGoals(ctx, "user-1", Goals{WorkoutsPerWeekTarget: intp(4)}); err != nil {
		t.Fatal(err)
	}

	summary, err := s.DailySummary(ctx, "user-1", day)
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}

	if summary.TotalSessions != 1 || summary.TotalSets != 2 {
		t.Errorf("sessions/sets = %d/%d", summary.TotalSessions, summary.TotalSets)
	}
	if summary.TotalVolumeKg == nil || *summary.TotalVolumeKg != 500 {
		t.Errorf("volume = %v, want 500", summary.TotalVolumeKg)
	}
	if summary.TotalDistanceMeters == nil || *summary.TotalDistanceMeters != 5000 {
		t.Errorf("distance = %v, want 5000", summary.TotalDistanceMeters)
	}
	if len(summary.Exercises) != 2 {
		t.Fatalf("got %d exercise summaries, want 2", len(summary.Exercises))
	}
	if summary.Exercises[0].ExerciseName != "Bench Press" {
		t.Errorf("first exercise = %q", summary.Exercises[0].ExerciseName)
	}
	if summary.WorkoutsPerWeekTarget == nil || *summary.WorkoutsPerWeekTarget != 4 {
		t.Errorf("workouts target = %v", summary.WorkoutsPerWeekTarget)
	}
}
