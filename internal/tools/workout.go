package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/myhealth-io/myhealthd/internal/workout"
)

func workoutTools(deps Deps, logger *slog.Logger) []Tool {
	return []Tool{
		{
			Name:        "get_workout_summary",
			Description: "Get the user's workout summary for a specific date including sessions, exercises, sets, volume, and distance.",
			Label:       "Checked workout data",
			InputSchema: objectSchema(map[string]any{
				"date": map[string]any{
					"type":        "string",
					"description": "Date in YYYY-MM-DD format. Defaults to today.",
				},
			}),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				return deps.Workout.DailySummary(ctx, userID, dateArg(input, "date", logger))
			},
		},
		{
			Name:        "search_exercises",
			Description: "Search for exercises by name and/or category. Use this before logging a workout to find the exercise_id.",
			Label:       "Searched exercises",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Exercise name to search for (e.g. 'bench press', 'squat').",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Filter by category: 'strength', 'cardio', 'flexibility', 'sports', 'other'.",
					"enum":        workout.Categories,
				},
			}),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				exercises, total, err := deps.Workout.SearchExercises(ctx, userID,
					stringArg(input, "query"), stringArg(input, "category"), 10)
				if err != nil {
					return nil, err
				}
				return map[string]any{"exercises": exercises, "total": total}, nil
			},
		},
		{
			Name:        "get_workout_progression",
			Description: "Analyze progression for a specific exercise over time. For strength: tracks max weight, volume, reps. For cardio: tracks pace, distance, duration. Returns data points and first-vs-last comparison.",
			Label:       "Analyzed exercise progression",
			InputSchema: objectSchema(map[string]any{
				"exercise_name": map[string]any{
					"type":        "string",
					"description": "Name of the exercise to analyze (e.g. 'bench press', 'running').",
				},
				"days": map[string]any{
					"type":        "integer",
					"description": "Number of days to look back. Defaults to 30, max 90.",
				},
			}, "exercise_name"),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				return workoutProgression(ctx, deps.Workout, userID, input)
			},
		},
		{
			Name:        "get_workout_trends",
			Description: "Analyze weekly workout trends including session count, total volume, distance, and duration. Compares against workout goals if set.",
			Label:       "Analyzed workout trends",
			InputSchema: objectSchema(map[string]any{
				"weeks": map[string]any{
					"type":        "integer",
					"description": "Number of weeks to analyze. Defaults to 4, max 12.",
				},
			}),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				return workoutTrends(ctx, deps.Workout, userID, input)
			},
		},
		{
			Name:        "log_workout",
			Description: "Log a workout session with sets. For strength: provide reps and weight. For cardio: provide duration and/or distance. Can log multiple exercises in one session.",
			Label:       "Logged workout",
			InputSchema: objectSchema(map[string]any{
				"workout_type": map[string]any{
					"type":        "string",
					"description": "Type of workout: 'strength', 'cardio', 'flexibility', 'sports', 'other'.",
					"enum":        workout.Categories,
				},
				"name": map[string]any{
					"type":        "string",
					"description": "Optional workout session name (e.g. 'Morning Run', 'Upper Body').",
				},
				"date": map[string]any{
					"type":        "string",
					"description": "Date in YYYY-MM-DD format. Defaults to today.",
				},
				"sets": map[string]any{
					"type":        "array",
					"description": "List of exercise sets to log.",
					"items": objectSchema(map[string]any{
						"exercise_id": map[string]any{
							"type":        "string",
							"description": "UUID of the exercise (from search_exercises or create_exercise).",
						},
						"set_type": map[string]any{
							"type":        "string",
							"description": "'strength' or 'cardio'.",
							"enum":        []string{"strength", "cardio"},
						},
						"reps": map[string]any{
							"type":        "integer",
							"description": "Number of reps (strength sets).",
						},
						"weight_kg": map[string]any{
							"type":        "number",
							"description": "Weight in kg (strength sets). Convert lbs to kg by dividing by 2.205.",
						},
						"duration_seconds": map[string]any{
							"type":        "integer",
							"description": "Duration in seconds (cardio sets).",
						},
						"distance_meters": map[string]any{
							"type":        "number",
							"description": "Distance in meters (cardio sets). 1 mile = 1609.34m, 1 km = 1000m.",
						},
					}, "exercise_id", "set_type"),
				},
			}, "workout_type", "sets"),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				return logWorkout(ctx, deps.Workout, userID, input, logger)
			},
		},
		{
			Name:        "create_exercise",
			Description: "Create a custom exercise. Use when an exercise isn't found via search_exercises. Returns the new exercise with its exercise_id.",
			Label:       "Created exercise",
			InputSchema: objectSchema(map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Exercise name (e.g. 'Incline Dumbbell Press').",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Category: 'strength', 'cardio', 'flexibility', 'sports', 'other'.",
					"enum":        workout.Categories,
				},
				"muscle_groups": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Target muscle groups (e.g. ['chest', 'shoulders', 'triceps']).",
				},
				"equipment": map[string]any{
					"type":        "string",
					"description": "Equipment needed (e.g. 'dumbbell', 'barbell', 'bodyweight').",
				},
			}, "name", "category"),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				var groups []string
				if raw, ok := input["muscle_groups"].([]any); ok {
					for _, g := range raw {
						if s, ok := g.(string); ok {
							groups = append(groups, s)
						}
					}
				}
				return deps.Workout.CreateExercise(ctx, userID, workout.ExerciseInput{
					Name:         stringArg(input, "name"),
					Category:     stringArg(input, "category"),
					MuscleGroups: groups,
					Equipment:    stringArg(input, "equipment"),
				})
			},
		},
	}
}

func workoutProgression(ctx context.Context, svc *workout.Service, userID string, input map[string]any) (any, error) {
	name := stringArg(input, "exercise_name")
	days := intArg(input, "days", 30)
	if days > 90 {
		days = 90
	}

	exercises, _, err := svc.SearchExercises(ctx, userID, name, "", 5)
	if err != nil {
		return nil, err
	}
	if len(exercises) == 0 {
		return map[string]any{
			"error": fmt.Sprintf("Exercise '%s' not found. Try searching with search_exercises first.", name),
		}, nil
	}

	exercise := exercises[0]
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	info := map[string]any{"name": exercise.Name, "id": exercise.ID, "category": exercise.Category}

	if exercise.Category == "cardio" {
		points, err := svc.CardioHistory(ctx, userID, exercise.ID, start, end)
		if err != nil {
			return nil, err
		}
		summary := map[string]any{}
		if len(points) >= 2 {
			first, last := points[0], points[len(points)-1]
			if first.AvgPaceSecondsPerKm != nil && last.AvgPaceSecondsPerKm != nil {
				change := *last.AvgPaceSecondsPerKm - *first.AvgPaceSecondsPerKm
				summary["pace_change_seconds_per_km"] = change
				summary["pace_improved"] = change < 0 // lower pace is faster
			}
			if first.TotalDistanceMeters > 0 && last.TotalDistanceMeters > 0 {
				pct := (last.TotalDistanceMeters - first.TotalDistanceMeters) / first.TotalDistanceMeters * 100
				summary["distance_change_pct"] = round1(pct)
			}
		}
		return map[string]any{
			"exercise":       info,
			"type":           "cardio",
			"data_points":    points,
			"total_sessions": len(points),
			"summary":        summary,
		}, nil
	}

	points, err := svc.ExerciseHistory(ctx, userID, exercise.ID, start, end)
	if err != nil {
		return nil, err
	}
	summary := map[string]any{}
	if len(points) >= 2 {
		first, last := points[0], points[len(points)-1]
		if first.MaxWeightKg != nil && *first.MaxWeightKg > 0 && last.MaxWeightKg != nil {
			pct := (*last.MaxWeightKg - *first.MaxWeightKg) / *first.MaxWeightKg * 100
			summary["weight_change_pct"] = round1(pct)
		}
		if first.TotalVolumeKg > 0 && last.TotalVolumeKg > 0 {
			pct := (last.TotalVolumeKg - first.TotalVolumeKg) / first.TotalVolumeKg * 100
			summary["volume_change_pct"] = round1(pct)
		}
	}
	return map[string]any{
		"exercise":       info,
		"type":           "strength",
		"data_points":    points,
		"total_sessions": len(points),
		"summary":        summary,
	}, nil
}

func workoutTrends(ctx context.Context, svc *workout.Service, userID string, input map[string]any) (any, error) {
	weeks := intArg(input, "weeks", 4)
	if weeks > 12 {
		weeks = 12
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -weeks*7)

	weekly, err := svc.WeeklyTrends(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	goals, err := svc.GetGoals(ctx, userID)
	if err != nil {
		return nil, err
	}

	averages := map[string]any{}
	if len(weekly) > 0 {
		var sessions, sets int
		var volume, minutes float64
		for _, w := range weekly {
			sessions += w.TotalSessions
			sets += w.TotalSets
			volume += w.TotalVolumeKg
			minutes += w.TotalDurationMinutes
		}
		n := float64(len(weekly))
		averages = map[string]any{
			"sessions_per_week":         round1(float64(sessions) / n),
			"sets_per_week":             round1(float64(sets) / n),
			"volume_kg_per_week":        round1(volume / n),
			"duration_minutes_per_week": round1(minutes / n),
		}
	}

	if weekly == nil {
		weekly = []workout.WeekSummary{}
	}
	return map[string]any{
		"weekly_data":    weekly,
		"averages":       averages,
		"goals":          goals,
		"weeks_analyzed": len(weekly),
	}, nil
}

func logWorkout(ctx context.Context, svc *workout.Service, userID string, input map[string]any, logger *slog.Logger) (any, error) {
	in := workout.WorkoutInput{
		WorkoutType: stringArg(input, "workout_type"),
		Name:        stringArg(input, "name"),
		Date:        dateArg(input, "date", logger),
	}

	rawSets, _ := input["sets"].([]any)
	for _, raw := range rawSets {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		set := workout.SetInput{
			ExerciseID: stringArg(m, "exercise_id"),
			SetType:    stringArg(m, "set_type"),
		}
		switch set.SetType {
		case workout.SetStrength:
			set.Reps = intPtrArg(m, "reps")
			set.WeightKg = floatPtrArg(m, "weight_kg")
		case workout.SetCardio:
			set.DurationSeconds = intPtrArg(m, "duration_seconds")
			set.DistanceMeters = floatPtrArg(m, "distance_meters")
		}
		in.Sets = append(in.Sets, set)
	}

	session, err := svc.LogWorkout(ctx, userID, in)
	if errors.Is(err, workout.ErrNoValidSets) {
		return map[string]any{"error": "Failed to create any workout sets. Session was not saved."}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"session":      session,
		"sets_created": session.TotalSets,
	}, nil
}
