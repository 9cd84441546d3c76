package workout

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// ExerciseSummary aggregates one exercise's sets within a day.
type ExerciseSummary struct {
	ExerciseID           string   `json:"exercise_id"`
	ExerciseName         string   `json:"exercise_name"`
	Category             string   `json:"category"`
	TotalSets            int      `json:"total_sets"`
	TotalReps            int      `json:"total_reps"`
	MaxWeightKg          *float64 `json:"max_weight_kg,omitempty"`
	TotalVolumeKg        float64  `json:"total_volume_kg"`
	TotalDurationSeconds int      `json:"total_duration_seconds"`
	TotalDistanceMeters  float64  `json:"total_distance_meters"`
}

// DaySummary is the full workout picture for one day.
type DaySummary struct {
	Date                  string            `json:"date"`
	Sessions              []Session         `json:"sessions"`
	Exercises             []ExerciseSummary `json:"exercises"`
	TotalSessions         int               `json:"total_sessions"`
	TotalSets             int               `json:"total_sets"`
	TotalDurationMinutes  int               `json:"total_duration_minutes"`
	TotalVolumeKg         *float64          `json:"total_volume_kg,omitempty"`
	TotalDistanceMeters   *float64          `json:"total_distance_meters,omitempty"`
	WorkoutsPerWeekTarget *int              `json:"workouts_per_week_target,omitempty"`
	MinutesPerWeekTarget  *int              `json:"minutes_per_week_target,omitempty"`
}

// StrengthPoint is one day of aggregated strength work for an exercise.
type StrengthPoint struct {
	Date          string   `json:"date"`
	TotalSets     int      `json:"total_sets"`
	TotalReps     int      `json:"total_reps"`
	MaxWeightKg   *float64 `json:"max_weight_kg,omitempty"`
	TotalVolumeKg float64  `json:"total_volume_kg"`
	AvgRPE        *float64 `json:"avg_rpe,omitempty"`
}

// CardioPoint is one day of aggregated cardio work for an exercise.
// Pace is seconds per kilometer; heart rate is duration-weighted.
type CardioPoint struct {
	Date                 string   `json:"date"`
	TotalSets            int      `json:"total_sets"`
	TotalDistanceMeters  float64  `json:"total_distance_meters"`
	TotalDurationSeconds int      `json:"total_duration_seconds"`
	TotalCalories        int      `json:"total_calories"`
	AvgPaceSecondsPerKm  *float64 `json:"avg_pace_seconds_per_km,omitempty"`
	AvgHeartRate         *float64 `json:"avg_heart_rate,omitempty"`
}

// WeekSummary aggregates one ISO week of training.
type WeekSummary struct {
	Week                 string  `json:"week"` // e.g. "2026-W03"
	TotalSessions        int     `json:"total_sessions"`
	TotalSets            int     `json:"total_sets"`
	TotalVolumeKg        float64 `json:"total_volume_kg"`
	TotalDistanceMeters  float64 `json:"total_distance_meters"`
	TotalDurationMinutes float64 `json:"total_duration_minutes"`
}

// DailySummary aggregates a day's sessions, per-exercise totals, and
// attaches the user's goal targets when set.
func (s *Service) DailySummary(ctx context.Context, userID string, day time.Time) (*DaySummary, error) {
	sessions, err := s.SessionsByDate(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	goals, err := s.GetGoals(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &DaySummary{
		Date:          day.Format(DateLayout),
		Sessions:      sessions,
		Exercises:     []ExerciseSummary{},
		TotalSessions: len(sessions),
	}

	byExercise := map[string]*ExerciseSummary{}
	var order []string
	var totalVolume, totalDistance float64

	for _, session := range sessions {
		full, err := s.GetSession(ctx, session.ID, userID)
		if err != nil {
			return nil, err
		}

		summary.TotalSets += len(full.Sets)
		if full.DurationMinutes != nil {
			summary.TotalDurationMinutes += *full.DurationMinutes
		}

		for _, set := range full.Sets {
			es, ok := byExercise[set.ExerciseID]
			if !ok {
				es = &ExerciseSummary{ExerciseID: set.ExerciseID, ExerciseName: "Unknown", Category: "other"}
				if set.Exercise != nil {
					es.ExerciseName = set.Exercise.Name
					es.Category = set.Exercise.Category
				}
				byExercise[set.ExerciseID] = es
				order = append(order, set.ExerciseID)
			}

			es.TotalSets++
			if set.Reps != nil {
				es.TotalReps += *set.Reps
			}
			if set.WeightKg != nil {
				if es.MaxWeightKg == nil || *set.WeightKg > *es.MaxWeightKg {
					w := *set.WeightKg
					es.MaxWeightKg = &w
				}
				if set.Reps != nil {
					volume := *set.WeightKg * float64(*set.Reps)
					es.TotalVolumeKg += volume
					totalVolume += volume
				}
			}
			if set.DurationSeconds != nil {
				es.TotalDurationSeconds += *set.DurationSeconds
			}
			if set.DistanceMeters != nil {
				es.TotalDistanceMeters += *set.DistanceMeters
				totalDistance += *set.DistanceMeters
			}
		}
	}

	for _, id := range order {
		summary.Exercises = append(summary.Exercises, *byExercise[id])
	}
	if totalVolume > 0 {
		summary.TotalVolumeKg = &totalVolume
	}
	if totalDistance > 0 {
		summary.TotalDistanceMeters = &totalDistance
	}
	if goals != nil {
		summary.WorkoutsPerWeekTarget = goals.WorkoutsPerWeekTarget
		summary.MinutesPerWeekTarget = goals.MinutesPerWeekTarget
	}

	return summary, nil
}

// ExerciseHistory returns per-date strength aggregates for one exercise
// over [start, end], oldest first. Sets from different sessions on the
// same date merge into one point.
func (s *Service) ExerciseHistory(ctx context.Context, userID, exerciseID string, start, end time.Time) ([]StrengthPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sess.session_date, ws.reps, ws.weight_kg, ws.rpe
		FROM workout_sets ws
		JOIN workout_sessions sess ON sess.id = ws.session_id
		WHERE ws.user_id = ? AND ws.exercise_id = ?
			AND sess.session_date >= ? AND sess.session_date <= ?
		ORDER BY sess.session_date ASC
	`, userID, exerciseID, start.Format(DateLayout), end.Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("exercise history: %w", err)
	}
	defer rows.Close()

	type acc struct {
		point    StrengthPoint
		rpeSum   float64
		rpeCount int
	}
	byDate := map[string]*acc{}

	for rows.Next() {
		var date string
		var reps sql.NullInt64
		var weight, rpe sql.NullFloat64
		if err := rows.Scan(&date, &reps, &weight, &rpe); err != nil {
			return nil, fmt.Errorf("scan set: %w", err)
		}

		a, ok := byDate[date]
		if !ok {
			a = &acc{point: StrengthPoint{Date: date}}
			byDate[date] = a
		}

		a.point.TotalSets++
		if reps.Valid {
			a.point.TotalReps += int(reps.Int64)
		}
		if weight.Valid {
			if a.point.MaxWeightKg == nil || weight.Float64 > *a.point.MaxWeightKg {
				w := weight.Float64
				a.point.MaxWeightKg = &w
			}
			if reps.Valid {
				a.point.TotalVolumeKg += weight.Float64 * float64(reps.Int64)
			}
		}
		if rpe.Valid {
			a.rpeSum += rpe.Float64
			a.rpeCount++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var points []StrengthPoint
	for _, a := range byDate {
		if a.rpeCount > 0 {
			avg := a.rpeSum / float64(a.rpeCount)
			a.point.AvgRPE = &avg
		}
		points = append(points, a.point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

// CardioHistory returns per-date cardio aggregates for one exercise
// over [start, end], oldest first.
func (s *Service) CardioHistory(ctx context.Context, userID, exerciseID string, start, end time.Time) ([]CardioPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sess.session_date, ws.duration_seconds, ws.distance_meters, ws.avg_heart_rate, ws.calories_burned
		FROM workout_sets ws
		JOIN workout_sessions sess ON sess.id = ws.session_id
		WHERE ws.user_id = ? AND ws.exercise_id = ?
			AND sess.session_date >= ? AND sess.session_date <= ?
		ORDER BY sess.session_date ASC
	`, userID, exerciseID, start.Format(DateLayout), end.Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("cardio history: %w", err)
	}
	defer rows.Close()

	type acc struct {
		point      CardioPoint
		hrWeighted float64
		hrDuration float64
	}
	byDate := map[string]*acc{}

	for rows.Next() {
		var date string
		var duration, hr, calories sql.NullInt64
		var distance sql.NullFloat64
		if err := rows.Scan(&date, &duration, &distance, &hr, &calories); err != nil {
			return nil, fmt.Errorf("scan set: %w", err)
		}

		a, ok := byDate[date]
		if !ok {
			a = &acc{point: CardioPoint{Date: date}}
			byDate[date] = a
		}

		a.point.TotalSets++
		if duration.Valid {
			a.point.TotalDurationSeconds += int(duration.Int64)
		}
		if distance.Valid {
			a.point.TotalDistanceMeters += distance.Float64
		}
		if calories.Valid {
			a.point.TotalCalories += int(calories.Int64)
		}
		if hr.Valid && duration.Valid {
			a.hrWeighted += float64(hr.Int64) * float64(duration.Int64)
			a.hrDuration += float64(duration.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var points []CardioPoint
	for _, a := range byDate {
		if a.point.TotalDistanceMeters > 0 && a.point.TotalDurationSeconds > 0 {
			pace := float64(a.point.TotalDurationSeconds) / (a.point.TotalDistanceMeters / 1000)
			a.point.AvgPaceSecondsPerKm = &pace
		}
		if a.hrDuration > 0 {
			avg := a.hrWeighted / a.hrDuration
			a.point.AvgHeartRate = &avg
		}
		points = append(points, a.point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

// WeeklyTrends groups the user's sessions in [start, end] by ISO week
// and aggregates session count, sets, strength volume, cardio distance,
// and duration. Weeks without sessions are omitted.
func (s *Service) WeeklyTrends(ctx context.Context, userID string, start, end time.Time) ([]WeekSummary, error) {
	sessions, err := s.SessionsByRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	byWeek := map[string]*WeekSummary{}
	for _, session := range sessions {
		day, err := time.Parse(DateLayout, session.SessionDate)
		if err != nil {
			continue
		}
		year, week := day.ISOWeek()
		label := fmt.Sprintf("%d-W%02d", year, week)

		ws, ok := byWeek[label]
		if !ok {
			ws = &WeekSummary{Week: label}
			byWeek[label] = ws
		}

		ws.TotalSessions++
		if session.DurationMinutes != nil {
			ws.TotalDurationMinutes += float64(*session.DurationMinutes)
		}

		full, err := s.GetSession(ctx, session.ID, userID)
		if err != nil {
			return nil, err
		}
		ws.TotalSets += len(full.Sets)
		for _, set := range full.Sets {
			if set.WeightKg != nil && set.Reps != nil {
				ws.TotalVolumeKg += *set.WeightKg * float64(*set.Reps)
			}
			if set.DistanceMeters != nil {
				ws.TotalDistanceMeters += *set.DistanceMeters
			}
		}
	}

	var weeks []WeekSummary
	for _, ws := range byWeek {
		weeks = append(weeks, *ws)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Week < weeks[j].Week })
	return weeks, nil
}
