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

// LogWorkout creates a session and its sets in one call. Sets whose
// exercise is missing or not visible to the user are skipped; if no set
// can be created the session is rolled back and an error returned, so
// empty sessions never persist.
func (s *Service) LogWorkout(ctx context.Context, userID string, in WorkoutInput) (*Session, error) {
	if !ValidCategory(in.WorkoutType) {
		return nil, fmt.Errorf("invalid workout type %q", in.WorkoutType)
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	now := time.Now().UTC()
	sessionID := uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workout_sessions (id, user_id, session_date, workout_type, name, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, userID, in.Date.Format(DateLayout), in.WorkoutType, in.Name, now, now, now)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	created := 0
	for i, set := range in.Sets {
		if _, err := s.GetExercise(ctx, set.ExerciseID, userID); err != nil {
			s.logger.Warn("skipping set with unknown exercise", "exercise_id", set.ExerciseID)
			continue
		}
		if set.SetType != SetStrength && set.SetType != SetCardio {
			s.logger.Warn("skipping set with invalid type", "set_type", set.SetType)
			continue
		}

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO workout_sets (id, user_id, session_id, exercise_id, set_type, set_order,
				reps, weight_kg, rpe, duration_seconds, distance_meters, avg_heart_rate, calories_burned)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), userID, sessionID, set.ExerciseID, set.SetType, i+1,
			set.Reps, set.WeightKg, set.RPE, set.DurationSeconds, set.DistanceMeters,
			set.AvgHeartRate, set.CaloriesBurned)
		if err != nil {
			return nil, fmt.Errorf("create set: %w", err)
		}
		created++
	}

	if created == 0 {
		if _, err := s.DeleteSession(ctx, sessionID, userID); err != nil {
			s.logger.Error("failed to clean up empty session", "session_id", sessionID, "error", err)
		}
		return nil, ErrNoValidSets
	}

	s.logger.Info("logged workout", "user_id", userID, "session_id", sessionID, "sets", created)
	return s.GetSession(ctx, sessionID, userID)
}

// GetSession fetches a session with its sets and exercises, scoped to
// the owner.
func (s *Service) GetSession(ctx context.Context, sessionID, userID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_date, workout_type, COALESCE(name, ''), start_time, end_time
		FROM workout_sessions
		WHERE id = ? AND user_id = ?
	`, sessionID, userID)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ws.id, ws.session_id, ws.exercise_id, ws.set_type, ws.set_order,
			ws.reps, ws.weight_kg, ws.rpe, ws.duration_seconds, ws.distance_meters,
			ws.avg_heart_rate, ws.calories_burned,
			e.id, e.user_id, e.name, e.category, COALESCE(e.muscle_groups, '[]'),
			COALESCE(e.equipment, ''), e.is_verified, e.created_at
		FROM workout_sets ws
		JOIN exercises e ON e.id = ws.exercise_id
		WHERE ws.session_id = ?
		ORDER BY ws.set_order ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		set, err := scanSetWithExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scan set: %w", err)
		}
		session.Sets = append(session.Sets, *set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	session.TotalSets = len(session.Sets)
	session.DurationMinutes = sessionDuration(session)
	return session, nil
}

// DeleteSession removes a session and its sets, scoped to the owner.
// Returns false when nothing was deleted.
func (s *Service) DeleteSession(ctx context.Context, sessionID, userID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM workout_sessions WHERE id = ? AND user_id = ?
	`, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workout_sets WHERE session_id = ?`, sessionID); err != nil {
		return false, fmt.Errorf("delete sets: %w", err)
	}

	return true, tx.Commit()
}

// SessionsByDate returns the user's sessions for one day, without sets
// but with set counts and durations.
func (s *Service) SessionsByDate(ctx context.Context, userID string, day time.Time) ([]Session, error) {
	return s.sessionsWhere(ctx, userID, `session_date = ?`, day.Format(DateLayout))
}

// SessionsByRange returns the user's sessions with session_date in
// [start, end], oldest first.
func (s *Service) SessionsByRange(ctx context.Context, userID string, start, end time.Time) ([]Session, error) {
	return s.sessionsWhere(ctx, userID, `session_date >= ? AND session_date <= ?`,
		start.Format(DateLayout), end.Format(DateLayout))
}

func (s *Service) sessionsWhere(ctx context.Context, userID, cond string, args ...any) ([]Session, error) {
	query := `
		SELECT id, user_id, session_date, workout_type, COALESCE(name, ''), start_time, end_time
		FROM workout_sessions
		WHERE user_id = ? AND ` + cond + `
		ORDER BY session_date ASC, start_time ASC
	`
	rows, err := s.db.QueryContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sessions {
		var count int
		if err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM workout_sets WHERE session_id = ?
		`, sessions[i].ID).Scan(&count); err != nil {
			return nil, fmt.Errorf("count sets: %w", err)
		}
		sessions[i].TotalSets = count
		sessions[i].DurationMinutes = sessionDuration(&sessions[i])
	}

	return sessions, nil
}

func scanSession(row rowScanner) (*Session, error) {
	var session Session
	var start, end sql.NullTime
	err := row.Scan(&session.ID, &session.UserID, &session.SessionDate, &session.WorkoutType,
		&session.Name, &start, &end)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		t := start.Time
		session.StartTime = &t
	}
	if end.Valid {
		t := end.Time
		session.EndTime = &t
	}
	return &session, nil
}

func scanSetWithExercise(row rowScanner) (*Set, error) {
	var set Set
	var reps, duration, hr, calories sql.NullInt64
	var weight, rpe, distance sql.NullFloat64
	var ex Exercise
	var owner sql.NullString
	var groups string

	err := row.Scan(&set.ID, &set.SessionID, &set.ExerciseID, &set.SetType, &set.SetOrder,
		&reps, &weight, &rpe, &duration, &distance, &hr, &calories,
		&ex.ID, &owner, &ex.Name, &ex.Category, &groups, &ex.Equipment, &ex.IsVerified, &ex.CreatedAt)
	if err != nil {
		return nil, err
	}

	set.Reps = nullableInt(reps)
	set.DurationSeconds = nullableInt(duration)
	set.AvgHeartRate = nullableInt(hr)
	set.CaloriesBurned = nullableInt(calories)
	set.WeightKg = nullableFloat(weight)
	set.RPE = nullableFloat(rpe)
	set.DistanceMeters = nullableFloat(distance)

	ex.UserID = owner.String
	if err := json.Unmarshal([]byte(groups), &ex.MuscleGroups); err != nil {
		return nil, fmt.Errorf("decode muscle groups: %w", err)
	}
	set.Exercise = &ex
	return &set, nil
}

// sessionDuration computes the session length in whole minutes, or nil
// when start/end are missing or inverted.
func sessionDuration(session *Session) *int {
	if session.StartTime == nil || session.EndTime == nil {
		return nil
	}
	minutes := int(session.EndTime.Sub(*session.StartTime).Minutes())
	if minutes <= 0 {
		return nil
	}
	return &minutes
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
