// Package workout implements exercise and training tracking: an exercise
// catalog (global plus per-user), workout sessions with sets, daily
// summaries, per-exercise progression history, weekly trends, and goals.
package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DateLayout is the wire format for session and summary dates.
const DateLayout = "2006-01-02"

// ErrNotFound is returned when an exercise, session, or set does not
// exist or is not visible to the requesting user.
var ErrNotFound = errors.New("not found")

// ErrNoValidSets is returned by LogWorkout when every requested set was
// rejected and the session was rolled back.
var ErrNoValidSets = errors.New("no valid sets, session not saved")

// Categories classify exercises and workout sessions.
var Categories = []string{"strength", "cardio", "flexibility", "sports", "other"}

// Set types.
const (
	SetStrength = "strength"
	SetCardio   = "cardio"
)

// Exercise is one item in the exercise catalog. UserID is empty for
// global exercises visible to everyone.
type Exercise struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	MuscleGroups []string  `json:"muscle_groups,omitempty"`
	Equipment    string    `json:"equipment,omitempty"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExerciseInput carries the caller-supplied fields for creating an
// exercise.
type ExerciseInput struct {
	Name         string
	Category     string
	MuscleGroups []string
	Equipment    string
	IsVerified   bool
}

// Set is one logged exercise set. Strength sets use Reps/WeightKg/RPE;
// cardio sets use DurationSeconds/DistanceMeters and optionally heart
// rate and calories.
type Set struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	ExerciseID      string    `json:"exercise_id"`
	SetType         string    `json:"set_type"`
	SetOrder        int       `json:"set_order"`
	Reps            *int      `json:"reps,omitempty"`
	WeightKg        *float64  `json:"weight_kg,omitempty"`
	RPE             *float64  `json:"rpe,omitempty"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	DistanceMeters  *float64  `json:"distance_meters,omitempty"`
	AvgHeartRate    *int      `json:"avg_heart_rate,omitempty"`
	CaloriesBurned  *int      `json:"calories_burned,omitempty"`
	Exercise        *Exercise `json:"exercise,omitempty"`
}

// SetInput carries the caller-supplied fields for one set of a workout.
type SetInput struct {
	ExerciseID      string
	SetType         string
	Reps            *int
	WeightKg        *float64
	RPE             *float64
	DurationSeconds *int
	DistanceMeters  *float64
	AvgHeartRate    *int
	CaloriesBurned  *int
}

// Session is one workout session with its sets.
type Session struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	SessionDate     string     `json:"session_date"`
	WorkoutType     string     `json:"workout_type"`
	Name            string     `json:"name,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Sets            []Set      `json:"sets,omitempty"`
	TotalSets       int        `json:"total_sets"`
	DurationMinutes *int       `json:"total_duration_minutes,omitempty"`
}

// WorkoutInput carries the caller-supplied fields for logging a full
// workout session with its sets.
type WorkoutInput struct {
	WorkoutType string
	Name        string
	Date        time.Time // defaults to today
	Sets        []SetInput
}

// Goals holds a user's weekly training targets. Nil fields are unset.
type Goals struct {
	UserID                string    `json:"user_id"`
	WorkoutsPerWeekTarget *int      `json:"workouts_per_week_target,omitempty"`
	MinutesPerWeekTarget  *int      `json:"minutes_per_week_target,omitempty"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Service is the SQLite-backed workout tracker.
type Service struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens the database at dbPath and prepares the schema.
func New(dbPath string, logger *slog.Logger) (*Service, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s, err := NewWithDB(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB builds a service over an existing database connection.
func NewWithDB(db *sql.DB, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{db: db, logger: logger.With("component", "workout")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Service) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS exercises (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			muscle_groups TEXT,
			equipment TEXT,
			is_verified INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_exercises_name ON exercises(name);

		CREATE TABLE IF NOT EXISTS workout_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_date TEXT NOT NULL,
			workout_type TEXT NOT NULL,
			name TEXT,
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_date ON workout_sessions(user_id, session_date);

		CREATE TABLE IF NOT EXISTS workout_sets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			exercise_id TEXT NOT NULL,
			set_type TEXT NOT NULL,
			set_order INTEGER NOT NULL,
			reps INTEGER,
			weight_kg REAL,
			rpe REAL,
			duration_seconds INTEGER,
			distance_meters REAL,
			avg_heart_rate INTEGER,
			calories_burned INTEGER,
			FOREIGN KEY (session_id) REFERENCES workout_sessions(id),
			FOREIGN KEY (exercise_id) REFERENCES exercises(id)
		);
		CREATE INDEX IF NOT EXISTS idx_sets_session ON workout_sets(session_id, set_order);
		CREATE INDEX IF NOT EXISTS idx_sets_exercise ON workout_sets(user_id, exercise_id);

		CREATE TABLE IF NOT EXISTS workout_goals (
			user_id TEXT PRIMARY KEY,
			workouts_per_week_target INTEGER,
			minutes_per_week_target INTEGER,
			updated_at TIMESTAMP NOT NULL
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Service) Close() error {
	return s.db.Close()
}

// ValidCategory reports whether category is one of the known categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// GetGoals returns the user's workout goals, or nil when none are set.
func (s *Service) GetGoals(ctx context.Context, userID string) (*Goals, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, workouts_per_week_target, minutes_per_week_target, updated_at
		FROM workout_goals
		WHERE user_id = ?
	`, userID)

	var g Goals
	var workouts, minutes sql.NullInt64
	err := row.Scan(&g.UserID, &workouts, &minutes, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get goals: %w", err)
	}

	if workouts.Valid {
		v := int(workouts.Int64)
		g.WorkoutsPerWeekTarget = &v
	}
	if minutes.Valid {
		v := int(minutes.Int64)
		g.MinutesPerWeekTarget = &v
	}
	return &g, nil
}

// UpsertGoals creates or replaces the user's workout goals.
func (s *Service) UpsertGoals(ctx context.Context, userID string, goals Goals) (*Goals, error) {
	goals.UserID = userID
	goals.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workout_goals (user_id, workouts_per_week_target, minutes_per_week_target, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			workouts_per_week_target = excluded.workouts_per_week_target,
			minutes_per_week_target = excluded.minutes_per_week_target,
			updated_at = excluded.updated_at
	`, userID, goals.WorkoutsPerWeekTarget, goals.MinutesPerWeekTarget, goals.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert goals: %w", err)
	}

	return &goals, nil
}
