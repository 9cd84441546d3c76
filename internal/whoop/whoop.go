// Package whoop stores synced Whoop wearable data (cycles, recovery,
// sleep, workouts) and derives dashboard summaries and recovery trends
// from it.
package whoop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotConnected is returned by operations that require a linked Whoop
// account when the user has none.
var ErrNotConnected = errors.New("whoop is not connected")

// Connection links an application user to a Whoop account.
type Connection struct {
	UserID      string     `json:"user_id"`
	WhoopUserID string     `json:"whoop_user_id"`
	ConnectedAt time.Time  `json:"connected_at"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
}

// Cycle is one Whoop physiological cycle (roughly a day).
type Cycle struct {
	UserID       string     `json:"user_id"`
	CycleID      int64      `json:"whoop_cycle_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	StrainScore  *float64   `json:"strain_score,omitempty"`
	Kilojoules   *float64   `json:"kilojoules,omitempty"`
	AvgHeartRate *float64   `json:"average_heart_rate,omitempty"`
	MaxHeartRate *float64   `json:"max_heart_rate,omitempty"`
}

// Recovery is the recovery assessment for one cycle.
type Recovery struct {
	UserID           string    `json:"user_id"`
	CycleID          int64     `json:"whoop_cycle_id"`
	RecoveryScore    *float64  `json:"recovery_score,omitempty"`
	RestingHeartRate *float64  `json:"resting_heart_rate,omitempty"`
	HRVRmssdMilli    *float64  `json:"hrv_rmssd_milli,omitempty"`
	SpO2Percentage   *float64  `json:"spo2_percentage,omitempty"`
	SkinTempCelsius  *float64  `json:"skin_temp_celsius,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Sleep is one sleep activity. Millisecond stage totals mirror the
// Whoop API.
type Sleep struct {
	UserID          string    `json:"user_id"`
	SleepID         string    `json:"whoop_sleep_id"`
	CycleID         *int64    `json:"whoop_cycle_id,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	IsNap           bool      `json:"is_nap"`
	SleepScore      *float64  `json:"sleep_score,omitempty"`
	TotalInBedMilli *int64    `json:"total_in_bed_milli,omitempty"`
	TotalAwakeMilli *int64    `json:"total_awake_milli,omitempty"`
	LightMilli      *int64    `json:"total_light_sleep_milli,omitempty"`
	SlowWaveMilli   *int64    `json:"total_slow_wave_sleep_milli,omitempty"`
	REMMilli        *int64    `json:"total_rem_sleep_milli,omitempty"`
	SleepEfficiency *float64  `json:"sleep_efficiency,omitempty"`
	RespiratoryRate *float64  `json:"respiratory_rate,omitempty"`
}

// Workout is one recorded Whoop workout.
type Workout struct {
	UserID      string    `json:"user_id"`
	WorkoutID   string    `json:"whoop_workout_id"`
	CycleID     *int64    `json:"whoop_cycle_id,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	SportName   string    `json:"sport_name,omitempty"`
	StrainScore *float64  `json:"strain_score,omitempty"`
	Kilojoules  *float64  `json:"kilojoules,omitempty"`
	DistanceM   *float64  `json:"distance_meter,omitempty"`
}

// Service is the SQLite-backed Whoop data store.
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

	s := &Service{db: db, logger: logger.With("component", "whoop")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Service) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS whoop_connections (
			user_id TEXT PRIMARY KEY,
			whoop_user_id TEXT NOT NULL,
			connected_at TIMESTAMP NOT NULL,
			last_sync_at TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS whoop_cycles (
			user_id TEXT NOT NULL,
			whoop_cycle_id INTEGER NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			strain_score REAL,
			kilojoules REAL,
			average_heart_rate REAL,
			max_heart_rate REAL,
			PRIMARY KEY (user_id, whoop_cycle_id)
		);
		CREATE INDEX IF NOT EXISTS idx_whoop_cycles_start ON whoop_cycles(user_id, start_time);

		CREATE TABLE IF NOT EXISTS whoop_recovery (
			user_id TEXT NOT NULL,
			whoop_cycle_id INTEGER NOT NULL,
			recovery_score REAL,
			resting_heart_rate REAL,
			hrv_rmssd_milli REAL,
			spo2_percentage REAL,
			skin_temp_celsius REAL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, whoop_cycle_id)
		);

		CREATE TABLE IF NOT EXISTS whoop_sleep (
			user_id TEXT NOT NULL,
			whoop_sleep_id TEXT NOT NULL,
			whoop_cycle_id INTEGER,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			is_nap INTEGER NOT NULL DEFAULT 0,
			sleep_score REAL,
			total_in_bed_milli INTEGER,
			total_awake_milli INTEGER,
			total_light_sleep_milli INTEGER,
			total_slow_wave_sleep_milli INTEGER,
			total_rem_sleep_milli INTEGER,
			sleep_efficiency REAL,
			respiratory_rate REAL,
			PRIMARY KEY (user_id, whoop_sleep_id)
		);
		CREATE INDEX IF NOT EXISTS idx_whoop_sleep_start ON whoop_sleep(user_id, start_time);

		CREATE TABLE IF NOT EXISTS whoop_workouts (
			user_id TEXT NOT NULL,
			whoop_workout_id TEXT NOT NULL,
			whoop_cycle_id INTEGER,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			sport_name TEXT,
			strain_score REAL,
			kilojoules REAL,
			distance_meter REAL,
			PRIMARY KEY (user_id, whoop_workout_id)
		);
		CREATE INDEX IF NOT EXISTS idx_whoop_workouts_start ON whoop_workouts(user_id, start_time);
	`)
	return err
}

// Close closes the database connection.
func (s *Service) Close() error {
	return s.db.Close()
}

// Connect links userID to a Whoop account, replacing any prior link.
func (s *Service) Connect(ctx context.Context, userID, whoopUserID string) (*Connection, error) {
	conn := &Connection{
		UserID:      userID,
		WhoopUserID: whoopUserID,
		ConnectedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whoop_connections (user_id, whoop_user_id, connected_at, last_sync_at)
		VALUES (?, ?, ?, NULL)
		ON CONFLICT(user_id) DO UPDATE SET
			whoop_user_id = excluded.whoop_user_id,
			connected_at = excluded.connected_at
	`, conn.UserID, conn.WhoopUserID, conn.ConnectedAt)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	s.logger.Info("linked whoop account", "user_id", userID)
	return conn, nil
}

// GetConnection returns the user's Whoop link, or nil when none exists.
func (s *Service) GetConnection(ctx context.Context, userID string) (*Connection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, whoop_user_id, connected_at, last_sync_at
		FROM whoop_connections
		WHERE user_id = ?
	`, userID)

	var conn Connection
	var lastSync sql.NullTime
	err := row.Scan(&conn.UserID, &conn.WhoopUserID, &conn.ConnectedAt, &lastSync)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if lastSync.Valid {
		t := lastSync.Time
		conn.LastSyncAt = &t
	}
	return &conn, nil
}

// UpdateLastSync stamps the connection's last successful sync time.
func (s *Service) UpdateLastSync(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE whoop_connections SET last_sync_at = ? WHERE user_id = ?
	`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update last sync: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotConnected
	}
	return nil
}

// Disconnect removes the user's Whoop link and all synced data.
func (s *Service) Disconnect(ctx context.Context, userID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM whoop_connections WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("delete connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	for _, table := range []string{"whoop_cycles", "whoop_recovery", "whoop_sleep", "whoop_workouts"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, userID); err != nil {
			return false, fmt.Errorf("delete %s: %w", table, err)
		}
	}

	return true, tx.Commit()
}
