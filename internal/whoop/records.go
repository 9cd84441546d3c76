package whoop

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertCycle stores or refreshes one cycle, keyed by user and Whoop
// cycle id.
func (s *Service) UpsertCycle(ctx context.Context, c Cycle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whoop_cycles (user_id, whoop_cycle_id, start_time, end_time,
			strain_score, kilojoules, average_heart_rate, max_heart_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, whoop_cycle_id) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			strain_score = excluded.strain_score,
			kilojoules = excluded.kilojoules,
			average_heart_rate = excluded.average_heart_rate,
			max_heart_rate = excluded.max_heart_rate
	`, c.UserID, c.CycleID, c.StartTime, c.EndTime, c.StrainScore, c.Kilojoules, c.AvgHeartRate, c.MaxHeartRate)
	if err != nil {
		return fmt.Errorf("upsert cycle: %w", err)
	}
	return nil
}

// UpsertRecovery stores or refreshes one recovery record.
func (s *Service) UpsertRecovery(ctx context.Context, r Recovery) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whoop_recovery (user_id, whoop_cycle_id, recovery_score,
			resting_heart_rate, hrv_rmssd_milli, spo2_percentage, skin_temp_celsius, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, whoop_cycle_id) DO UPDATE SET
			recovery_score = excluded.recovery_score,
			resting_heart_rate = excluded.resting_heart_rate,
			hrv_rmssd_milli = excluded.hrv_rmssd_milli,
			spo2_percentage = excluded.spo2_percentage,
			skin_temp_celsius = excluded.skin_temp_celsius
	`, r.UserID, r.CycleID, r.RecoveryScore, r.RestingHeartRate, r.HRVRmssdMilli,
		r.SpO2Percentage, r.SkinTempCelsius, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert recovery: %w", err)
	}
	return nil
}

// UpsertSleep stores or refreshes one sleep record.
func (s *Service) UpsertSleep(ctx context.Context, sl Sleep) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whoop_sleep (user_id, whoop_sleep_id, whoop_cycle_id, start_time, end_time,
			is_nap, sleep_score, total_in_bed_milli, total_awake_milli, total_light_sleep_milli,
			total_slow_wave_sleep_milli, total_rem_sleep_milli, sleep_efficiency, respiratory_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, whoop_sleep_id) DO UPDATE SET
			whoop_cycle_id = excluded.whoop_cycle_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			is_nap = excluded.is_nap,
			sleep_score = excluded.sleep_score,
			total_in_bed_milli = excluded.total_in_bed_milli,
			total_awake_milli = excluded.total_awake_milli,
			total_light_sleep_milli = excluded.total_light_sleep_milli,
			total_slow_wave_sleep_milli = excluded.total_slow_wave_sleep_milli,
			total_rem_sleep_milli = excluded.total_rem_sleep_milli,
			sleep_efficiency = excluded.sleep_efficiency,
			respiratory_rate = excluded.respiratory_rate
	`, sl.UserID, sl.SleepID, sl.CycleID, sl.StartTime, sl.EndTime, sl.IsNap, sl.SleepScore,
		sl.TotalInBedMilli, sl.TotalAwakeMilli, sl.LightMilli, sl.SlowWaveMilli, sl.REMMilli,
		sl.SleepEfficiency, sl.RespiratoryRate)
	if err != nil {
		return fmt.Errorf("upsert sleep: %w", err)
	}
	return nil
}

// UpsertWorkout stores or refreshes one workout record.
func (s *Service) UpsertWorkout(ctx context.Context, w Workout) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whoop_workouts (user_id, whoop_workout_id, whoop_cycle_id, start_time, end_time,
			sport_name, strain_score, kilojoules, distance_meter)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, whoop_workout_id) DO UPDATE SET
			whoop_cycle_id = excluded.whoop_cycle_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			sport_name = excluded.sport_name,
			strain_score = excluded.strain_score,
			kilojoules = excluded.kilojoules,
			distance_meter = excluded.distance_meter
	`, w.UserID, w.WorkoutID, w.CycleID, w.StartTime, w.EndTime, w.SportName,
		w.StrainScore, w.Kilojoules, w.DistanceM)
	if err != nil {
		return fmt.Errorf("upsert workout: %w", err)
	}
	return nil
}

func (s *Service) latestCycle(ctx context.Context, userID string) (*Cycle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, whoop_cycle_id, start_time, end_time, strain_score,
			kilojoules, average_heart_rate, max_heart_rate
		FROM whoop_cycles
		WHERE user_id = ?
		ORDER BY start_time DESC
		LIMIT 1
	`, userID)

	var c Cycle
	var end sql.NullTime
	err := row.Scan(&c.UserID, &c.CycleID, &c.StartTime, &end,
		&c.StrainScore, &c.Kilojoules, &c.AvgHeartRate, &c.MaxHeartRate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest cycle: %w", err)
	}
	if end.Valid {
		t := end.Time
		c.EndTime = &t
	}
	return &c, nil
}

func (s *Service) recoveryForCycle(ctx context.Context, userID string, cycleID int64) (*Recovery, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, whoop_cycle_id, recovery_score, resting_heart_rate,
			hrv_rmssd_milli, spo2_percentage, skin_temp_celsius, created_at
		FROM whoop_recovery
		WHERE user_id = ? AND whoop_cycle_id = ?
	`, userID, cycleID)

	var r Recovery
	err := row.Scan(&r.UserID, &r.CycleID, &r.RecoveryScore, &r.RestingHeartRate,
		&r.HRVRmssdMilli, &r.SpO2Percentage, &r.SkinTempCelsius, &r.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("recovery for cycle: %w", err)
	}
	return &r, nil
}

func (s *Service) latestSleep(ctx context.Context, userID string) (*Sleep, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, whoop_sleep_id, whoop_cycle_id, start_time, end_time, is_nap,
			sleep_score, total_in_bed_milli, total_awake_milli, total_light_sleep_milli,
			total_slow_wave_sleep_milli, total_rem_sleep_milli, sleep_efficiency, respiratory_rate
		FROM whoop_sleep
		WHERE user_id = ? AND is_nap = 0
		ORDER BY start_time DESC
		LIMIT 1
	`, userID)

	sl, err := scanSleep(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest sleep: %w", err)
	}
	return sl, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSleep(row rowScanner) (*Sleep, error) {
	var sl Sleep
	var cycleID sql.NullInt64
	err := row.Scan(&sl.UserID, &sl.SleepID, &cycleID, &sl.StartTime, &sl.EndTime, &sl.IsNap,
		&sl.SleepScore, &sl.TotalInBedMilli, &sl.TotalAwakeMilli, &sl.LightMilli,
		&sl.SlowWaveMilli, &sl.REMMilli, &sl.SleepEfficiency, &sl.RespiratoryRate)
	if err != nil {
		return nil, err
	}
	if cycleID.Valid {
		id := cycleID.Int64
		sl.CycleID = &id
	}
	return &sl, nil
}

// sleepHours converts in-bed minus awake milliseconds to hours, or nil
// when either total is missing.
func sleepHours(inBed, awake *int64) *float64 {
	if inBed == nil || awake == nil {
		return nil
	}
	hours := float64(*inBed-*awake) / 3_600_000
	return &hours
}
