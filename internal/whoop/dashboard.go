package whoop

import (
	"context"
	"fmt"
	"math"
	"time"
)

// DashboardSummary is the at-a-glance view of a user's Whoop data:
// the most recent scores plus seven-day averages.
type DashboardSummary struct {
	IsConnected         bool       `json:"is_connected"`
	LastSyncAt          *time.Time `json:"last_sync_at"`
	LatestRecoveryScore *float64   `json:"latest_recovery_score"`
	LatestStrainScore   *float64   `json:"latest_strain_score"`
	LatestHRV           *float64   `json:"latest_hrv"`
	LatestRestingHR     *float64   `json:"latest_resting_hr"`
	LatestSleepScore    *float64   `json:"latest_sleep_score"`
	LatestSleepHours    *float64   `json:"latest_sleep_hours"`
	AvgRecovery7d       *float64   `json:"avg_recovery_7d"`
	AvgStrain7d         *float64   `json:"avg_strain_7d"`
	AvgSleepHours7d     *float64   `json:"avg_sleep_hours_7d"`
	TotalWorkouts7d     int        `json:"total_workouts_7d"`
}

// Dashboard assembles the summary for one user. A user without a
// Whoop connection gets a zero summary with IsConnected false.
func (s *Service) Dashboard(ctx context.Context, userID string) (*DashboardSummary, error) {
	conn, err := s.GetConnection(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return &DashboardSummary{}, nil
	}

	out := &DashboardSummary{
		IsConnected: true,
		LastSyncAt:  conn.LastSyncAt,
	}

	cycle, err := s.latestCycle(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cycle != nil {
		out.LatestStrainScore = cycle.StrainScore
		rec, err := s.recoveryForCycle(ctx, userID, cycle.CycleID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out.LatestRecoveryScore = rec.RecoveryScore
			out.LatestHRV = rec.HRVRmssdMilli
			out.LatestRestingHR = rec.RestingHeartRate
		}
	}

	sleep, err := s.latestSleep(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sleep != nil {
		out.LatestSleepScore = sleep.SleepScore
		if h := sleepHours(sleep.TotalInBedMilli, sleep.TotalAwakeMilli); h != nil {
			out.LatestSleepHours = round2p(h)
		}
	}

	since := time.Now().UTC().AddDate(0, 0, -7)

	out.AvgRecovery7d, err = s.avgFloat(ctx, `
		SELECT r.recovery_score
		FROM whoop_recovery r
		JOIN whoop_cycles c ON c.user_id = r.user_id AND c.whoop_cycle_id = r.whoop_cycle_id
		WHERE r.user_id = ? AND c.start_time >= ?
	`, userID, since)
	if err != nil {
		return nil, err
	}

	out.AvgStrain7d, err = s.avgFloat(ctx, `
		SELECT strain_score FROM whoop_cycles
		WHERE user_id = ? AND start_time >= ?
	`, userID, since)
	if err != nil {
		return nil, err
	}

	out.AvgSleepHours7d, err = s.avgSleepHours(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM whoop_workouts
		WHERE user_id = ? AND start_time >= ?
	`, userID, since).Scan(&out.TotalWorkouts7d)
	if err != nil {
		return nil, fmt.Errorf("count workouts: %w", err)
	}

	return out, nil
}

// avgFloat averages the non-null values produced by query, rounded to
// two decimals, or nil when there are none.
func (s *Service) avgFloat(ctx context.Context, query string, args ...any) (*float64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("average query: %w", err)
	}
	defer rows.Close()

	var sum float64
	var n int
	for rows.Next() {
		var v *float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v != nil {
			sum += *v
			n++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	avg := round2(sum / float64(n))
	return &avg, nil
}

func (s *Service) avgSleepHours(ctx context.Context, userID string, since time.Time) (*float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT total_in_bed_milli, total_awake_milli
		FROM whoop_sleep
		WHERE user_id = ? AND is_nap = 0 AND start_time >= ?
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("sleep hours query: %w", err)
	}
	defer rows.Close()

	var sum float64
	var n int
	for rows.Next() {
		var inBed, awake *int64
		if err := rows.Scan(&inBed, &awake); err != nil {
			return nil, err
		}
		if h := sleepHours(inBed, awake); h != nil {
			sum += *h
			n++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	avg := round2(sum / float64(n))
	return &avg, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round1p(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round1(*v)
	return &r
}

func round2p(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round2(*v)
	return &r
}
