package whoop

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Trend directions returned by Trend.
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

const (
	defaultTrendDays = 7
	maxTrendDays     = 30
)

// RecoveryPoint is one day of recovery metrics, dated by the cycle it
// belongs to.
type RecoveryPoint struct {
	Date             string   `json:"date"`
	RecoveryScore    *float64 `json:"recovery_score"`
	HRVRmssdMilli    *float64 `json:"hrv_rmssd_milli"`
	RestingHeartRate *float64 `json:"resting_heart_rate"`
}

// SleepPoint is one night of sleep metrics. Naps are excluded.
type SleepPoint struct {
	Date            string   `json:"date"`
	TotalSleepHours *float64 `json:"total_sleep_hours"`
	SleepScore      *float64 `json:"sleep_score"`
	SleepEfficiency *float64 `json:"sleep_efficiency"`
}

// RecoveryAverages holds period averages of the recovery metrics.
type RecoveryAverages struct {
	RecoveryScore    *float64 `json:"recovery_score"`
	HRVRmssdMilli    *float64 `json:"hrv_rmssd_milli"`
	RestingHeartRate *float64 `json:"resting_heart_rate"`
}

// SleepAverages holds period averages of the sleep metrics.
type SleepAverages struct {
	TotalSleepHours *float64 `json:"total_sleep_hours"`
	SleepScore      *float64 `json:"sleep_score"`
	SleepEfficiency *float64 `json:"sleep_efficiency"`
}

// RecoveryReport combines recovery and sleep series with averages and
// trend directions over a trailing window.
type RecoveryReport struct {
	PeriodDays           int               `json:"period_days"`
	RecoveryData         []RecoveryPoint   `json:"recovery_data"`
	SleepData            []SleepPoint      `json:"sleep_data"`
	RecoveryAverages     RecoveryAverages  `json:"recovery_averages"`
	SleepAverages        SleepAverages     `json:"sleep_averages"`
	Trend                map[string]string `json:"trend"`
	DaysWithRecoveryData int               `json:"days_with_recovery_data"`
	DaysWithSleepData    int               `json:"days_with_sleep_data"`
}

// Trend classifies a series by comparing the average of its first half
// against its second half. Nil values are skipped; fewer than four
// usable points is insufficient data. A swing beyond five percent in
// either direction counts as a real change.
func Trend(values []*float64) string {
	var valid []float64
	for _, v := range values {
		if v != nil {
			valid = append(valid, *v)
		}
	}
	if len(valid) < 4 {
		return TrendInsufficientData
	}

	mid := len(valid) / 2
	first := mean(valid[:mid])
	second := mean(valid[mid:])

	if first == 0 {
		if second == 0 {
			return TrendStable
		}
		return TrendImproving
	}

	change := (second - first) / math.Abs(first)
	switch {
	case change > 0.05:
		return TrendImproving
	case change < -0.05:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// RecoveryTrendData returns the last days of recovery points in
// ascending date order.
func (s *Service) RecoveryTrendData(ctx context.Context, userID string, days int) ([]RecoveryPoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.start_time, r.recovery_score, r.hrv_rmssd_milli, r.resting_heart_rate
		FROM whoop_recovery r
		JOIN whoop_cycles c ON c.user_id = r.user_id AND c.whoop_cycle_id = r.whoop_cycle_id
		WHERE r.user_id = ? AND c.start_time >= ?
		ORDER BY c.start_time
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("recovery trend data: %w", err)
	}
	defer rows.Close()

	var points []RecoveryPoint
	for rows.Next() {
		var start time.Time
		var p RecoveryPoint
		if err := rows.Scan(&start, &p.RecoveryScore, &p.HRVRmssdMilli, &p.RestingHeartRate); err != nil {
			return nil, err
		}
		p.Date = start.Format("2006-01-02")
		points = append(points, p)
	}
	return points, rows.Err()
}

// SleepTrendData returns the last days of non-nap sleep points in
// ascending date order.
func (s *Service) SleepTrendData(ctx context.Context, userID string, days int) ([]SleepPoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := s.db.QueryContext(ctx, `
		SELECT start_time, total_in_bed_milli, total_awake_milli, sleep_score, sleep_efficiency
		FROM whoop_sleep
		WHERE user_id = ? AND is_nap = 0 AND start_time >= ?
		ORDER BY start_time
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("sleep trend data: %w", err)
	}
	defer rows.Close()

	var points []SleepPoint
	for rows.Next() {
		var start time.Time
		var inBed, awake *int64
		var p SleepPoint
		if err := rows.Scan(&start, &inBed, &awake, &p.SleepScore, &p.SleepEfficiency); err != nil {
			return nil, err
		}
		p.Date = start.Format("2006-01-02")
		p.TotalSleepHours = round2p(sleepHours(inBed, awake))
		points = append(points, p)
	}
	return points, rows.Err()
}

// RecoveryTrends builds the trend report over the trailing window.
// Returns ErrNotConnected when the user has no Whoop link.
func (s *Service) RecoveryTrends(ctx context.Context, userID string, days int) (*RecoveryReport, error) {
	conn, err := s.GetConnection(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrNotConnected
	}

	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	recovery, err := s.RecoveryTrendData(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	sleep, err := s.SleepTrendData(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	report := &RecoveryReport{
		PeriodDays:           days,
		RecoveryData:         recovery,
		SleepData:            sleep,
		DaysWithRecoveryData: len(recovery),
		DaysWithSleepData:    len(sleep),
		Trend:                map[string]string{},
	}

	var scores, hrvs, rhrs []*float64
	for i := range recovery {
		scores = append(scores, recovery[i].RecoveryScore)
		hrvs = append(hrvs, recovery[i].HRVRmssdMilli)
		rhrs = append(rhrs, recovery[i].RestingHeartRate)
	}
	var hours, sscores, effs []*float64
	for i := range sleep {
		hours = append(hours, sleep[i].TotalSleepHours)
		sscores = append(sscores, sleep[i].SleepScore)
		effs = append(effs, sleep[i].SleepEfficiency)
	}

	report.RecoveryAverages = RecoveryAverages{
		RecoveryScore:    round1p(avgPointers(scores)),
		HRVRmssdMilli:    round1p(avgPointers(hrvs)),
		RestingHeartRate: round1p(avgPointers(rhrs)),
	}
	report.SleepAverages = SleepAverages{
		TotalSleepHours: round2p(avgPointers(hours)),
		SleepScore:      round1p(avgPointers(sscores)),
		SleepEfficiency: round1p(avgPointers(effs)),
	}

	report.Trend["recovery_score"] = Trend(scores)
	report.Trend["hrv"] = Trend(hrvs)
	report.Trend["sleep_hours"] = Trend(hours)
	report.Trend["sleep_score"] = Trend(sscores)

	return report, nil
}

func avgPointers(vs []*float64) *float64 {
	var sum float64
	var n int
	for _, v := range vs {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
