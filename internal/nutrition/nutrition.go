// Package nutrition implements food and macro tracking: a food database
// (global plus per-user custom foods), meal entries, daily summaries,
// range trends, and nutrition goals.
package nutrition

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// DateLayout is the wire format for entry and summary dates.
const DateLayout = "2006-01-02"

// MealTypes is the fixed meal order used by summaries.
var MealTypes = []string{"breakfast", "lunch", "dinner", "snack"}

// Food is one item in the food database. UserID is empty for global
// foods visible to everyone.
type Food struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand,omitempty"`
	ServingSize float64   `json:"serving_size"`
	ServingUnit string    `json:"serving_unit"`
	Calories    float64   `json:"calories"`
	ProteinG    float64   `json:"protein_g"`
	CarbsG      float64   `json:"carbs_g"`
	FatG        float64   `json:"fat_g"`
	FiberG      float64   `json:"fiber_g"`
	SugarG      float64   `json:"sugar_g"`
	SodiumMg    float64   `json:"sodium_mg"`
	IsVerified  bool      `json:"is_verified"`
	CreatedAt   time.Time `json:"created_at"`
}

// FoodInput carries the caller-supplied fields for creating a food.
type FoodInput struct {
	Name        string
	Brand       string
	ServingSize float64 // defaults to 1
	ServingUnit string  // defaults to "serving"
	Calories    float64
	ProteinG    float64
	CarbsG      float64
	FatG        float64
	FiberG      float64
	SugarG      float64
	SodiumMg    float64
	IsVerified  bool
}

// Entry is one logged meal item. Totals are the food's per-serving
// macros scaled by Servings, computed on read.
type Entry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	FoodID        string    `json:"food_id"`
	MealType      string    `json:"meal_type"`
	Servings      float64   `json:"servings"`
	EntryDate     string    `json:"entry_date"`
	LoggedAt      time.Time `json:"logged_at"`
	Food          *Food     `json:"food,omitempty"`
	TotalCalories float64   `json:"total_calories"`
	TotalProteinG float64   `json:"total_protein_g"`
	TotalCarbsG   float64   `json:"total_carbs_g"`
	TotalFatG     float64   `json:"total_fat_g"`
}

// EntryInput carries the caller-supplied fields for logging an entry.
type EntryInput struct {
	FoodID   string
	MealType string
	Servings float64   // defaults to 1
	Date     time.Time // defaults to today
}

// Goals holds a user's macro targets. Nil fields are unset.
type Goals struct {
	UserID         string    `json:"user_id"`
	CaloriesTarget *float64  `json:"calories_target,omitempty"`
	ProteinGTarget *float64  `json:"protein_g_target,omitempty"`
	CarbsGTarget   *float64  `json:"carbs_g_target,omitempty"`
	FatGTarget     *float64  `json:"fat_g_target,omitempty"`
	FiberGTarget   *float64  `json:"fiber_g_target,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MealSummary aggregates one meal's entries for a day.
type MealSummary struct {
	MealType      string  `json:"meal_type"`
	Entries       []Entry `json:"entries"`
	TotalCalories float64 `json:"total_calories"`
	TotalProteinG float64 `json:"total_protein_g"`
	TotalCarbsG   float64 `json:"total_carbs_g"`
	TotalFatG     float64 `json:"total_fat_g"`
}

// DaySummary is the full nutrition picture for one day, with goal
// targets attached when set.
type DaySummary struct {
	Date           string        `json:"date"`
	Meals          []MealSummary `json:"meals"`
	TotalCalories  float64       `json:"total_calories"`
	TotalProteinG  float64       `json:"total_protein_g"`
	TotalCarbsG    float64       `json:"total_carbs_g"`
	TotalFatG      float64       `json:"total_fat_g"`
	TotalFiberG    float64       `json:"total_fiber_g"`
	CaloriesTarget *float64      `json:"calories_target,omitempty"`
	ProteinGTarget *float64      `json:"protein_g_target,omitempty"`
	CarbsGTarget   *float64      `json:"carbs_g_target,omitempty"`
	FatGTarget     *float64      `json:"fat_g_target,omitempty"`
}

// TrendAverages holds per-day averages over the days that have logged
// food, rounded to one decimal.
type TrendAverages struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// TrendReport analyzes nutrition over a date range.
type TrendReport struct {
	DailyData     []DaySummary       `json:"daily_data"`
	Averages      *TrendAverages     `json:"averages,omitempty"`
	Goals         *Goals             `json:"goals,omitempty"`
	GoalAdherence map[string]float64 `json:"goal_adherence,omitempty"`
	DaysTracked   int                `json:"days_tracked"`
	DaysInRange   int                `json:"days_in_range"`
}

// Service is the SQLite-backed nutrition tracker.
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

	s := &Service{db: db, logger: logger.With("component", "nutrition")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Service) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS foods (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			name TEXT NOT NULL,
			brand TEXT,
			serving_size REAL NOT NULL DEFAULT 1,
			serving_unit TEXT NOT NULL DEFAULT 'serving',
			calories REAL NOT NULL DEFAULT 0,
			protein_g REAL NOT NULL DEFAULT 0,
			carbs_g REAL NOT NULL DEFAULT 0,
			fat_g REAL NOT NULL DEFAULT 0,
			fiber_g REAL NOT NULL DEFAULT 0,
			sugar_g REAL NOT NULL DEFAULT 0,
			sodium_mg REAL NOT NULL DEFAULT 0,
			is_verified INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_foods_name ON foods(name);
		CREATE INDEX IF NOT EXISTS idx_foods_user ON foods(user_id);

		CREATE TABLE IF NOT EXISTS food_entries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			food_id TEXT NOT NULL,
			meal_type TEXT NOT NULL,
			servings REAL NOT NULL DEFAULT 1,
			entry_date TEXT NOT NULL,
			logged_at TIMESTAMP NOT NULL,
			FOREIGN KEY (food_id) REFERENCES foods(id)
		);
		CREATE INDEX IF NOT EXISTS idx_food_entries_user_date ON food_entries(user_id, entry_date);

		CREATE TABLE IF NOT EXISTS nutrition_goals (
			user_id TEXT PRIMARY KEY,
			calories_target REAL,
			protein_g_target REAL,
			carbs_g_target REAL,
			fat_g_target REAL,
			fiber_g_target REAL,
			updated_at TIMESTAMP NOT NULL
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Service) Close() error {
	return s.db.Close()
}

// ValidMealType reports whether mealType is one of the known meals.
func ValidMealType(mealType string) bool {
	for _, m := range MealTypes {
		if m == mealType {
			return true
		}
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
