package usda

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/myhealth-io/myhealthd/internal/config"
)

func TestSearchParsesNutrients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/foods/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("api_key = %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "oatmeal" {
			t.Errorf("query = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"totalHits": 42,
			"foods": [{
				"fdcId": 173904,
				"description": "Oatmeal, cooked",
				"brandOwner": "Quaker",
				"foodNutrients": [
					{"nutrientId": 1008, "value": 71},
					{"nutrientId": 1003, "value": 2.5},
					{"nutrientId": 1005, "value": 12},
					{"nutrientId": 1004, "value": 1.5},
					{"nutrientId": 1079, "value": 1.7},
					{"nutrientId": 9999, "value": 500}
				],
				"foodPortions": [{"gramWeight": 234}]
			}]
		}`))
	}))
	defer srv.Close()

	c := New(config.USDAConfig{APIKey: "test-key", BaseURL: srv.URL}, nil)

	foods, total, err := c.Search(context.Background(), "oatmeal", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 42 {
		t.Errorf("total = %d, want 42", total)
	}
	if len(foods) != 1 {
		t.Fatalf("got %d foods, want 1", len(foods))
	}

	f := foods[0]
	if f.FdcID != "173904" {
		t.Errorf("FdcID = %q", f.FdcID)
	}
	if f.Name != "Oatmeal, cooked" || f.Brand != "Quaker" {
		t.Errorf("name/brand = %q/%q", f.Name, f.Brand)
	}
	if f.Calories != 71 || f.ProteinG != 2.5 || f.CarbsG != 12 || f.FatG != 1.5 || f.FiberG != 1.7 {
		t.Errorf("macros = %+v", f)
	}
	if f.ServingSize != 234 || f.ServingUnit != "g" {
		t.Errorf("serving = %v %s", f.ServingSize, f.ServingUnit)
	}
}

func TestSearchWithoutAPIKey(t *testing.T) {
	c := New(config.USDAConfig{}, nil)

	foods, total, err := c.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(foods) != 0 || total != 0 {
		t.Errorf("expected empty results, got %d foods, total %d", len(foods), total)
	}
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(config.USDAConfig{APIKey: "k", BaseURL: srv.URL}, nil)

	if _, _, err := c.Search(context.Background(), "x", 10); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestGetFoodAlternateNutrientShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/food/173904" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"fdcId": 173904,
			"description": "Oatmeal, cooked",
			"foodNutrients": [
				{"nutrient": {"id": 1008}, "amount": 71},
				{"nutrient": {"id": 1003}, "amount": 2.5}
			]
		}`))
	}))
	defer srv.Close()

	c := New(config.USDAConfig{APIKey: "k", BaseURL: srv.URL}, nil)

	food, err := c.GetFood(context.Background(), "173904")
	if err != nil {
		t.Fatalf("GetFood: %v", err)
	}
	if food.Calories != 71 || food.ProteinG != 2.5 {
		t.Errorf("macros = %+v", food)
	}
	if food.ServingSize != 100 {
		t.Errorf("default serving = %v, want 100", food.ServingSize)
	}
}
