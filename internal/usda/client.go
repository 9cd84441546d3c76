// Package usda provides a client for the USDA FoodData Central API.
//
// API documentation: https://fdc.nal.usda.gov/api-guide.html
package usda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/myhealth-io/myhealthd/internal/config"
	"github.com/myhealth-io/myhealthd/internal/httpkit"
)

// DefaultBaseURL is the public FoodData Central endpoint.
const DefaultBaseURL = "https://api.nal.usda.gov/fdc/v1"

const (
	maxPageSize    = 200
	requestTimeout = 30 * time.Second
)

// FDC nutrient numbers for the macros we track.
const (
	nutrientEnergy  = 1008 // kcal
	nutrientProtein = 1003
	nutrientFat     = 1004
	nutrientCarbs   = 1005
	nutrientSugar   = 1063
	nutrientFiber   = 1079
	nutrientSodium  = 1093 // mg
)

// Food is a food record distilled to the fields the rest of the system
// uses. Macros are per serving.
type Food struct {
	FdcID       string  `json:"usda_fdc_id,omitempty"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand,omitempty"`
	ServingSize float64 `json:"serving_size"`
	ServingUnit string  `json:"serving_unit"`
	Calories    float64 `json:"calories"`
	ProteinG    float64 `json:"protein_g"`
	CarbsG      float64 `json:"carbs_g"`
	FatG        float64 `json:"fat_g"`
	FiberG      float64 `json:"fiber_g"`
	SugarG      float64 `json:"sugar_g"`
	SodiumMg    float64 `json:"sodium_mg"`
}

// record mirrors the wire shape of one FDC food. Nutrient entries come
// in two layouts depending on endpoint; both are handled.
type record struct {
	FdcID       int64  `json:"fdcId"`
	Description string `json:"description"`
	BrandOwner  string `json:"brandOwner"`
	BrandName   string `json:"brandName"`
	Nutrients   []struct {
		NutrientID int `json:"nutrientId"`
		Nutrient   struct {
			ID int `json:"id"`
		} `json:"nutrient"`
		Value  float64 `json:"value"`
		Amount float64 `json:"amount"`
	} `json:"foodNutrients"`
	Portions []struct {
		GramWeight float64 `json:"gramWeight"`
	} `json:"foodPortions"`
}

type searchResponse struct {
	TotalHits int      `json:"totalHits"`
	Foods     []record `json:"foods"`
}

// Client talks to FoodData Central. The zero API key is tolerated:
// searches return empty results so the agent degrades gracefully.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// New builds a client from configuration.
func New(cfg config.USDAConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    httpkit.NewClient(httpkit.WithTimeout(requestTimeout)),
		logger:  logger.With("component", "usda"),
	}
}

// Search queries the food database and returns parsed foods plus the
// total hit count. Without an API key it returns no results.
func (c *Client) Search(ctx context.Context, query string, pageSize int) ([]Food, int, error) {
	if c.apiKey == "" {
		c.logger.Warn("USDA API key not configured, returning empty results")
		return nil, 0, nil
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", query)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("pageNumber", "1")

	var resp searchResponse
	if err := c.getJSON(ctx, c.baseURL+"/foods/search?"+params.Encode(), &resp); err != nil {
		return nil, 0, fmt.Errorf("usda search %q: %w", query, err)
	}

	foods := make([]Food, 0, len(resp.Foods))
	for _, rec := range resp.Foods {
		foods = append(foods, parseRecord(rec))
	}

	c.logger.Debug("usda search", "query", query, "total_hits", resp.TotalHits)
	return foods, resp.TotalHits, nil
}

// GetFood fetches one food by its FDC identifier.
func (c *Client) GetFood(ctx context.Context, fdcID string) (*Food, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("usda API key not configured")
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)

	var rec record
	if err := c.getJSON(ctx, c.baseURL+"/food/"+url.PathEscape(fdcID)+"?"+params.Encode(), &rec); err != nil {
		return nil, fmt.Errorf("usda food %s: %w", fdcID, err)
	}

	food := parseRecord(rec)
	return &food, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 4096))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func parseRecord(rec record) Food {
	food := Food{
		FdcID:       strconv.FormatInt(rec.FdcID, 10),
		Name:        rec.Description,
		Brand:       rec.BrandOwner,
		ServingSize: 100,
		ServingUnit: "g",
	}
	if food.Name == "" {
		food.Name = "Unknown"
	}
	if food.Brand == "" {
		food.Brand = rec.BrandName
	}
	if len(rec.Portions) > 0 && rec.Portions[0].GramWeight > 0 {
		food.ServingSize = rec.Portions[0].GramWeight
	}

	for _, n := range rec.Nutrients {
		id := n.NutrientID
		if id == 0 {
			id = n.Nutrient.ID
		}
		value := n.Value
		if value == 0 {
			value = n.Amount
		}

		switch id {
		case nutrientEnergy:
			food.Calories = value
		case nutrientProtein:
			food.ProteinG = value
		case nutrientCarbs:
			food.CarbsG = value
		case nutrientFat:
			food.FatG = value
		case nutrientFiber:
			food.FiberG = value
		case nutrientSugar:
			food.SugarG = value
		case nutrientSodium:
			food.SodiumMg = value
		}
	}

	return food
}
