package tools

import (
	"context"
	"errors"
	"log/slog"

	"github.com/myhealth-io/myhealthd/internal/nutrition"
)

func nutritionTools(deps Deps, logger *slog.Logger) []Tool {
	return []Tool{
		{
			Name:        "get_nutrition_summary",
			Description: "Get the user's nutrition summary for a specific date including meals, macros (calories, protein, carbs, fat), and daily goals.",
			Label:       "Checked nutrition data",
			InputSchema: objectSchema(map[string]any{
				"date": map[string]any{
					"type":        "string",
					"description": "Date in YYYY-MM-DD format. Defaults to today.",
				},
			}),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				return deps.Nutrition.DailySummary(ctx, userID, dateArg(input, "date", logger))
			},
		},
		{
			Name:        "search_foods",
			Description: "Search the user's food database by name. Returns matching foods with their nutritional info and their id (which is the food_id needed for log_food_entry). Always try this first before search_usda_foods.",
			Label:       "Searched foods",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Food name to search for (e.g. 'chicken breast', 'banana').",
				},
			}, "query"),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				foods, total, err := deps.Nutrition.SearchFoods(ctx, userID, stringArg(input, "query"), 10)
				if err != nil {
					return nil, err
				}
				return map[string]any{"foods": foods, "total": total}, nil
			},
		},
		{
			Name:        "search_usda_foods",
			Description: "Search the USDA FoodData Central database for foods not in the user's database. Returns nutrition data. IMPORTANT: These results do NOT have a food_id. You must use create_food to add the food to the user's database before logging it with log_food_entry.",
			Label:       "Searched USDA database",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Food name to search for in USDA database.",
				},
			}, "query"),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				foods, total, err := deps.USDA.Search(ctx, stringArg(input, "query"), 10)
				if err != nil {
					return nil, err
				}
				// USDA identifiers are not valid food_ids, hide
				// them so the model cannot log against them.
				for i := range foods {
					foods[i].FdcID = ""
				}
				return map[string]any{
					"foods": foods,
					"total": total,
					"note":  "These are USDA results. To log one, first use create_food with the name and macros shown here, then use the returned id as food_id in log_food_entry.",
				}, nil
			},
		},
		{
			Name:        "get_nutrition_trends",
			Description: "Analyze the user's nutrition over a date range. Returns daily calorie/macro data, averages, goal adherence percentages, and days tracked. Max 30-day range.",
			Label:       "Analyzed nutrition trends",
			InputSchema: objectSchema(map[string]any{
				"start_date": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format.",
				},
				"end_date": map[string]any{
					"type":        "string",
					"description": "End date in YYYY-MM-DD format.",
				},
			}, "start_date", "end_date"),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				start := dateArg(input, "start_date", logger)
				end := dateArg(input, "end_date", logger)
				return deps.Nutrition.Trends(ctx, userID, start, end)
			},
		},
		{
			Name:        "log_food_entry",
			Description: "Log a food entry for a meal. Requires a food_id (from search_foods or create_food). Records the food, meal type, servings, and date.",
			Label:       "Logged food entry",
			InputSchema: objectSchema(map[string]any{
				"food_id": map[string]any{
					"type":        "string",
					"description": "The UUID of the food to log (from search_foods or create_food).",
				},
				"meal_type": map[string]any{
					"type":        "string",
					"description": "Which meal: 'breakfast', 'lunch', 'dinner', or 'snack'.",
					"enum":        []string{"breakfast", "lunch", "dinner", "snack"},
				},
				"servings": map[string]any{
					"type":        "number",
					"description": "Number of servings (e.g. 1, 1.5, 2). Defaults to 1.",
				},
				"date": map[string]any{
					"type":        "string",
					"description": "Date in YYYY-MM-DD format. Defaults to today.",
				},
			}, "food_id", "meal_type"),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				entry, err := deps.Nutrition.LogEntry(ctx, userID, nutrition.EntryInput{
					FoodID:   stringArg(input, "food_id"),
					MealType: stringArg(input, "meal_type"),
					Servings: floatArg(input, "servings", 1),
					Date:     dateArg(input, "date", logger),
				})
				if errors.Is(err, nutrition.ErrNotFound) {
					return map[string]any{"error": "Failed to create food entry. Check that the food_id is valid."}, nil
				}
				if err != nil {
					return nil, err
				}
				return entry, nil
			},
		},
		{
			Name:        "create_food",
			Description: "Create a custom food with nutritional info. Use this when a food isn't found in search_foods or search_usda_foods. Returns the new food with its food_id for logging.",
			Label:       "Created custom food",
			InputSchema: objectSchema(map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Food name (e.g. 'Homemade Protein Shake').",
				},
				"calories": map[string]any{
					"type":        "number",
					"description": "Calories per serving.",
				},
				"protein_g": map[string]any{
					"type":        "number",
					"description": "Protein in grams per serving.",
				},
				"carbs_g": map[string]any{
					"type":        "number",
					"description": "Carbohydrates in grams per serving.",
				},
				"fat_g": map[string]any{
					"type":        "number",
					"description": "Fat in grams per serving.",
				},
				"serving_size": map[string]any{
					"type":        "number",
					"description": "Serving size amount (e.g. 100). Defaults to 1.",
				},
				"serving_unit": map[string]any{
					"type":        "string",
					"description": "Serving unit (e.g. 'g', 'oz', 'cup', 'serving'). Defaults to 'serving'.",
				},
			}, "name", "calories", "protein_g", "carbs_g", "fat_g"),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				return deps.Nutrition.CreateFood(ctx, userID, nutrition.FoodInput{
					Name:        stringArg(input, "name"),
					Calories:    floatArg(input, "calories", 0),
					ProteinG:    floatArg(input, "protein_g", 0),
					CarbsG:      floatArg(input, "carbs_g", 0),
					FatG:        floatArg(input, "fat_g", 0),
					ServingSize: floatArg(input, "serving_size", 1),
					ServingUnit: stringArg(input, "serving_unit"),
				})
			},
		},
	}
}
