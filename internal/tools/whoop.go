package tools

import (
	"context"
	"errors"

	"github.com/myhealth-io/myhealthd/internal/whoop"
)

func whoopTools(deps Deps) []Tool {
	return []Tool{
		{
			Name:        "get_whoop_summary",
			Description: "Get the user's Whoop recovery, sleep, HRV, resting heart rate, and strain metrics.",
			Label:       "Checked Whoop metrics",
			InputSchema: objectSchema(map[string]any{}),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				return deps.Whoop.Dashboard(ctx, userID)
			},
		},
		{
			Name:        "get_recovery_trends",
			Description: "Analyze Whoop recovery and sleep trends. Returns recovery scores, HRV, resting HR, sleep hours/quality, and trend direction (improving/declining/stable). Requires Whoop connection.",
			Label:       "Analyzed recovery trends",
			InputSchema: objectSchema(map[string]any{
				"days": map[string]any{
					"type":        "integer",
					"description": "Number of days to analyze. Defaults to 7, max 30.",
				},
			}),
			Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
				report, err := deps.Whoop.RecoveryTrends(ctx, userID, intArg(input, "days", 7))
				if errors.Is(err, whoop.ErrNotConnected) {
					return map[string]any{"error": "Whoop is not connected. The user needs to connect their Whoop account first."}, nil
				}
				if err != nil {
					return nil, err
				}
				return report, nil
			},
		},
	}
}
