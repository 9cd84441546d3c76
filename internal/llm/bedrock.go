package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/myhealth-io/myhealthd/internal/config"
)

const (
	// defaultMaxTokens bounds the model's output when the caller passes 0.
	defaultMaxTokens int32 = 4096

	// throttleBackoff is the fixed wait before the single throttle retry.
	throttleBackoff = 2 * time.Second

	// callTimeout bounds each individual converse call.
	callTimeout = 60 * time.Second
)

// converseAPI is the minimal Bedrock Runtime surface the gateway needs.
// Defined here for testability.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockGateway implements Gateway against the AWS Bedrock Converse API.
type BedrockGateway struct {
	client  converseAPI
	modelID string
	backoff time.Duration
	logger  *slog.Logger
}

var _ Gateway = (*BedrockGateway)(nil)

// NewBedrockGateway builds a gateway from the standard AWS credential
// chain. Missing credentials are a configuration error, surfaced
// immediately rather than on the first converse call.
func NewBedrockGateway(ctx context.Context, cfg config.BedrockConfig, logger *slog.Logger) (*BedrockGateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, &GatewayError{Kind: KindConfig, Message: "load AWS config", Err: err}
	}
	if _, err := awscfg.Credentials.Retrieve(ctx); err != nil {
		return nil, &GatewayError{Kind: KindConfig, Message: "AWS credentials not configured", Err: err}
	}

	return &BedrockGateway{
		client:  bedrockruntime.NewFromConfig(awscfg),
		modelID: cfg.ModelID,
		backoff: throttleBackoff,
		logger:  logger.With("provider", "bedrock"),
	}, nil
}

// Converse sends one converse call. Turns are normalized first (leading
// assistant turn dropped, consecutive same-role turns merged). On a
// throttling response the call is retried exactly once after a fixed
// backoff; a second throttle surfaces as a rate-limited GatewayError.
func (g *BedrockGateway) Converse(ctx context.Context, turns []Turn, systemPrompt string, tools []ToolSpec, maxTokens int32) (*ConverseResponse, error) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	normalized := NormalizeTurns(turns)
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(g.modelID),
		Messages: toBedrockMessages(normalized),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(maxTokens),
		},
	}
	if len(tools) > 0 {
		input.ToolConfig = toToolConfig(tools)
	}

	g.logger.Debug("converse request",
		"model", g.modelID,
		"turns", len(normalized),
		"tools", len(tools),
	)
	if payload, err := json.Marshal(normalized); err == nil {
		g.logger.Log(ctx, config.LevelTrace, "converse payload", "turns", string(payload))
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out, err := g.client.Converse(callCtx, input)
	if err != nil && isThrottle(err) {
		g.logger.Warn("throttled by Bedrock, retrying once", "backoff", g.backoff)
		timer := time.NewTimer(g.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		retryCtx, retryCancel := context.WithTimeout(ctx, callTimeout)
		defer retryCancel()
		out, err = g.client.Converse(retryCtx, input)
	}
	if err != nil {
		return nil, g.classify(err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, &GatewayError{Kind: KindUpstream, Message: fmt.Sprintf("unexpected output type %T", out.Output)}
	}

	resp := &ConverseResponse{
		Message: fromBedrockMessage(msg.Value),
		Stop:    mapStopReason(out.StopReason),
	}

	g.logger.Debug("converse response",
		"stop", resp.Stop.String(),
		"blocks", len(resp.Message.Content),
	)

	return resp, nil
}

// classify maps SDK errors to the gateway error taxonomy.
func (g *BedrockGateway) classify(err error) error {
	var accessDenied *types.AccessDeniedException
	if errors.As(err, &accessDenied) {
		return &GatewayError{Kind: KindConfig, Message: "access denied to Bedrock model", Err: err}
	}

	if isThrottle(err) {
		return &GatewayError{Kind: KindRateLimited, Message: "rate limited, please try again later", Err: err}
	}

	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &GatewayError{Kind: KindUpstream, Message: fmt.Sprintf("model not found: %s", g.modelID), Err: err}
	}

	var validation *types.ValidationException
	if errors.As(err, &validation) {
		return &GatewayError{Kind: KindUpstream, Message: "invalid request", Err: err}
	}

	return &GatewayError{Kind: KindUpstream, Message: "bedrock error", Err: err}
}

func isThrottle(err error) bool {
	var throttled *types.ThrottlingException
	return errors.As(err, &throttled)
}

func mapStopReason(reason types.StopReason) StopSignal {
	switch reason {
	case types.StopReasonEndTurn:
		return StopComplete
	case types.StopReasonToolUse:
		return StopRequestsTools
	default:
		return StopOther
	}
}

func toBedrockMessages(turns []Turn) []types.Message {
	msgs := make([]types.Message, 0, len(turns))
	for _, t := range turns {
		role := types.ConversationRoleUser
		if t.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}

		blocks := make([]types.ContentBlock, 0, len(t.Content))
		for _, b := range t.Content {
			switch {
			case b.ToolUse != nil:
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(b.ToolUse.ID),
						Name:      aws.String(b.ToolUse.Name),
						Input:     document.NewLazyDocument(b.ToolUse.Input),
					},
				})
			case b.ToolResult != nil:
				blocks = append(blocks, &types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(b.ToolResult.ToolUseID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberJson{
								Value: document.NewLazyDocument(b.ToolResult.Content),
							},
						},
					},
				})
			default:
				blocks = append(blocks, &types.ContentBlockMemberText{Value: b.Text})
			}
		}

		msgs = append(msgs, types.Message{Role: role, Content: blocks})
	}
	return msgs
}

func fromBedrockMessage(msg types.Message) Turn {
	role := RoleUser
	if msg.Role == types.ConversationRoleAssistant {
		role = RoleAssistant
	}

	turn := Turn{Role: role}
	for _, block := range msg.Content {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			turn.Content = append(turn.Content, ContentBlock{Text: v.Value})
		case *types.ContentBlockMemberToolUse:
			tu := &ToolUseBlock{Input: decodeDocument(v.Value.Input)}
			if v.Value.ToolUseId != nil {
				tu.ID = *v.Value.ToolUseId
			}
			if v.Value.Name != nil {
				tu.Name = *v.Value.Name
			}
			turn.Content = append(turn.Content, ContentBlock{ToolUse: tu})
		}
	}
	return turn
}

func toToolConfig(tools []ToolSpec) *types.ToolConfiguration {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(t.InputSchema),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}
}

// decodeDocument converts a smithy document into a plain map. The JSON
// round trip normalizes smithy number types to float64, which is what
// tool handlers expect.
func decodeDocument(doc document.Interface) map[string]any {
	if doc == nil {
		return map[string]any{}
	}

	var raw any
	if err := doc.UnmarshalSmithyDocument(&raw); err != nil {
		return map[string]any{}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return map[string]any{}
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
