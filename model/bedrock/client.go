package bedrock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mealmind/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	// defaultModelID is an inference profile ID or ARN, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// 1k is a good balance for cost + safety. Raise it when expecting longer responses.
	defaultMaxTokens = 1024

	// Low temperature keeps outputs more deterministic and consistent, which is better for JSON and structured outputs.
	defaultTemperature = 0.2

	// Low top_p keeps outputs more focused and less random.
	defaultTopP = 0.9

	// defaultTimeout caps a single Converse call so a hung model invocation
	// cannot stall the whole turn.
	defaultTimeout = 60 * time.Second
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type ClientOpts struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
	Timeout     time.Duration
}

type Client struct {
	brc  bedrockRuntimeClient
	opts ClientOpts
}

func NewClient(brc bedrockRuntimeClient, opts ClientOpts) *Client {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		brc:  brc,
		opts: opts,
	}
}

// Complete sends the messages through the Bedrock Converse API and returns the
// completion text. System messages become system content blocks; everything
// else maps onto the user/assistant conversation.
func (c *Client) Complete(ctx context.Context, messages []model.Message) (model.Message, error) {
	slog.Info("MODEL_GATEWAY: Invoked", "messages_len", len(messages))

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var sys []types.SystemContentBlock
	var msgs []types.Message
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			sys = append(sys, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		msgs = append(msgs, types.Message{
			Role:    types.ConversationRole(m.Role),
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  &c.opts.ModelID,
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		return model.Message{}, &model.UpstreamError{Op: "bedrock converse", Err: err}
	}

	slog.Info("MODEL_GATEWAY: Bedrock converse succeeded",
		"stop_reason", out.StopReason,
		"latency_ms", aws.ToInt64(out.Metrics.LatencyMs),
		"input_tokens", aws.ToInt32(out.Usage.InputTokens),
		"output_tokens", aws.ToInt32(out.Usage.OutputTokens),
	)

	if out.StopReason == types.StopReasonMaxTokens {
		slog.Warn("MODEL_GATEWAY: Model hit MaxTokens limit; consider increasing MaxTokens")
	}

	text, err := textFromOutput(out)
	if err != nil {
		return model.Message{}, &model.UpstreamError{Op: "bedrock converse", Err: err}
	}

	return model.Message{Role: model.RoleAssistant, Content: text}, nil
}

func textFromOutput(out *bedrockruntime.ConverseOutput) (string, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected converse output type %T", out.Output)
	}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			return text.Value, nil
		}
	}
	return "", fmt.Errorf("no text content block in converse output")
}
