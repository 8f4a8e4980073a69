// Package anthropic wraps the official SDK behind the single-turn,
// tool-use request the feature extractor sends.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

const service = "anthropic"

// Tool choice modes. The zero value leaves the choice to the API default.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
)

// Client sends one message and returns the model reply.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single user turn with an optional system prompt.
type MessageRequest struct {
	Model      string
	MaxTokens  int64
	System     string
	Prompt     string
	Tools      []Tool
	ToolChoice string
}

// Tool declares a function the model may call. InputSchema is a JSON
// Schema object; "properties" and "required" map onto the SDK fields and
// any other key except "type" is sent through unchanged.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// MessageResponse is the subset of an SDK message the caller reads.
type MessageResponse struct {
	ID         string
	Model      string
	StopReason string
	Content    []ContentBlock
	Usage      TokenUsage
}

// ContentBlock is a text block (Text set) or a tool call (ID, Name and
// Input set).
type ContentBlock struct {
	Type  string
	Text  string
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolUse returns the first call of tool name in the reply.
func (r *MessageResponse) ToolUse(name string) (ContentBlock, bool) {
	for _, b := range r.Content {
		if b.Type == "tool_use" && b.Name == name {
			return b, true
		}
	}
	return ContentBlock{}, false
}

// TokenUsage is the billed token count of one call.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Total sums every billed token.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

type sdkClient struct {
	client sdk.Client
}

// NewClient returns an SDK-backed Client. opts are passed to the SDK after
// the API key, so callers can set the base URL or its retry count.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	return &sdkClient{
		client: sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
	}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.client.Messages.New(ctx, buildParams(req))
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			err = resilience.NewStatusError(service, apiErr.StatusCode, []byte(apiErr.Error()))
		}
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return convertMessage(msg), nil
}

func buildParams(req MessageRequest) sdk.MessageNewParams {
	p := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
	}
	if req.System != "" {
		p.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	for _, t := range req.Tools {
		tp := sdk.ToolParam{Name: t.Name, InputSchema: inputSchema(t.InputSchema)}
		if t.Description != "" {
			tp.Description = sdk.String(t.Description)
		}
		p.Tools = append(p.Tools, sdk.ToolUnionParam{OfTool: &tp})
	}
	switch req.ToolChoice {
	case ToolChoiceAuto:
		p.ToolChoice = sdk.ToolChoiceUnionParam{OfAuto: &sdk.ToolChoiceAutoParam{}}
	case ToolChoiceAny:
		p.ToolChoice = sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	}
	return p
}

// inputSchema splits a JSON Schema object into the SDK's typed fields and
// its pass-through extras. The SDK always sends "type": "object".
func inputSchema(schema map[string]any) sdk.ToolInputSchemaParam {
	var out sdk.ToolInputSchemaParam
	extra := map[string]any{}
	for k, v := range schema {
		switch k {
		case "type":
		case "properties":
			out.Properties = v
		case "required":
			out.Required = stringList(v)
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		out.ExtraFields = extra
	}
	return out
}

// stringList accepts the []string a Go literal produces or the []any a
// decoded document produces.
func stringList(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, s := range vv {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func convertMessage(msg *sdk.Message) *MessageResponse {
	resp := &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Content:    make([]ContentBlock, 0, len(msg.Content)),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
	for _, b := range msg.Content {
		cb := ContentBlock{Type: b.Type, Text: b.Text}
		if b.Type == "tool_use" {
			cb.ID, cb.Name, cb.Input = b.ID, b.Name, b.Input
		}
		resp.Content = append(resp.Content, cb)
	}
	return resp
}
