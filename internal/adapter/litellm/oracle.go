// Package litellm implements the decision oracle against an OpenAI-compatible
// chat-completions endpoint (LiteLLM proxy, OpenRouter, or OpenAI itself).
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/finch-ai/finch/internal/config"
	"github.com/finch-ai/finch/internal/domain"
	"github.com/finch-ai/finch/internal/domain/agent"
	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/oracle"
	"github.com/finch-ai/finch/internal/resilience"
)

const systemPrompt = `You are a research assistant that answers questions by calling tools.

Rules:
- Call tools to gather the data you need before answering.
- When you have enough information, reply with a final answer and no tool calls.
- If a tool reports an error, say what failed instead of inventing data.
- Keep answers factual and concise.`

// Oracle consults a chat-completions endpoint with function calling enabled
// and maps the response into a Decision. It is stateless: the full trace is
// replayed into the message list on every consultation.
type Oracle struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	backoff     resilience.Backoff
	httpClient  *http.Client
	breaker     *resilience.Breaker
	log         *slog.Logger
}

// NewOracle creates an oracle client from config.
func NewOracle(cfg config.Oracle, log *slog.Logger) *Oracle {
	return &Oracle{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		backoff:     resilience.Backoff{Base: 200 * time.Millisecond, Cap: 5 * time.Second},
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		log:         log,
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (o *Oracle) SetBreaker(b *resilience.Breaker) {
	o.breaker = b
}

// Decide sends the query, tool definitions, and trace to the model and maps
// the reply into tool calls or a final answer. Transport and parse errors are
// retried up to the configured budget; exhaustion yields ErrOracleFailure.
func (o *Oracle) Decide(ctx context.Context, req oracle.Request) (*oracle.Decision, error) {
	payload, err := json.Marshal(o.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal oracle request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			if err := o.backoff.Sleep(ctx, attempt-1); err != nil {
				return nil, err
			}
			o.log.Debug("retrying oracle", "attempt", attempt, "error", lastErr)
		}

		decision, err := o.decideOnce(ctx, payload)
		if err == nil {
			return decision, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %d attempts exhausted: %v", domain.ErrOracleFailure, o.maxRetries+1, lastErr)
}

func (o *Oracle) decideOnce(ctx context.Context, payload []byte) (*oracle.Decision, error) {
	var body []byte
	call := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
		}

		resp, err := o.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("oracle API error %d: %s", resp.StatusCode, string(data))
		}

		body = data
		return nil
	}

	if o.breaker != nil {
		err := o.breaker.Execute(call)
		if err != nil {
			return nil, err
		}
	} else if err := call(); err != nil {
		return nil, err
	}

	return parseDecision(body)
}

// --- wire types (OpenAI chat-completions schema) ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDef     `json:"tools,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (o *Oracle) buildRequest(req oracle.Request) chatRequest {
	msgs := []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: req.Query},
	}
	msgs = append(msgs, traceMessages(req.Trace)...)

	defs := make([]toolDef, 0, len(req.Tools))
	for _, t := range req.Tools {
		defs = append(defs, toolDef{
			Type: "function",
			Function: functionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  jsonSchema(t.Schema),
			},
		})
	}

	return chatRequest{
		Model:       o.model,
		Messages:    msgs,
		Tools:       defs,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
}

// traceMessages replays prior tool calls as assistant/tool message pairs so
// the stateless model sees everything already gathered.
func traceMessages(trace []agent.TraceStep) []chatMessage {
	var msgs []chatMessage
	for _, step := range trace {
		if step.Kind != agent.StepToolCall {
			continue
		}
		id := callID(step)
		argsJSON, err := json.Marshal(step.Args)
		if err != nil {
			argsJSON = []byte("{}")
		}
		msgs = append(msgs, chatMessage{
			Role: "assistant",
			ToolCalls: []wireToolCall{{
				ID:   id,
				Type: "function",
				Function: functionCall{
					Name:      step.Tool,
					Arguments: string(argsJSON),
				},
			}},
		})
		msgs = append(msgs, chatMessage{
			Role:       "tool",
			ToolCallID: id,
			Content:    resultContent(step.Result),
		})
	}
	return msgs
}

func callID(step agent.TraceStep) string {
	if step.Result != nil && step.Result.CallID != "" {
		return step.Result.CallID
	}
	return fmt.Sprintf("call_%d", step.Step)
}

func resultContent(res *tool.Result) string {
	if res == nil {
		return "no result"
	}
	if res.Failure != nil {
		return fmt.Sprintf("tool error (%s): %s", res.Failure.Kind, res.Failure.Message)
	}
	data, err := json.Marshal(res.Value)
	if err != nil {
		return fmt.Sprintf("%v", res.Value)
	}
	return string(data)
}

// jsonSchema converts a tool schema into a JSON Schema object for the
// function-calling parameters field.
func jsonSchema(s tool.Schema) map[string]any {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		prop := map[string]any{"type": jsonType(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonType(t tool.FieldType) string {
	switch t {
	case tool.TypeInt:
		return "integer"
	case tool.TypeNumber:
		return "number"
	case tool.TypeBool:
		return "boolean"
	default:
		return "string"
	}
}

func parseDecision(body []byte) (*oracle.Decision, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal oracle response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("oracle response has no choices")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		calls := make([]tool.Call, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			args := tool.Args{}
			if tc.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					return nil, fmt.Errorf("unmarshal tool call arguments for %s: %w", tc.Function.Name, err)
				}
			}
			calls = append(calls, tool.Call{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			})
		}
		return &oracle.Decision{ToolCalls: calls}, nil
	}

	answer := strings.TrimSpace(msg.Content)
	if answer == "" {
		return nil, fmt.Errorf("oracle response has neither tool calls nor content")
	}
	return &oracle.Decision{Answer: answer}, nil
}
