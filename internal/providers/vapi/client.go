package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"callagent/internal/domain"
)

const DefaultBaseURL = "https://api.vapi.ai"

type Client struct {
	APIKey        string
	PhoneNumberID string
	AssistantID   string
	BaseURL       string
	HTTP          *http.Client

	ModelProvider string
	Model         string
	VoiceProvider string
	VoiceID       string
}

type PhoneCallRequest struct {
	PhoneNumberID      string             `json:"phoneNumberId"`
	Customer           Customer           `json:"customer"`
	AssistantID        string             `json:"assistantId"`
	AssistantOverrides AssistantOverrides `json:"assistantOverrides"`
}

type Customer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type AssistantOverrides struct {
	FirstMessage string              `json:"firstMessage"`
	Model        Model               `json:"model"`
	Voice        Voice               `json:"voice"`
	Metadata     domain.CallMetadata `json:"metadata"`
}

type Model struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Voice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

type JSONSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type PhoneCallResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message any    `json:"message"`
}

func (c *Client) Name() string { return "vapi" }

// Configured reports whether the credentials needed to place a call are present.
func (c *Client) Configured() bool {
	return c != nil && c.APIKey != "" && c.PhoneNumberID != "" && c.AssistantID != ""
}

// CreatePhoneCall posts one outbound call. It never retries.
func (c *Client) CreatePhoneCall(ctx context.Context, req PhoneCallRequest) (PhoneCallResponse, int, []byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return PhoneCallResponse{}, 0, nil, err
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/call/phone", bytes.NewReader(body))
	if err != nil {
		return PhoneCallResponse{}, 0, nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return PhoneCallResponse{}, 0, nil, fmt.Errorf("vapi request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out PhoneCallResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, resp.StatusCode, b, &domain.ProviderError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return out, resp.StatusCode, b, nil
}

// PlaceCall maps a provider-agnostic call onto the Vapi phone call API.
func (c *Client) PlaceCall(ctx context.Context, call domain.OutboundCall) (domain.PlacedCall, error) {
	if !c.Configured() {
		return domain.PlacedCall{}, domain.ErrConfiguration
	}
	req := c.buildRequest(call)
	resp, _, raw, err := c.CreatePhoneCall(ctx, req)
	if err != nil {
		return domain.PlacedCall{}, err
	}
	return domain.PlacedCall{ID: resp.ID, Data: decodeData(raw)}, nil
}

func (c *Client) buildRequest(call domain.OutboundCall) PhoneCallRequest {
	tools := make([]Tool, 0, len(call.Tools))
	for _, t := range call.Tools {
		tools = append(tools, toolFromSpec(t))
	}
	return PhoneCallRequest{
		PhoneNumberID: c.PhoneNumberID,
		Customer:      Customer{Number: call.To, Name: call.CustomerName},
		AssistantID:   c.AssistantID,
		AssistantOverrides: AssistantOverrides{
			FirstMessage: call.Opening,
			Model: Model{
				Provider: orDefault(c.ModelProvider, "openai"),
				Model:    orDefault(c.Model, "gpt-4o"),
				Messages: []Message{{Role: "system", Content: call.Instructions}},
				Tools:    tools,
			},
			Voice: Voice{
				Provider: orDefault(c.VoiceProvider, "11labs"),
				VoiceID:  orDefault(c.VoiceID, "pFZP5JQG7iQjIQuC4Bku"),
			},
			Metadata: call.Metadata,
		},
	}
}

func toolFromSpec(t domain.ToolSpec) Tool {
	schema := JSONSchema{Type: "object", Properties: make(map[string]Property, len(t.Parameters))}
	for _, p := range t.Parameters {
		schema.Properties[p.Name] = Property{Type: p.Type, Description: p.Description}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return Tool{
		Type:     "function",
		Function: Function{Name: t.Name, Description: t.Description, Parameters: schema},
	}
}

func decodeData(raw []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]any{"raw": string(raw)}
	}
	return m
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
