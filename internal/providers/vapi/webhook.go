package vapi

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"callagent/internal/domain"
)

const (
	EventToolCalls       = "tool-calls"
	EventEndOfCallReport = "end-of-call-report"

	SecretHeader = "x-vapi-secret"
)

// WebhookPayload is the envelope Vapi posts to the server URL.
type WebhookPayload struct {
	Message *ServerMessage `json:"message"`
}

type ServerMessage struct {
	Type       string     `json:"type"`
	ToolCalls  []ToolCall `json:"toolCalls"`
	Call       *Call      `json:"call"`
	Summary    string     `json:"summary"`
	Transcript string     `json:"transcript"`
	Analysis   *Analysis  `json:"analysis,omitempty"`
}

type Analysis struct {
	Summary string `json:"summary"`
}

type Call struct {
	ID                 string               `json:"id"`
	Customer           *Customer            `json:"customer"`
	AssistantOverrides *CallAssistant       `json:"assistantOverrides"`
	Metadata           *domain.CallMetadata `json:"metadata,omitempty"`
}

type CallAssistant struct {
	Metadata domain.CallMetadata `json:"metadata"`
}

type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string    `json:"name"`
	Arguments Arguments `json:"arguments"`
}

// Arguments are the tool call arguments. Vapi sends either a JSON object or a string
// holding one; both decode to the same map. Anything else decodes to an empty map so a
// sloppy tool call still records what the call metadata knows.
type Arguments map[string]any

func (a *Arguments) UnmarshalJSON(b []byte) error {
	*a = nil
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	*a = m
	return nil
}

// String returns the argument as trimmed text. Missing and null values are "".
func (a Arguments) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// ParseWebhook decodes a webhook body. Only a body that is not JSON is an error. A field
// of an unexpected shape decodes as absent so the rest of the event stays usable, and a
// body without a message object decodes to an empty message that matches no event type.
func ParseWebhook(b []byte) (*ServerMessage, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decode vapi webhook: %w", err)
	}
	return parseMessage(object(b)["message"]), nil
}

func parseMessage(raw json.RawMessage) *ServerMessage {
	f := object(raw)
	m := &ServerMessage{
		Type:       text(f["type"]),
		Call:       parseCall(f["call"]),
		Summary:    text(f["summary"]),
		Transcript: text(f["transcript"]),
	}
	for _, tc := range array(f["toolCalls"]) {
		m.ToolCalls = append(m.ToolCalls, parseToolCall(tc))
	}
	if a := object(f["analysis"]); a != nil {
		m.Analysis = &Analysis{Summary: text(a["summary"])}
	}
	return m
}

func parseCall(raw json.RawMessage) *Call {
	f := object(raw)
	if f == nil {
		return nil
	}
	c := &Call{ID: text(f["id"])}
	if cu := object(f["customer"]); cu != nil {
		c.Customer = &Customer{Number: text(cu["number"]), Name: text(cu["name"])}
	}
	if ao := object(f["assistantOverrides"]); ao != nil {
		c.AssistantOverrides = &CallAssistant{Metadata: parseMetadata(ao["metadata"])}
	}
	if object(f["metadata"]) != nil {
		md := parseMetadata(f["metadata"])
		c.Metadata = &md
	}
	return c
}

func parseToolCall(raw json.RawMessage) ToolCall {
	f := object(raw)
	fn := object(f["function"])
	var args Arguments
	if a, ok := fn["arguments"]; ok {
		_ = args.UnmarshalJSON(a)
	}
	return ToolCall{
		ID:       text(f["id"]),
		Type:     text(f["type"]),
		Function: ToolCallFunction{Name: text(fn["name"]), Arguments: args},
	}
}

func parseMetadata(raw json.RawMessage) domain.CallMetadata {
	f := object(raw)
	return domain.CallMetadata{
		InquiryID:     text(f["inquiryId"]),
		CustomerName:  text(f["customerName"]),
		PreferredArea: text(f["preferredArea"]),
		Budget:        text(f["budget"]),
		Language:      text(f["language"]),
	}
}

// object is nil unless raw holds a JSON object.
func object(raw json.RawMessage) map[string]json.RawMessage {
	var f map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &f) != nil {
		return nil
	}
	return f
}

func array(raw json.RawMessage) []json.RawMessage {
	var a []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &a) != nil {
		return nil
	}
	return a
}

// text renders a scalar as a string. Numbers keep their literal form; objects, arrays and
// null are "".
func text(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// CallID is "" when the event carries no call object.
func (m *ServerMessage) CallID() string {
	if m.Call == nil {
		return ""
	}
	return m.Call.ID
}

// CustomerNumber is the dialled number as reported by the provider.
func (m *ServerMessage) CustomerNumber() string {
	if m.Call == nil || m.Call.Customer == nil {
		return ""
	}
	return m.Call.Customer.Number
}

// Metadata is the metadata attached when the call was placed. Older payloads carry it on
// the call itself, and overrides without any metadata fall through to it.
func (m *ServerMessage) Metadata() domain.CallMetadata {
	if m.Call == nil {
		return domain.CallMetadata{}
	}
	if ao := m.Call.AssistantOverrides; ao != nil && ao.Metadata != (domain.CallMetadata{}) {
		return ao.Metadata
	}
	if m.Call.Metadata != nil {
		return *m.Call.Metadata
	}
	return domain.CallMetadata{}
}

// CallSummary prefers the top-level summary and falls back to the analysis block.
func (m *ServerMessage) CallSummary() string {
	if m.Summary != "" {
		return m.Summary
	}
	if m.Analysis != nil {
		return m.Analysis.Summary
	}
	return ""
}

// VerifySecret checks the shared secret header. An empty secret disables the check.
func VerifySecret(secret string, r *http.Request) bool {
	if secret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
