package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionCallUnmarshalStringArguments(t *testing.T) {
	wire := `{"name":"create_email_draft","arguments":"{\"subject\":\"Hi\",\"body\":\"x\"}"}`

	var fc FunctionCall
	require.NoError(t, json.Unmarshal([]byte(wire), &fc))

	assert.Equal(t, "create_email_draft", fc.Name)
	assert.JSONEq(t, `{"subject":"Hi","body":"x"}`, string(fc.Arguments))

	// The inner JSON must parse directly, the way executors consume it.
	var params struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(fc.Arguments, &params))
	assert.Equal(t, "Hi", params.Subject)
	assert.Equal(t, "x", params.Body)
}

func TestFunctionCallUnmarshalInlineObjectArguments(t *testing.T) {
	wire := `{"name":"summarize_email","arguments":{"emailIndex":2}}`

	var fc FunctionCall
	require.NoError(t, json.Unmarshal([]byte(wire), &fc))
	assert.JSONEq(t, `{"emailIndex":2}`, string(fc.Arguments))
}

func TestFunctionCallMarshalQuotesArguments(t *testing.T) {
	fc := FunctionCall{
		Name:      "create_email_draft",
		Arguments: json.RawMessage(`{"subject":"Hi"}`),
	}

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var wire struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "create_email_draft", wire.Name)
	assert.JSONEq(t, `{"subject":"Hi"}`, wire.Arguments)
}

func TestFunctionCallMarshalEmptyArguments(t *testing.T) {
	data, err := json.Marshal(FunctionCall{Name: "noop"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"noop","arguments":"{}"}`, string(data))
}

func TestFunctionCallRoundTrip(t *testing.T) {
	original := FunctionCall{
		Name:      "create_calendar_event",
		Arguments: json.RawMessage(`{"title":"Sync","startTime":"2025-06-01T10:00:00Z"}`),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded FunctionCall
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Name, decoded.Name)
	assert.JSONEq(t, string(original.Arguments), string(decoded.Arguments))
}
