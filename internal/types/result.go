// Package types holds the small shared types crossing package boundaries,
// most importantly the discriminated result every tool executor returns.
package types

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of a tool execution. It marshals to a flat JSON
// object: {"success":true, ...payload} or {"success":false,"error":"..."}.
// Executors return a Result for every outcome and never let errors or panics
// escape their boundary, so the orchestration loop can treat each tool call
// in isolation.
type Result struct {
	Success bool
	Error   string
	Payload map[string]any
}

// Ok returns a successful Result carrying the given payload fields.
func Ok(payload map[string]any) Result {
	return Result{Success: true, Payload: payload}
}

// Errf returns a failed Result with a formatted error message.
func Errf(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// MarshalJSON flattens the payload fields next to the success flag. Payload
// keys named "success" or "error" are ignored rather than allowed to shadow
// the discriminator.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Payload)+2)
	for k, v := range r.Payload {
		if k == "success" || k == "error" {
			continue
		}
		out[k] = v
	}
	out["success"] = r.Success
	if r.Error != "" {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds a Result from its flattened form.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["success"].(bool); ok {
		r.Success = v
	}
	if v, ok := raw["error"].(string); ok {
		r.Error = v
	}
	delete(raw, "success")
	delete(raw, "error")
	r.Payload = raw
	return nil
}
