package llm

import "encoding/json"

// parseToolArguments decodes a tool call's JSON argument string into a
// map. Malformed arguments decode to an empty map rather than erroring,
// so the code that dispatches the call sees it as a call with no
// arguments.
func parseToolArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}
