package engine

import "strings"

// basePrompt describes the assistant's standing capabilities; per-tool usage
// guidance is appended for whichever tools are enabled at send time.
const basePrompt = `You are an AI assistant helping with email management. You can:
1. Analyze emails and provide summaries
2. Suggest email improvements`

const noToolsNote = "You do not have access to any tools in this conversation. Respond with plain text only."

// buildSystemPrompt assembles the system message for one turn from the base
// capability description and the enabled tools' usage instructions.
func buildSystemPrompt(enabled []*Tool) string {
	lines := []string{basePrompt}

	if len(enabled) == 0 {
		lines = append(lines, "", noToolsNote)
		return strings.Join(lines, "\n")
	}

	names := make([]string, len(enabled))
	for i, t := range enabled {
		names[i] = t.FunctionName
	}

	lines = append(lines,
		"",
		"TOOLS: "+strings.Join(names, ", "),
		"",
		"When the user asks for something a tool covers, call the tool instead of describing what you would do. Ask only for genuinely missing required parameters.",
	)

	for _, t := range enabled {
		if t.Usage == "" {
			continue
		}
		lines = append(lines, "", "### "+t.FunctionName, t.Usage)
	}

	return strings.Join(lines, "\n")
}
