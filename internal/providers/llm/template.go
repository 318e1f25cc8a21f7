package llm

import "strings"

// Llama 3 instruction format delimiters.
const (
	llamaBegin       = "<|begin_of_text|>"
	llamaHeaderStart = "<|start_header_id|>"
	llamaHeaderEnd   = "<|end_header_id|>"
	llamaEOT         = "<|eot_id|>"
)

// Llama3Prompt flattens a request into a single bare prompt that ends with an open
// assistant header, so the model continues as the assistant.
func Llama3Prompt(req Request) string {
	var b strings.Builder
	b.WriteString(llamaBegin)
	if req.System != "" {
		writeLlamaTurn(&b, RoleSystem, req.System)
	}
	for _, m := range req.History {
		if m.Role == RoleSystem {
			continue
		}
		writeLlamaTurn(&b, m.Role, m.Content)
	}
	writeLlamaTurn(&b, RoleUser, req.Message)
	b.WriteString(llamaHeaderStart)
	b.WriteString(string(RoleAssistant))
	b.WriteString(llamaHeaderEnd)
	b.WriteString("\n\n")
	return b.String()
}

func writeLlamaTurn(b *strings.Builder, role Role, content string) {
	b.WriteString(llamaHeaderStart)
	b.WriteString(string(role))
	b.WriteString(llamaHeaderEnd)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(content))
	b.WriteString(llamaEOT)
}
