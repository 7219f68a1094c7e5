package agent

import (
	"strings"

	"github.com/jmulyadi/Github-Agent/internal/domain"
)

func systemPrompt() string {
	return strings.Join([]string{
		"You are a GitHub assistant that answers questions about repositories, issues, pull requests and source files.",
		"",
		"Rules:",
		"- Use the provided tools to look things up instead of guessing. Repositories are named owner/repo.",
		"- If the user does not name a repository and none was mentioned earlier in the conversation, ask which one they mean.",
		"- Cite issue and pull request numbers and link to them when a URL is available.",
		"- Summarize long file contents; quote only the relevant lines.",
		"- If a tool returns an error, explain what could not be retrieved.",
		"- You only have read access. Do not claim to have changed anything on GitHub.",
	}, "\n")
}

// buildMessages lays out the system prompt, the prior turns in order, and the
// current query.
func buildMessages(query string, history []domain.Turn) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: "system", Content: systemPrompt()})
	for _, turn := range history {
		role := "user"
		if turn.Role == domain.RoleAgent {
			role = "assistant"
		}
		messages = append(messages, domain.ChatMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, domain.ChatMessage{Role: "user", Content: query})
	return messages
}
