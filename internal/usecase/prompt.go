package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"wisegpt/internal/domain"
)

const defaultBotName = "WiseGPT"

// OpenAI only accepts [a-zA-Z0-9_-]{1,64} in the message name field.
var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func buildCompletionMessages(botName string, view domain.ConversationView) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPersonaPrompt(botName)},
	}
	messages = append(messages, historyMessages(view)...)
	return messages
}

func buildSummaryMessages(botName string, view domain.ConversationView) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildSummaryInstructions(botName)},
	}
	messages = append(messages, historyMessages(view)...)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: "Summarize the conversation above following your instructions.",
	})
	return messages
}

func historyMessages(view domain.ConversationView) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(view.Messages)+1)
	if summary := normalizePromptInput(view.Summary); summary != "" {
		out = append(out, domain.ChatMessage{
			Role:    domain.RoleSystem,
			Content: "Summary of the earlier conversation:\n" + summary,
		})
	}
	for _, m := range view.Messages {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		if !m.IsUser() {
			out = append(out, domain.ChatMessage{Role: domain.RoleAssistant, Content: text})
			continue
		}
		out = append(out, domain.ChatMessage{
			Role:    domain.RoleUser,
			Content: text,
			Name:    chatName(m.Author.ID),
		})
	}
	return out
}

func buildPersonaPrompt(botName string) string {
	return strings.Join([]string{
		fmt.Sprintf("Instructions for %s:", botName),
		"You're a regular chat participant and a software engineer.",
		"You are helpful and descriptive, and you cite your sources if you can.",
		"You are mindful of the conversation history and consistent with your answers.",
		"When providing code examples, use triple backticks.",
		"Organize longer answers with Markdown to keep them readable.",
		"You ask follow up questions if you cannot do something with the information you have.",
		"When asked to do complicated tasks, break the problem down step by step.",
		"Pay close attention to things people told you, such as their name and personal details.",
	}, "\n")
}

func buildSummaryInstructions(botName string) string {
	return strings.Join([]string{
		fmt.Sprintf("You maintain the long-term memory of %s.", botName),
		"Write a concise summary of the conversation that follows, including any earlier summary.",
		"Keep names, personal details, decisions and open questions.",
		"Write in third person and reply with the summary text only.",
	}, "\n")
}

func chatName(authorID string) string {
	name := invalidNameChars.ReplaceAllString(strings.TrimSpace(authorID), "_")
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
