package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/docqa/internal/core/domain"
)

const baseSystemPrompt = `You are an assistant that answers questions about an uploaded document.

INSTRUCTIONS:
- Answer only from the provided document content
- If the content is not sufficient to answer, say so directly
- Keep answers concise but complete
- Reference the specific parts of the document you used`

// PromptBuilder assembles the generation request from retrieved contexts and
// a bounded window of prior conversation turns. Contexts are added in rank
// order; one that would push the total past ContextCharBudget is dropped
// whole and assembly stops, keeping each included section intact.
type PromptBuilder struct {
	ContextCharBudget int
	HistoryTurns      int
	HistoryAnswerCap  int
}

func NewPromptBuilder(contextCharBudget, historyTurns, historyAnswerCap int) *PromptBuilder {
	if contextCharBudget <= 0 {
		contextCharBudget = 2500
	}
	if historyTurns <= 0 {
		historyTurns = 2
	}
	if historyAnswerCap <= 0 {
		historyAnswerCap = 200
	}
	return &PromptBuilder{
		ContextCharBudget: contextCharBudget,
		HistoryTurns:      historyTurns,
		HistoryAnswerCap:  historyAnswerCap,
	}
}

func (b *PromptBuilder) BuildSystemPrompt(history []domain.ConversationTurn) string {
	if len(history) == 0 {
		return baseSystemPrompt
	}

	if len(history) > b.HistoryTurns {
		history = history[len(history)-b.HistoryTurns:]
	}

	var sb strings.Builder
	sb.WriteString(baseSystemPrompt)
	sb.WriteString("\n\nPREVIOUS CONVERSATION:\n")
	for _, turn := range history {
		answer := turn.Answer
		if utf8.RuneCountInString(answer) > b.HistoryAnswerCap {
			answer = string([]rune(answer)[:b.HistoryAnswerCap]) + "..."
		}
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n", turn.Question, answer)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *PromptBuilder) BuildUserPrompt(question string, contexts []string, documentName string) string {
	var contextText strings.Builder
	total := 0
	for i, ctx := range contexts {
		section := fmt.Sprintf("SECTION %d:\n%s\n\n", i+1, ctx)
		if total+utf8.RuneCountInString(section) > b.ContextCharBudget {
			break
		}
		contextText.WriteString(section)
		total += utf8.RuneCountInString(section)
	}

	return fmt.Sprintf(`DOCUMENT: %s

RELEVANT CONTENT:
%s

QUESTION: %s

Answer the question using only the content provided above from the document %q.`,
		documentName,
		strings.TrimSpace(contextText.String()),
		question,
		documentName,
	)
}
