package classify

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/budget"
	"github.com/anniezty/chinawire/internal/logger"
)

// ModelClassifier asks a chat model to pick a category when the keyword
// rules come up empty. Every call is metered against the shared budget;
// exhausted budget, transport errors and off-list answers all fall back to
// the rule classifier's verdict.
type ModelClassifier struct {
	client *openai.Client
	model  string
	rules  *RuleClassifier
	budget budget.Budget
}

func NewModelClassifier(apiKey, model string, rules *RuleClassifier, b budget.Budget) *ModelClassifier {
	if b == nil {
		b = budget.Unlimited{}
	}
	return &ModelClassifier{
		client: openai.NewClient(apiKey),
		model:  model,
		rules:  rules,
		budget: b,
	}
}

func (m *ModelClassifier) Classify(ctx context.Context, a article.Article) string {
	if label := m.rules.Classify(ctx, a); label != Uncategorized {
		return label
	}
	if !m.budget.Allow() {
		logger.Debug("classification budget exhausted; keeping rule verdict", "url", a.URL)
		return Uncategorized
	}

	label, err := m.ask(ctx, a)
	if err != nil {
		logger.Warn("model classification failed", "url", a.URL, "error", err)
		return Uncategorized
	}
	// Only completed calls count against the daily allowance; a transport
	// failure should not burn quota.
	m.budget.Record()
	if !m.rules.Known(label) {
		logger.Debug("model returned unknown category", "label", label, "url", a.URL)
		return Uncategorized
	}
	return label
}

func (m *ModelClassifier) ask(ctx context.Context, a article.Article) (string, error) {
	names := m.rules.Names()
	prompt := fmt.Sprintf(
		"Categorize this news article into exactly one of these categories: %s.\n\nHeadline: %s\nSummary: %s\n\nReply with the category name only.",
		strings.Join(names, ", "), a.Title, a.Summary)

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: 0,
		MaxTokens:   16,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You label news articles about U.S.-China relations. Answer with a single category name from the provided list and nothing else.",
			},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(strings.Trim(resp.Choices[0].Message.Content, `".`)), nil
}
