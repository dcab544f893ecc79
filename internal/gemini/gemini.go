// Package gemini asks the Gemini API whether two articles report the same
// underlying event. The judge is strictly optional: any failure, refusal or
// unparseable answer degrades to Inconclusive and the caller falls back to
// text similarity alone.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/anniezty/chinawire/internal/article"
)

// Verdict is the judge's answer for one article pair.
type Verdict int

const (
	Inconclusive Verdict = iota
	SameEvent
	DifferentEvent
)

func (v Verdict) String() string {
	switch v {
	case SameEvent:
		return "same"
	case DifferentEvent:
		return "different"
	default:
		return "inconclusive"
	}
}

// Judge resolves ambiguous article pairs. Implementations must never panic
// and should treat every internal failure as Inconclusive.
type Judge interface {
	Same(ctx context.Context, a, b article.Article) (Verdict, error)
	Close()
}

type Client struct {
	client *genai.Client
	model  string
}

func NewClient(apiKey string) (*Client, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{client: client, model: "gemini-1.5-flash"}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

const maxSummaryChars = 600

// Same asks whether two articles cover the same news event. The outlets and
// dates go into the prompt as context: two outlets running near-identical
// headlines days apart are usually different events.
func (c *Client) Same(ctx context.Context, a, b article.Article) (Verdict, error) {
	model := c.client.GenerativeModel(c.model)

	prompt := fmt.Sprintf(`You compare two news articles and answer whether they report the SAME underlying news event.

ARTICLE 1
Outlet: %s
Date: %s
Headline: %s
Summary: %s

ARTICLE 2
Outlet: %s
Date: %s
Headline: %s
Summary: %s

Answer with exactly one word on the first line: YES if both articles report the same event, NO if they report different events.`,
		article.OutletName(a.RawSource), dateLabel(a), a.Title, truncate(a.Summary),
		article.OutletName(b.RawSource), dateLabel(b), b.Title, truncate(b.Summary))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Inconclusive, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Inconclusive, fmt.Errorf("no response from Gemini")
	}

	answer := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	return ParseVerdict(answer), nil
}

// ParseVerdict reads a YES/NO answer out of model output. Anything that is
// not a clear yes or no on the first meaningful line is Inconclusive.
func ParseVerdict(answer string) Verdict {
	for _, line := range strings.Split(answer, "\n") {
		word := strings.ToUpper(strings.Trim(strings.TrimSpace(line), `."'!:`))
		if word == "" {
			continue
		}
		switch word {
		case "YES", "SAME":
			return SameEvent
		case "NO", "DIFFERENT":
			return DifferentEvent
		}
		return Inconclusive
	}
	return Inconclusive
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "(none)"
	}
	if utf8.RuneCountInString(s) <= maxSummaryChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxSummaryChars]) + "…"
}

func dateLabel(a article.Article) string {
	return a.EffectiveTime().Format(time.DateOnly)
}
