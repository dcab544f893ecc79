// Package classify assigns one topical category to each article. The rule
// classifier is the workhorse: ordered keyword patterns from the registry,
// first match wins. An optional OpenAI-backed classifier refines records
// the rules could not place, gated by the shared daily budget.
package classify

import (
	"context"
	"fmt"
	"regexp"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
)

// Uncategorized is the fallback for records no rule or model can place.
const Uncategorized = "Uncategorized"

// Classifier assigns a category label to one article.
type Classifier interface {
	Classify(ctx context.Context, a article.Article) string
}

type rule struct {
	name     string
	patterns []*regexp.Regexp
}

// RuleClassifier matches title and summary against ordered keyword rules.
// Rule order is significant: the first matching rule wins, so narrower
// categories belong before broader ones in the registry.
type RuleClassifier struct {
	rules []rule
}

func NewRuleClassifier(categories []config.CategoryRule) (*RuleClassifier, error) {
	c := &RuleClassifier{rules: make([]rule, 0, len(categories))}
	for _, cat := range categories {
		r := rule{name: cat.Name, patterns: make([]*regexp.Regexp, 0, len(cat.Patterns))}
		for _, p := range cat.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("category %q pattern %q: %w", cat.Name, p, err)
			}
			r.patterns = append(r.patterns, re)
		}
		c.rules = append(c.rules, r)
	}
	return c, nil
}

func (c *RuleClassifier) Classify(_ context.Context, a article.Article) string {
	for _, r := range c.rules {
		for _, re := range r.patterns {
			if re.MatchString(a.Title) || re.MatchString(a.Summary) {
				return r.name
			}
		}
	}
	return Uncategorized
}

// Names returns the configured category labels in rule order.
func (c *RuleClassifier) Names() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

// Known reports whether label is one of the configured categories.
func (c *RuleClassifier) Known(label string) bool {
	for _, r := range c.rules {
		if r.name == label {
			return true
		}
	}
	return false
}
