package source

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/anniezty/chinawire/internal/article"
)

// card is one listing entry before normalization. Listing markup varies per
// site, so extraction works from common structures down to slug heuristics.
type card struct {
	url       string
	title     string
	summary   string
	published *time.Time
}

var skipPathFragments = []string{
	"/location/", "/tag/", "/member/", "/marketing/", "/category/",
	"/about", "/help", "/podcast", "/event",
}

// extractCards pulls listing entries out of a parsed document. It prefers
// semantic <article> blocks and falls back to scanning anchors whose paths
// look like article slugs.
func extractCards(doc *goquery.Document, base *url.URL) []card {
	var cards []card
	seen := make(map[string]bool)

	doc.Find("article").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h2 a, h3 a, h4 a").First()
		if link.Length() == 0 {
			link = sel.Find("a[href]").First()
		}
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		abs := resolveURL(base, href)
		if abs == "" || seen[abs] {
			return
		}
		title := article.CleanHTML(link.Text())
		if len(title) < 15 {
			if h := sel.Find("h2, h3, h4").First(); h.Length() > 0 {
				title = article.CleanHTML(h.Text())
			}
		}
		if len(title) < 15 {
			return
		}
		seen[abs] = true
		cards = append(cards, card{
			url:       abs,
			title:     title,
			summary:   cardSummary(sel),
			published: cardDate(sel),
		})
	})
	if len(cards) > 0 {
		return cards
	}

	// No article blocks; fall back to slug-shaped anchors.
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		abs := resolveURL(base, href)
		if abs == "" || seen[abs] || !looksLikeArticlePath(abs) {
			return
		}
		title := article.CleanHTML(link.Text())
		if len(title) < 15 {
			parent := link.Parent()
			for depth := 0; depth < 3 && parent.Length() > 0; depth++ {
				if h := parent.Find("h2, h3, h4").First(); h.Length() > 0 {
					if t := article.CleanHTML(h.Text()); len(t) >= 15 {
						title = t
						break
					}
				}
				parent = parent.Parent()
			}
		}
		if len(title) < 15 {
			return
		}
		seen[abs] = true
		cards = append(cards, card{
			url:       abs,
			title:     title,
			summary:   cardSummary(link.Parent()),
			published: cardDate(link.Parent()),
		})
	})
	return cards
}

func cardDate(sel *goquery.Selection) *time.Time {
	timeTag := sel.Find("time").First()
	if timeTag.Length() > 0 {
		if attr, ok := timeTag.Attr("datetime"); ok {
			if t := parseTime(attr); t != nil {
				return t
			}
		}
		if t := parseTime(strings.TrimSpace(timeTag.Text())); t != nil {
			return t
		}
	}
	return findDateInText(sel.Text())
}

func cardSummary(sel *goquery.Selection) string {
	p := sel.Find("p").First()
	if p.Length() == 0 {
		return ""
	}
	text := article.CleanHTML(p.Text())
	// Listing cards often append the publish date to the blurb.
	for _, re := range datePatterns {
		text = strings.TrimSpace(strings.TrimSuffix(text, re.FindString(text)))
	}
	return strings.Trim(text, " •-–—")
}

func resolveURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	// Listings only link within their own site.
	if abs.Host != base.Host {
		return ""
	}
	return abs.String()
}

// looksLikeArticlePath reports whether a URL path has the shape of an
// article permalink rather than a section or utility page.
func looksLikeArticlePath(abs string) bool {
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	lower := strings.ToLower(u.Path)
	for _, frag := range skipPathFragments {
		if strings.Contains(lower, frag) {
			return false
		}
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) < 2 {
		return false
	}
	slug := segments[len(segments)-1]
	if len(slug) < 20 || strings.Contains(slug, ".") {
		return false
	}
	return strings.Contains(slug, "-") || strings.Contains(slug, "_")
}
