package article

import (
	"net/url"
	"strings"
)

// Outlet abbreviations keyed by feed/endpoint URL prefix. Feed URLs often
// live on a different host than the outlet itself, so prefixes are checked
// before falling back to the article domain.
var outletPrefixes = []struct {
	prefix string
	name   string
}{
	{"https://feeds.a.dj.com/", "WSJ"},
	{"https://feeds.bloomberg.com/", "Bloomberg"},
	{"https://rss.nytimes.com/", "NYT"},
	{"https://www.nytimes.com/svc/collections/", "NYT"},
	{"http://feeds.washingtonpost.com/", "WaPo"},
	{"https://asia.nikkei.com/", "Nikkei"},
	{"https://www.economist.com/", "Economist"},
	{"https://feeds.reuters.com/", "Reuters"},
	{"https://apnews.com/", "AP"},
	{"https://www.scmp.com/", "SCMP"},
	{"https://thediplomat.com/", "Diplomat"},
	{"https://foreignpolicy.com/", "FP"},
	{"https://www.foreignaffairs.com/", "FA"},
	{"https://warontherocks.com/", "WOTR"},
	{"https://www.hoover.org/", "CLM"},
	{"https://api.axios.com/", "Axios"},
	{"https://www.axios.com/", "Axios"},
	{"https://pekingnology.substack.com/", "Pekingnology"},
	{"https://feeds.bbci.co.uk/", "BBC"},
	{"http://rss.cnn.com/", "CNN"},
	{"https://moxie.foxnews.com/", "Fox"},
	{"https://feeds.nbcnews.com/", "NBC"},
	{"https://www.cbsnews.com/", "CBS"},
	{"https://www.chinafile.com/", "ChinaFile"},
	{"https://www.csis.org/", "CSIS"},
	{"https://www.piie.com/", "PIIE"},
}

var outletDomains = map[string]string{
	"nytimes.com":               "NYT",
	"thediplomat.com":           "Diplomat",
	"foreignaffairs.com":        "FA",
	"foreignpolicy.com":         "FP",
	"scmp.com":                  "SCMP",
	"foxnews.com":               "Fox",
	"pekingnology.substack.com": "Pekingnology",
	"thewirechina.com":          "The Wire China",
	"bbc.com":                   "BBC",
	"feeds.bbci.co.uk":          "BBC",
	"reuters.com":               "Reuters",
	"bloomberg.com":             "Bloomberg",
	"economist.com":             "Economist",
	"chinafile.com":             "ChinaFile",
	"washingtonpost.com":        "WaPo",
	"politico.com":              "Politico",
	"nikkei.com":                "Nikkei",
	"asia.nikkei.com":           "Nikkei",
	"apnews.com":                "AP",
	"axios.com":                 "Axios",
	"warontherocks.com":         "WOTR",
	"hoover.org":                "CLM",
	"cbsnews.com":               "CBS",
	"nbcnews.com":               "NBC",
	"cnn.com":                   "CNN",
	"ft.com":                    "FT",
	"wired.com":                 "Wired",
	"prcleader.org":             "CLM",
	"wsj.com":                   "WSJ",
	"restofworld.org":           "ROW",
	"piie.com":                  "PIIE",
	"csis.org":                  "CSIS",
	"latimes.com":               "LA Times",
	"theatlantic.com":           "Atlantic",
}

// OutletName maps a raw feed/endpoint URL to an outlet abbreviation.
// Unmatched sources degrade to the bare domain, never the full URL.
func OutletName(rawSource string) string {
	for _, p := range outletPrefixes {
		if strings.HasPrefix(rawSource, p.prefix) {
			return p.name
		}
	}
	if strings.Contains(rawSource, "news.google.com") {
		return "GNews"
	}
	if dom := DomainOf(rawSource); dom != "" {
		if name, ok := outletDomains[dom]; ok {
			return name
		}
		return dom
	}
	return rawSource
}

// DomainOf extracts the lowercased host of a URL without the www prefix.
func DomainOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
