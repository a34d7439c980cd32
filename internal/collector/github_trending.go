package collector

import (
	"log"
	"strings"

	"github.com/gocolly/colly/v2"
)

// GitHubTrendingFetcher 抓取 GitHub Python Trending，作为 AI 项目热度的近似来源
type GitHubTrendingFetcher struct{}

func (g *GitHubTrendingFetcher) Name() string {
	return "GitHub Trending"
}

func (g *GitHubTrendingFetcher) Fetch() ([]CandidateItem, error) {
	log.Println("fetch GitHub Trending...")

	c := colly.NewCollector(
		colly.AllowedDomains("github.com"),
		colly.UserAgent(browserUserAgent),
	)
	c.SetRequestTimeout(RequestTimeout)

	results := make([]CandidateItem, 0, 25)

	c.OnHTML("article.Box-row", func(e *colly.HTMLElement) {
		titleSel := e.DOM.Find("h2 a")
		if titleSel.Length() == 0 {
			return
		}

		repoName := strings.NewReplacer("\n", "", " ", "").Replace(strings.TrimSpace(titleSel.Text()))
		href, exists := titleSel.Attr("href")
		if !exists || repoName == "" {
			return
		}

		desc := strings.TrimSpace(e.ChildText("p"))
		if desc == "" {
			desc = "No description"
		}

		stars := strings.TrimSpace(e.ChildText("a[href$=\"/stargazers\"]"))
		if stars == "" {
			stars = "0"
		}

		results = append(results, CandidateItem{
			Title:       repoName,
			URL:         "https://github.com" + strings.TrimSpace(href),
			Description: desc,
			Source:      g.Name(),
			Stars:       stars,
			Extra: map[string]any{
				"repo":      repoName,
				"stars_raw": stars,
			},
		})
	})

	if err := c.Visit("https://github.com/trending/python?since=daily"); err != nil {
		return nil, err
	}

	log.Printf("github trending: found %d repos", len(results))
	return results, nil
}
