package collector

import (
	"log"
	"strings"

	"github.com/gocolly/colly/v2"
)

// QbitAIFetcher 抓取量子位首页文章列表
type QbitAIFetcher struct{}

func (q *QbitAIFetcher) Name() string {
	return "QbitAI"
}

func (q *QbitAIFetcher) Fetch() ([]CandidateItem, error) {
	log.Println("fetch QbitAI...")

	c := colly.NewCollector(
		colly.AllowedDomains("www.qbitai.com", "qbitai.com"),
		colly.UserAgent(browserUserAgent),
	)
	c.SetRequestTimeout(RequestTimeout)

	results := make([]CandidateItem, 0, 20)

	c.OnHTML("div.text_box", func(e *colly.HTMLElement) {
		link := e.DOM.Find("h4 a").First()
		title := strings.TrimSpace(link.Text())
		href, exists := link.Attr("href")
		if title == "" || !exists || href == "" {
			return
		}

		desc := strings.TrimSpace(e.DOM.Find("p.intro").First().Text())
		if desc == "" {
			desc = title
		}

		extra := map[string]any{}
		if author := strings.TrimSpace(e.DOM.Find("span.author").First().Text()); author != "" {
			extra["author"] = author
		}
		if published := strings.TrimSpace(e.DOM.Find("span.time").First().Text()); published != "" {
			extra["published"] = published
		}

		results = append(results, CandidateItem{
			Title:       title,
			URL:         href,
			Description: desc,
			Source:      q.Name(),
			Extra:       extra,
		})
	})

	if err := c.Visit("https://www.qbitai.com/"); err != nil {
		return nil, err
	}

	log.Printf("qbitai: found %d articles", len(results))
	return results, nil
}
