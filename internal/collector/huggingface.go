package collector

import (
	"log"
	"strings"

	"github.com/gocolly/colly/v2"
)

// HuggingFaceFetcher 抓取 Hugging Face Daily Papers 页面
type HuggingFaceFetcher struct{}

func (h *HuggingFaceFetcher) Name() string {
	return "Hugging Face Daily Papers"
}

func (h *HuggingFaceFetcher) Fetch() ([]CandidateItem, error) {
	log.Println("fetch Hugging Face Daily Papers...")

	c := colly.NewCollector(
		colly.AllowedDomains("huggingface.co"),
		colly.UserAgent(browserUserAgent),
	)
	c.SetRequestTimeout(RequestTimeout)

	results := make([]CandidateItem, 0, 30)

	c.OnHTML("article", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.DOM.Find("h3").First().Text())
		if title == "" {
			return
		}

		href, exists := e.DOM.Find("a").First().Attr("href")
		if !exists || href == "" {
			return
		}

		upvotes := strings.TrimSpace(e.DOM.Find("div.leading-none").First().Text())
		if upvotes == "" {
			upvotes = "0"
		}

		thumbnail, _ := e.DOM.Find("img").First().Attr("src")

		results = append(results, CandidateItem{
			Title:     title,
			URL:       "https://huggingface.co" + href,
			Source:    h.Name(),
			Upvotes:   upvotes,
			Thumbnail: thumbnail,
			Extra: map[string]any{
				"paper_path":  href,
				"upvotes_raw": upvotes,
			},
		})
	})

	if err := c.Visit("https://huggingface.co/papers"); err != nil {
		return nil, err
	}

	log.Printf("huggingface: found %d papers", len(results))
	return results, nil
}
