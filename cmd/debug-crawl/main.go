package main

import (
	"fmt"
	"log"

	"github.com/LJTian/AIDailyHub/internal/collector"
)

const samplePerSource = 2

// 逐个跑一遍所有数据源并打印前几条结果，
// 用于在上游页面结构变化后快速定位是哪个源坏了。
func main() {
	fetchers := []collector.Fetcher{
		&collector.GitHubTrendingFetcher{},
		&collector.HuggingFaceFetcher{},
		&collector.JuejinFetcher{},
		&collector.RedditFetcher{},
		&collector.QbitAIFetcher{},
	}

	for _, f := range fetchers {
		fmt.Printf("\n--- %s ---\n", f.Name())

		items, err := f.Fetch()
		if err != nil {
			log.Printf("fetch %s error: %v", f.Name(), err)
			continue
		}
		fmt.Printf("got %d items\n", len(items))

		for i, item := range items {
			if i >= samplePerSource {
				break
			}
			fmt.Printf("  title=%q url=%s stars=%q upvotes=%q\n", item.Title, item.URL, item.Stars, item.Upvotes)
		}
	}
}
