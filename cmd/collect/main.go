package main

import (
	"context"
	"log"

	"github.com/LJTian/AIDailyHub/internal/collector"
	"github.com/LJTian/AIDailyHub/internal/config"
	"github.com/LJTian/AIDailyHub/internal/pipeline"
	"github.com/LJTian/AIDailyHub/internal/storage"
	"github.com/LJTian/AIDailyHub/internal/summary"
)

// 一个仅执行一轮采集流水线的命令行入口：适合手动触发或排查问题
func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	fetchers := []collector.Fetcher{
		&collector.GitHubTrendingFetcher{},
		&collector.HuggingFaceFetcher{},
		&collector.JuejinFetcher{},
		&collector.RedditFetcher{},
		&collector.QbitAIFetcher{},
	}

	var summarizer summary.Summarizer
	if cfg.OpenAIAPIKey != "" {
		summarizer = summary.NewOpenAISummarizer(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AITimeout)
	} else {
		summarizer = summary.NewLocalSummarizer()
	}

	p := pipeline.New(fetchers, summarizer, store)

	report, err := p.Run(context.Background())
	if err != nil {
		log.Fatalf("pipeline run failed: %v", err)
	}
	log.Printf("pipeline done, new=%d updated=%d", report.New, report.Updated)
}
