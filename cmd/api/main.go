package main

import (
	"log"

	"github.com/LJTian/AIDailyHub/internal/api"
	"github.com/LJTian/AIDailyHub/internal/collector"
	"github.com/LJTian/AIDailyHub/internal/config"
	"github.com/LJTian/AIDailyHub/internal/notify"
	"github.com/LJTian/AIDailyHub/internal/pipeline"
	"github.com/LJTian/AIDailyHub/internal/scheduler"
	"github.com/LJTian/AIDailyHub/internal/storage"
	"github.com/LJTian/AIDailyHub/internal/summary"
	"github.com/LJTian/AIDailyHub/internal/wechat"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 注册全部数据源
	fetchers := []collector.Fetcher{
		&collector.GitHubTrendingFetcher{},
		&collector.HuggingFaceFetcher{},
		&collector.JuejinFetcher{},
		&collector.RedditFetcher{},
		&collector.QbitAIFetcher{},
	}

	// 未配置 API Key 时退回本地抽取模式，流水线本身不受影响
	var summarizer summary.Summarizer
	if cfg.OpenAIAPIKey != "" {
		summarizer = summary.NewOpenAISummarizer(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AITimeout)
		log.Printf("using OpenAI-compatible summarizer (model: %s)", cfg.OpenAIModel)
	} else {
		summarizer = summary.NewLocalSummarizer()
		log.Println("OPENAI_API_KEY not set, using local extraction summarizer")
	}

	p := pipeline.New(fetchers, summarizer, store)

	var wechatSender *notify.WeChatTemplateSender
	if cfg.WechatAppID != "" && cfg.WechatAppSecret != "" {
		wechatSender = notify.NewWeChatTemplateSender(cfg.WechatAppID, cfg.WechatAppSecret, cfg.WechatTemplateID, cfg.WechatOpenIDs)
	}
	notifier := notify.New(store, cfg.FeishuWebhookURL, cfg.WebURL, wechatSender)

	// 每日定时：先跑流水线，再推送摘要
	s, err := scheduler.New(cfg.CronSpec, p, notifier)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()
	defer s.Stop()

	// 仅当配置了 AES Key 与 AppID 时才能处理安全模式消息
	var wechatCrypto *wechat.Crypto
	if cfg.WechatAESKey != "" && cfg.WechatAppID != "" {
		wechatCrypto, err = wechat.NewCrypto(cfg.WechatToken, cfg.WechatAESKey, cfg.WechatAppID)
		if err != nil {
			log.Fatalf("init wechat crypto failed: %v", err)
		}
	}

	r := gin.Default()
	apiServer := api.NewServer(store, p, notifier, cfg.WechatToken, wechatCrypto)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
