package config

import (
	"log"
	"os"
	"strings"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// 每日定时任务（流水线 + 摘要推送）
	CronSpec string

	// 文本生成后端；APIKey 为空时使用本地抽取模式
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	AITimeout     time.Duration

	// 推送渠道；为空即禁用对应渠道
	FeishuWebhookURL string
	WebURL           string

	// 微信公众号（入站消息 + 模板推送）；AESKey 非空时启用安全模式收发
	WechatToken      string
	WechatAESKey     string
	WechatAppID      string
	WechatAppSecret  string
	WechatTemplateID string
	WechatOpenIDs    []string
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=aidaily password=aidaily dbname=aidaily port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		CronSpec:    getEnv("CRON_SPEC", "0 8 * * *"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		AITimeout:     getDurationEnv("AI_TIMEOUT", time.Minute),

		FeishuWebhookURL: getEnv("FEISHU_WEBHOOK_URL", ""),
		WebURL:           getEnv("WEB_URL", ""),

		WechatToken:      getEnv("WECHAT_TOKEN", ""),
		WechatAESKey:     getEnv("WECHAT_AES_KEY", ""),
		WechatAppID:      getEnv("WECHAT_APPID", ""),
		WechatAppSecret:  getEnv("WECHAT_APPSECRET", ""),
		WechatTemplateID: getEnv("WECHAT_TEMPLATE_ID", ""),
		WechatOpenIDs:    getListEnv("WECHAT_OPENIDS"),
	}

	log.Printf("config loaded: port=%s cron=%s llm=%v", cfg.AppPort, cfg.CronSpec, cfg.OpenAIAPIKey != "")
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: invalid duration %s=%q, using default %s", key, v, def)
		return def
	}
	return d
}

// getListEnv 解析逗号分隔的列表，忽略空段
func getListEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
