package summary

import (
	"context"
	"fmt"
	"log"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a helpful AI assistant that summarizes tech news into Chinese."

const userPromptFormat = `Please summarize the following content into a concise Chinese summary (around 100-150 words).
The content is about AI/Technology.

Context: %s
Content: %s

Summary in Chinese:`

// OpenAISummarizer 调用 OpenAI 兼容接口生成中文摘要。
// 调用失败不向上抛错，而是返回带失败标记的字符串。
type OpenAISummarizer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAISummarizer baseURL 为空时使用官方地址，
// 非空可指向任意 OpenAI 兼容服务（本地推理网关等）。
func NewOpenAISummarizer(baseURL, apiKey, model string, timeout time.Duration) *OpenAISummarizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAISummarizer{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (o *OpenAISummarizer) Summarize(ctx context.Context, text, sourceLabel, url string) string {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptFormat, "Source: "+sourceLabel, text)},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		log.Printf("summary: chat completion failed for %s: %v", url, err)
		return boundSummary(fmt.Sprintf("（生成摘要失败: %v）", err))
	}
	if len(resp.Choices) == 0 {
		log.Printf("summary: empty completion from model %q", o.model)
		return boundSummary(fmt.Sprintf("（生成摘要失败: empty response from model %q）", o.model))
	}

	return boundSummary(resp.Choices[0].Message.Content)
}
