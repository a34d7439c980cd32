package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const feishuMaxResponseBytes = 64 * 1024

// feishu 交互式卡片消息体
type feishuCard struct {
	MsgType string `json:"msg_type"`
	Card    struct {
		Header struct {
			Title struct {
				Tag     string `json:"tag"`
				Content string `json:"content"`
			} `json:"title"`
			Template string `json:"template"`
		} `json:"header"`
		Elements []feishuCardElement `json:"elements"`
	} `json:"card"`
}

type feishuCardElement struct {
	Tag  string `json:"tag"`
	Text struct {
		Tag     string `json:"tag"`
		Content string `json:"content"`
	} `json:"text"`
}

// sendFeishuWebhook 向飞书机器人 webhook 推送一张卡片。
// 飞书在 HTTP 200 里用业务码表示失败，code != 0 一样按失败处理。
func (n *Notifier) sendFeishuWebhook(ctx context.Context, title, content string) error {
	var card feishuCard
	card.MsgType = "interactive"
	card.Card.Header.Title.Tag = "plain_text"
	card.Card.Header.Title.Content = title
	card.Card.Header.Template = "blue"

	var el feishuCardElement
	el.Tag = "div"
	el.Text.Tag = "lark_md"
	el.Text.Content = content
	card.Card.Elements = []feishuCardElement{el}

	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.feishuWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, feishuMaxResponseBytes)).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("feishu returned code %d: %s", result.Code, result.Msg)
	}

	return nil
}
