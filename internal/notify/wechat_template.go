package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/LJTian/AIDailyHub/internal/storage"
)

const (
	wechatAPIBase          = "https://api.weixin.qq.com"
	wechatMaxResponseBytes = 64 * 1024
)

// WeChatTemplateSender 通过公众号模板消息逐个推送给订阅用户。
// APIBase 为空时使用微信官方地址，测试时可指向本地 mock。
type WeChatTemplateSender struct {
	APIBase    string
	AppID      string
	AppSecret  string
	TemplateID string
	OpenIDs    []string

	client *http.Client
}

func NewWeChatTemplateSender(appID, appSecret, templateID string, openIDs []string) *WeChatTemplateSender {
	return &WeChatTemplateSender{
		AppID:      appID,
		AppSecret:  appSecret,
		TemplateID: templateID,
		OpenIDs:    openIDs,
		client:     &http.Client{Timeout: pushTimeout},
	}
}

// SendDigest 给每个 openid 发送一条模板消息。
// 单个接收者失败只记日志，继续发下一个。
func (w *WeChatTemplateSender) SendDigest(ctx context.Context, title string, items []storage.News) {
	if w.AppID == "" || w.AppSecret == "" || w.TemplateID == "" || len(w.OpenIDs) == 0 {
		log.Println("notify: wechat template not fully configured, skipping")
		return
	}

	token, err := w.accessToken(ctx)
	if err != nil {
		log.Printf("notify: wechat access token: %v", err)
		return
	}

	first := ""
	detailURL := ""
	if len(items) > 0 {
		first = items[0].Title
		detailURL = items[0].URL
	}

	for _, openID := range w.OpenIDs {
		if err := w.sendTemplate(ctx, token, openID, title, first, detailURL); err != nil {
			log.Printf("notify: wechat send to %s: %v", openID, err)
			continue
		}
		log.Printf("notify: wechat template message sent to %s", openID)
	}
}

func (w *WeChatTemplateSender) apiBase() string {
	if w.APIBase != "" {
		return w.APIBase
	}
	return wechatAPIBase
}

func (w *WeChatTemplateSender) accessToken(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("grant_type", "client_credential")
	q.Set("appid", w.AppID)
	q.Set("secret", w.AppSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.apiBase()+"/cgi-bin/token?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken string `json:"access_token"`
		ErrCode     int    `json:"errcode"`
		ErrMsg      string `json:"errmsg"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, wechatMaxResponseBytes)).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("errcode %d: %s", out.ErrCode, out.ErrMsg)
	}
	return out.AccessToken, nil
}

func (w *WeChatTemplateSender) sendTemplate(ctx context.Context, token, openID, title, first, detailURL string) error {
	type field struct {
		Value string `json:"value"`
	}
	payload, err := json.Marshal(map[string]any{
		"touser":      openID,
		"template_id": w.TemplateID,
		"url":         detailURL,
		"data": map[string]field{
			"title": {Value: title},
			"first": {Value: first},
			"date":  {Value: time.Now().Format("2006-01-02")},
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.apiBase()+"/cgi-bin/message/template/send?access_token="+url.QueryEscape(token),
		bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, wechatMaxResponseBytes)).Decode(&out); err != nil {
		return err
	}
	if out.ErrCode != 0 {
		return fmt.Errorf("errcode %d: %s", out.ErrCode, out.ErrMsg)
	}
	return nil
}
