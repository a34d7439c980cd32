package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

const (
	juejinAPIURL           = "https://api.juejin.cn/recommend_api/v1/article/recommend_cate_feed"
	juejinAICateID         = "6809637773935378440"
	juejinMaxResponseBytes = 2 << 20 // 2MB
)

// JuejinFetcher 通过掘金推荐接口拉取 AI 分类热门文章。
// APIURL 为空时使用线上地址，测试时可指向本地 mock。
type JuejinFetcher struct {
	APIURL string
}

func (j *JuejinFetcher) Name() string {
	return "Juejin AI"
}

type juejinFeedResp struct {
	Data []struct {
		ArticleInfo struct {
			ArticleID    string `json:"article_id"`
			Title        string `json:"title"`
			BriefContent string `json:"brief_content"`
			CoverImage   string `json:"cover_image"`
			DiggCount    int    `json:"digg_count"`
		} `json:"article_info"`
	} `json:"data"`
}

func (j *JuejinFetcher) Fetch() ([]CandidateItem, error) {
	log.Println("fetch Juejin AI trending...")

	apiURL := j.APIURL
	if apiURL == "" {
		apiURL = juejinAPIURL
	}

	payload, err := json.Marshal(map[string]any{
		"cate_id":   juejinAICateID,
		"id_type":   2,
		"limit":     20,
		"sort_type": 200,
	})
	if err != nil {
		return nil, fmt.Errorf("juejin: marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("juejin: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)

	client := &http.Client{Timeout: RequestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("juejin: fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("juejin: unexpected status %d", resp.StatusCode)
	}

	var feed juejinFeedResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, juejinMaxResponseBytes)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("juejin: decode feed: %w", err)
	}

	results := make([]CandidateItem, 0, len(feed.Data))
	for _, entry := range feed.Data {
		info := entry.ArticleInfo
		if info.Title == "" || info.ArticleID == "" {
			continue
		}
		results = append(results, CandidateItem{
			Title:       info.Title,
			URL:         "https://juejin.cn/post/" + info.ArticleID,
			Description: info.BriefContent,
			Source:      j.Name(),
			Upvotes:     fmt.Sprintf("%d", info.DiggCount),
			Thumbnail:   info.CoverImage,
			Extra: map[string]any{
				"article_id": info.ArticleID,
				"digg_count": info.DiggCount,
			},
		})
	}

	log.Printf("juejin: found %d articles", len(results))
	return results, nil
}
