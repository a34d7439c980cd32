package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
)

const (
	redditHotURL           = "https://www.reddit.com/r/MachineLearning/hot.json?limit=10"
	redditMaxResponseBytes = 2 << 20 // 2MB
	redditDescMaxRunes     = 200
)

// RedditFetcher 通过公开 JSON 接口拉取 r/MachineLearning 热帖。
// 注意 Reddit 对脚本 UA 限流较严，非 200 一律按失败处理。
type RedditFetcher struct {
	APIURL string
}

func (r *RedditFetcher) Name() string {
	return "Reddit ML"
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Permalink string `json:"permalink"`
				Selftext  string `json:"selftext"`
				Ups       int    `json:"ups"`
				Thumbnail string `json:"thumbnail"`
				Stickied  bool   `json:"stickied"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (r *RedditFetcher) Fetch() ([]CandidateItem, error) {
	log.Println("fetch Reddit ML hot...")

	apiURL := r.APIURL
	if apiURL == "" {
		apiURL = redditHotURL
	}

	req, err := http.NewRequest(http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("reddit: build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	client := &http.Client{Timeout: RequestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit: fetch hot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit: unexpected status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(io.LimitReader(resp.Body, redditMaxResponseBytes)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("reddit: decode listing: %w", err)
	}

	results := make([]CandidateItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.Title == "" || post.Permalink == "" {
			continue
		}

		desc := post.Title
		if post.Selftext != "" {
			desc = truncateRunes(post.Selftext, redditDescMaxRunes)
		}

		results = append(results, CandidateItem{
			Title:       post.Title,
			URL:         "https://www.reddit.com" + post.Permalink,
			Description: desc,
			Source:      r.Name(),
			Upvotes:     strconv.Itoa(post.Ups),
			Thumbnail:   normalizeRedditThumbnail(post.Thumbnail),
			Extra: map[string]any{
				"ups":       post.Ups,
				"permalink": post.Permalink,
			},
		})
	}

	log.Printf("reddit: found %d posts", len(results))
	return results, nil
}

// normalizeRedditThumbnail 过滤 Reddit 的占位缩略图标记（self/default/nsfw）
func normalizeRedditThumbnail(thumb string) string {
	switch thumb {
	case "self", "default", "nsfw", "":
		return ""
	}
	return thumb
}

// truncateRunes 按 rune 截断并补省略号，避免把多字节字符截成乱码
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "..."
}
