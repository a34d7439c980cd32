package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	titleMaxRunes   = 512
	descMaxRunes    = 2000
	summaryMaxRunes = 600

	listCacheTTL = 5 * time.Minute
)

// News 持久化后的资讯记录。URL 上有唯一索引，是全局去重键；
// Summary 与 Category 在创建时一次性写入，之后不再重算。
type News struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Title        string            `gorm:"size:512;index" json:"title"`
	URL          string            `gorm:"size:1024;uniqueIndex" json:"url"`
	Source       string            `gorm:"size:64;index" json:"source"`
	OriginalDesc string            `gorm:"type:text" json:"originalDesc"`
	Summary      *string           `gorm:"type:text" json:"summary"`
	Category     string            `gorm:"size:32;not null;default:Other" json:"category"`
	Stars        string            `gorm:"size:32" json:"stars"`
	Upvotes      string            `gorm:"size:32" json:"upvotes"`
	Thumbnail    string            `gorm:"size:1024" json:"thumbnail"`
	ExtraData    datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (News) TableName() string {
	return "news_items"
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&News{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 数截断，作为入库前对字段长度的双保险
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// sanitize 入库前统一清洗一条记录的文本字段
func sanitize(n *News) {
	n.Title = truncateRunesDB(toValidUTF8(n.Title), titleMaxRunes)
	n.OriginalDesc = truncateRunesDB(toValidUTF8(n.OriginalDesc), descMaxRunes)
	if n.Summary != nil {
		s := truncateRunesDB(toValidUTF8(*n.Summary), summaryMaxRunes)
		n.Summary = &s
	}
}

// ExistingURLs 一次性取出所有已入库的 URL，供流水线做去重快照
func (s *Store) ExistingURLs() (map[string]struct{}, error) {
	var urls []string
	if err := s.DB.Model(&News{}).Pluck("url", &urls).Error; err != nil {
		return nil, fmt.Errorf("load existing urls: %w", err)
	}

	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}

// InsertBatch 以一个事务写入一批新记录。
// URL 冲突按 DoNothing 处理：唯一索引兜底，绝不产生第二条同 URL 记录。
func (s *Store) InsertBatch(items []News) error {
	if len(items) == 0 {
		return nil
	}

	for i := range items {
		sanitize(&items[i])
	}

	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoNothing: true,
	}).Create(&items).Error
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// UpdateStats 刷新已存在记录的热度字段（stars/upvotes），不触碰摘要与分类
func (s *Store) UpdateStats(url, stars, upvotes string) error {
	return s.DB.Model(&News{}).Where("url = ?", url).Updates(map[string]any{
		"stars":   stars,
		"upvotes": upvotes,
	}).Error
}

// clampLimit 未指定时用默认值，超出上限时收到上限
func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// ListNews 按来源（可选）返回最新记录，并使用 Redis 做短 TTL 缓存
func (s *Store) ListNews(source string, limit int) ([]News, error) {
	limit = clampLimit(limit)

	ctx := context.Background()
	cacheKey := fmt.Sprintf("news:list:%s:%d", source, limit)

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []News
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []News
	db := s.DB.Model(&News{})
	if source != "" {
		db = db.Where("source = ?", source)
	}
	if err := db.Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}

// ListLatest 不区分来源的最新记录
func (s *Store) ListLatest(limit int) ([]News, error) {
	return s.ListNews("", limit)
}
