package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/LJTian/AIDailyHub/internal/collector"
	"github.com/LJTian/AIDailyHub/internal/storage"
)

// fakeFetcher 返回固定条目或固定错误
type fakeFetcher struct {
	name  string
	items []collector.CandidateItem
	err   error
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch() ([]collector.CandidateItem, error) {
	return f.items, f.err
}

// fakeStore 内存实现，记录每次调用便于断言
type fakeStore struct {
	mu    sync.Mutex
	items map[string]storage.News
	stats map[string][2]string

	snapshotErr error
	insertErr   error
	statsErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items: make(map[string]storage.News),
		stats: make(map[string][2]string),
	}
}

func (s *fakeStore) ExistingURLs() (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshotErr != nil {
		return nil, s.snapshotErr
	}
	set := make(map[string]struct{}, len(s.items))
	for u := range s.items {
		set[u] = struct{}{}
	}
	return set, nil
}

func (s *fakeStore) InsertBatch(items []storage.News) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, n := range items {
		if _, dup := s.items[n.URL]; dup {
			return fmt.Errorf("duplicate url insert: %s", n.URL)
		}
		s.items[n.URL] = n
	}
	return nil
}

func (s *fakeStore) UpdateStats(url, stars, upvotes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statsErr != nil {
		return s.statsErr
	}
	s.stats[url] = [2]string{stars, upvotes}
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *fakeStore) get(url string) (storage.News, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[url]
	return n, ok
}

// fakeSummarizer 合约同真实实现：永不失败、永不为空
type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(_ context.Context, text, sourceLabel, url string) string {
	return "摘要: " + text
}

func item(url, title string) collector.CandidateItem {
	return collector.CandidateItem{Title: title, URL: url, Description: title + " 的描述", Source: "GitHub Trending"}
}

func TestRunEndToEndNewAndUpdated(t *testing.T) {
	store := newFakeStore()
	// B 在上一轮已入库
	seeded := "摘要旧"
	store.items["https://example.com/B"] = storage.News{URL: "https://example.com/B", Summary: &seeded}

	itemA := item("https://example.com/A", "新条目 A")
	itemA.Extra = map[string]any{"stars_raw": "1,024"}

	p := New([]collector.Fetcher{
		&fakeFetcher{name: "f1", items: []collector.CandidateItem{itemA}},
		&fakeFetcher{name: "f2", items: []collector.CandidateItem{{Title: "旧条目 B", URL: "https://example.com/B", Source: "Hugging Face Daily Papers", Upvotes: "77"}}},
	}, fakeSummarizer{}, store)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.New != 1 || report.Updated != 1 {
		t.Fatalf("report = %+v, want {New:1 Updated:1}", report)
	}

	if store.count() != 2 {
		t.Fatalf("store should hold exactly 2 records, got %d", store.count())
	}

	a, ok := store.get("https://example.com/A")
	if !ok {
		t.Fatalf("record A should be persisted")
	}
	if a.Summary == nil || *a.Summary == "" {
		t.Fatalf("record A summary must be non-empty")
	}
	if a.Category == "" {
		t.Fatalf("record A category must be set at creation")
	}
	if a.ExtraData["stars_raw"] != "1,024" {
		t.Fatalf("source raw fields should reach ExtraData, got %v", a.ExtraData)
	}

	// 旧条目 B 的热度字段应被刷新
	if got := store.stats["https://example.com/B"]; got[1] != "77" {
		t.Fatalf("record B upvotes not refreshed: %v", got)
	}
}

func TestRunIdempotentSecondRun(t *testing.T) {
	store := newFakeStore()
	fetchers := []collector.Fetcher{
		&fakeFetcher{name: "f1", items: []collector.CandidateItem{item("https://example.com/1", "一"), item("https://example.com/2", "二")}},
	}
	p := New(fetchers, fakeSummarizer{}, store)

	first, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("first run error: %v", err)
	}
	if first.New != 2 {
		t.Fatalf("first run new = %d, want 2", first.New)
	}

	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if second.New != 0 {
		t.Fatalf("second run should insert nothing, new = %d", second.New)
	}
	if second.Updated != 2 {
		t.Fatalf("second run updated = %d, want 2", second.Updated)
	}
	if store.count() != 2 {
		t.Fatalf("store count after two runs = %d, want 2", store.count())
	}
}

func TestRunCountArithmetic(t *testing.T) {
	store := newFakeStore()
	store.items["https://example.com/pre"] = storage.News{URL: "https://example.com/pre"}
	before := store.count()

	p := New([]collector.Fetcher{
		&fakeFetcher{name: "f1", items: []collector.CandidateItem{
			item("https://example.com/x", "X"),
			item("https://example.com/y", "Y"),
			item("https://example.com/pre", "已存在"),
		}},
	}, fakeSummarizer{}, store)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if before+report.New != store.count() {
		t.Fatalf("countBefore(%d) + new(%d) != countAfter(%d)", before, report.New, store.count())
	}
}

func TestRunDeduplicatesWithinSingleRun(t *testing.T) {
	store := newFakeStore()
	// 两个来源返回同一 URL，只允许第一个入库
	p := New([]collector.Fetcher{
		&fakeFetcher{name: "f1", items: []collector.CandidateItem{item("https://example.com/same", "来源一")}},
		&fakeFetcher{name: "f2", items: []collector.CandidateItem{item("https://example.com/same", "来源二")}},
	}, fakeSummarizer{}, store)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.New != 1 {
		t.Fatalf("in-run duplicate should not be inserted twice, new = %d", report.New)
	}
	if store.count() != 1 {
		t.Fatalf("store count = %d, want 1", store.count())
	}
}

func TestRunFetcherFailureIsolated(t *testing.T) {
	store := newFakeStore()
	p := New([]collector.Fetcher{
		&fakeFetcher{name: "broken", err: errors.New("upstream layout changed")},
		&fakeFetcher{name: "ok", items: []collector.CandidateItem{item("https://example.com/ok", "正常")}},
	}, fakeSummarizer{}, store)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("one broken fetcher must not fail the run: %v", err)
	}
	if report.New != 1 {
		t.Fatalf("healthy fetcher contribution lost, new = %d", report.New)
	}
}

func TestRunEmptyFetchShortCircuits(t *testing.T) {
	store := newFakeStore()
	store.snapshotErr = errors.New("should not be called")

	p := New([]collector.Fetcher{
		&fakeFetcher{name: "empty"},
	}, fakeSummarizer{}, store)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("empty fetch should be a clean no-op: %v", err)
	}
	if report.New != 0 || report.Updated != 0 {
		t.Fatalf("report = %+v, want zeros", report)
	}
}

func TestRunStoreFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.snapshotErr = errors.New("connection refused")

	p := New([]collector.Fetcher{
		&fakeFetcher{name: "f1", items: []collector.CandidateItem{item("https://example.com/a", "A")}},
	}, fakeSummarizer{}, store)

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatalf("dedup snapshot failure must abort the run")
	}

	store2 := newFakeStore()
	store2.insertErr = errors.New("disk full")
	p2 := New([]collector.Fetcher{
		&fakeFetcher{name: "f1", items: []collector.CandidateItem{item("https://example.com/a", "A")}},
	}, fakeSummarizer{}, store2)

	if _, err := p2.Run(context.Background()); err == nil {
		t.Fatalf("insert failure must abort the run")
	}
}

func TestRunStatsFailureIsBestEffort(t *testing.T) {
	store := newFakeStore()
	store.items["https://example.com/B"] = storage.News{URL: "https://example.com/B"}
	store.statsErr = errors.New("lock timeout")

	p := New([]collector.Fetcher{
		&fakeFetcher{name: "f1", items: []collector.CandidateItem{item("https://example.com/B", "B")}},
	}, fakeSummarizer{}, store)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("stats refresh failure must not abort the run: %v", err)
	}
	if report.Updated != 1 {
		t.Fatalf("updated = %d, want 1", report.Updated)
	}
}

func TestRunRejectsOverlap(t *testing.T) {
	store := newFakeStore()
	p := New(nil, fakeSummarizer{}, store)

	// 手动占住执行位，模拟一轮正在进行
	if !p.running.CompareAndSwap(false, true) {
		t.Fatalf("setup: run flag unexpectedly held")
	}
	defer p.running.Store(false)

	if _, err := p.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("overlapping run should be rejected, got %v", err)
	}
}
