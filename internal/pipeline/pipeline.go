// Package pipeline 实现“抓取 → 合并去重 → 加工 → 入库”的主流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"gorm.io/datatypes"

	"github.com/LJTian/AIDailyHub/internal/classifier"
	"github.com/LJTian/AIDailyHub/internal/collector"
	"github.com/LJTian/AIDailyHub/internal/storage"
	"github.com/LJTian/AIDailyHub/internal/summary"
)

// 摘要生成的并发上限：限制同时外发的模型/抓取请求数
const defaultEnrichWorkers = 5

// ErrRunInProgress 同一时刻只允许一次流水线执行，重叠触发直接拒绝
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Store 流水线需要的最小存储能力，便于测试时替换
type Store interface {
	ExistingURLs() (map[string]struct{}, error)
	InsertBatch(items []storage.News) error
	UpdateStats(url, stars, upvotes string) error
}

// Report 一次流水线执行的结果统计
type Report struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
}

type Pipeline struct {
	fetchers   []collector.Fetcher
	summarizer summary.Summarizer
	store      Store
	workers    int

	running atomic.Bool
}

func New(fetchers []collector.Fetcher, s summary.Summarizer, store Store) *Pipeline {
	return &Pipeline{
		fetchers:   fetchers,
		summarizer: s,
		store:      store,
		workers:    defaultEnrichWorkers,
	}
}

// Run 执行一轮完整流程并返回统计。
// 单个数据源或单条摘要的失败在各自边界内消化；
// 只有存储层（去重快照读取、批量写入）的失败会让整轮执行报错返回。
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	log.Println("pipeline: start run...")

	all := p.fetchAll()
	log.Printf("pipeline: total items fetched: %d", len(all))
	if len(all) == 0 {
		return Report{}, nil
	}

	fresh, updated, err := p.merge(all)
	if err != nil {
		return Report{}, err
	}
	log.Printf("pipeline: new items to process: %d", len(fresh))

	records := p.enrich(ctx, fresh)

	if err := p.store.InsertBatch(records); err != nil {
		return Report{}, fmt.Errorf("pipeline: persist: %w", err)
	}

	report := Report{New: len(records), Updated: updated}
	log.Printf("pipeline: run complete, new=%d updated=%d", report.New, report.Updated)
	return report, nil
}

// runBounded 在固定并发上限内执行 n 个任务，抓取与加工两个阶段共用。
// 每个任务只写自己下标的结果位，因此任务之间无需加锁。
func runBounded(limit, n int, task func(i int)) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, limit)

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			task(i)
		}(i)
	}
	wg.Wait()
}

// fetchAll 并发调用所有数据源，任何一个源失败只影响它自己的贡献
func (p *Pipeline) fetchAll() []collector.CandidateItem {
	results := make([][]collector.CandidateItem, len(p.fetchers))

	// 数据源数量固定且很小，并发上限即一源一个任务
	runBounded(len(p.fetchers), len(p.fetchers), func(i int) {
		f := p.fetchers[i]
		items, err := f.Fetch()
		if err != nil {
			log.Printf("pipeline: fetch %s error: %v", f.Name(), err)
			return
		}
		results[i] = items
	})

	// 按注册顺序拼接，保证同一轮内的遍历顺序稳定
	var all []collector.CandidateItem
	for _, items := range results {
		all = append(all, items...)
	}
	return all
}

// merge 用入库前的一次性 URL 快照划分新旧条目。
// 已见过的条目顺手刷新热度字段（尽力而为，失败不影响本轮）；
// 同一轮内不同来源撞到同一 URL 时，后到的按重复丢弃。
func (p *Pipeline) merge(all []collector.CandidateItem) (fresh []collector.CandidateItem, updated int, err error) {
	existing, err := p.store.ExistingURLs()
	if err != nil {
		return nil, 0, fmt.Errorf("pipeline: dedup snapshot: %w", err)
	}

	seenThisRun := make(map[string]struct{}, len(all))
	for _, item := range all {
		if item.URL == "" {
			continue
		}
		if _, dup := seenThisRun[item.URL]; dup {
			continue
		}
		seenThisRun[item.URL] = struct{}{}

		if _, ok := existing[item.URL]; ok {
			updated++
			if statErr := p.store.UpdateStats(item.URL, item.Stars, item.Upvotes); statErr != nil {
				log.Printf("pipeline: update stats for %s: %v", item.URL, statErr)
			}
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh, updated, nil
}

// enrich 对所有新条目并发生成摘要并计算分类。
// 结果按条目下标落位，摘要与条目的对应关系不依赖完成顺序。
func (p *Pipeline) enrich(ctx context.Context, fresh []collector.CandidateItem) []storage.News {
	records := make([]storage.News, len(fresh))

	runBounded(p.workers, len(fresh), func(i int) {
		item := fresh[i]

		desc := item.Description
		if desc == "" {
			desc = item.Title
		}

		s := p.summarizer.Summarize(ctx, desc, item.Source, item.URL)
		records[i] = storage.News{
			Title:        item.Title,
			URL:          item.URL,
			Source:       item.Source,
			OriginalDesc: desc,
			Summary:      &s,
			Category:     classifier.Classify(item.Title, desc),
			Stars:        item.Stars,
			Upvotes:      item.Upvotes,
			Thumbnail:    item.Thumbnail,
			ExtraData:    datatypes.JSONMap(item.Extra),
		}
	})

	return records
}
