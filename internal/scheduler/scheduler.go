package scheduler

import (
	"context"
	"errors"
	"log"

	"github.com/LJTian/AIDailyHub/internal/notify"
	"github.com/LJTian/AIDailyHub/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// Scheduler 按 cron 表达式定时执行“采集流水线 + 摘要推送”。
// 运行级失败在这里收口：记日志，不再向外抛。
type Scheduler struct {
	cron     *cron.Cron
	pipeline *pipeline.Pipeline
	notifier *notify.Notifier
}

func New(spec string, p *pipeline.Pipeline, n *notify.Notifier) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:     c,
		pipeline: p,
		notifier: n,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	log.Println("scheduled task: starting pipeline run")

	ctx := context.Background()

	report, err := s.pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			log.Println("scheduled task: previous run still in progress, skipping")
			return
		}
		log.Printf("scheduled task: pipeline run failed: %v", err)
		return
	}
	log.Printf("scheduled task: pipeline done, new=%d updated=%d", report.New, report.Updated)

	log.Println("scheduled task: starting notification push")
	if err := s.notifier.PushDailyDigest(ctx); err != nil {
		log.Printf("scheduled task: notification push failed: %v", err)
		return
	}
	log.Println("scheduled task: notification push completed")
}
