package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is a named unit of background maintenance work. Jobs receive the
// scheduler's root context so a server shutdown reaches a long sweep.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler drives the maintenance jobs (knowledge sweep, corpus
// re-ingestion) off standard 5-field cron expressions. A tick that
// fires while the previous run of the same job is still going is
// skipped rather than queued.
type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	ctx     context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	entryID, err := c.cron.AddFunc(spec, c.tick(job))
	if err != nil {
		return fmt.Errorf("schedule job %s (%s): %w", name, spec, err)
	}
	c.entries[name] = entryID
	logutil.GetLogger(context.Background()).Info("job scheduled",
		zap.String("job", name), zap.String("cron", spec))
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

// Stop blocks until in-flight job runs have returned.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) tick(job Job) func() {
	var busy atomic.Bool
	return func() {
		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logutil.GetLogger(ctx).With(zap.String("job", job.Name()))
		if !busy.CompareAndSwap(false, true) {
			logger.Info("tick skipped, previous run still active")
			return
		}
		defer busy.Store(false)

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			logger.Error("job run failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
			return
		}
		logger.Info("job run finished", zap.Duration("elapsed", time.Since(start)))
	}
}
