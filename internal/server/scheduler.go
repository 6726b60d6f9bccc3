package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/albarami/wellbeing/internal/council"
	"github.com/albarami/wellbeing/internal/store"
)

// Scheduler periodically runs debates for topics with a cron spec. The
// Redis lock keeps multiple instances from running the same topic.
type Scheduler struct {
	Store    *store.Store
	Runtime  *store.Runtime
	Pipeline *council.Pipeline
	Interval time.Duration
	Logger   *log.Logger
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.Interval <= 0 {
		s.Interval = time.Hour
	}
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	topics, err := s.Store.ScheduledTopics(ctx)
	if err != nil {
		s.Logger.Printf("listing scheduled topics: %v", err)
		return
	}
	now := time.Now()
	for _, t := range topics {
		if !isDue(t.CronSpec, t.LastRunAt, now) {
			continue
		}
		ok, err := s.Runtime.AcquireLock(ctx, "sched:"+t.ID, s.Interval)
		if err != nil || !ok {
			continue
		}
		go s.runTopic(ctx, t)
	}
}

func (s *Scheduler) runTopic(ctx context.Context, t store.Topic) {
	s.Logger.Printf("running scheduled topic %s: %q", t.ID, t.Topic)
	id, err := s.Store.CreateDebate(ctx, t.UserID, t.Topic, t.Language)
	if err != nil {
		s.Logger.Printf("topic %s: creating debate: %v", t.ID, err)
		return
	}
	run, err := s.Pipeline.Run(ctx, t.Topic, t.Language, council.NopSink{}, nil)
	if err != nil {
		s.Logger.Printf("topic %s: run failed: %v", t.ID, err)
		_ = s.Store.FinishDebate(ctx, id, "failed", "")
		return
	}
	for _, res := range run.Results {
		if err := s.Store.SaveTaskResult(ctx, id, res); err != nil {
			s.Logger.Printf("topic %s: saving task %d: %v", t.ID, res.TaskID, err)
		}
	}
	if err := s.Store.FinishDebate(ctx, id, runStatus(run, s.Pipeline.TaskCount()), run.Report); err != nil {
		s.Logger.Printf("topic %s: finishing debate: %v", t.ID, err)
	}
	if err := s.Store.TouchTopic(ctx, t.ID); err != nil {
		s.Logger.Printf("topic %s: recording run time: %v", t.ID, err)
	}
}

// isDue reports whether the cron spec has a fire time between the last
// run and now. A topic that never ran is due immediately.
func isDue(spec string, lastRun *time.Time, now time.Time) bool {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return false
	}
	if lastRun == nil {
		return true
	}
	next := expr.Next(*lastRun)
	return !next.IsZero() && !next.After(now)
}
