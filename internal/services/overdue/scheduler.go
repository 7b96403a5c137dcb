package overdue

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "15 0 * * *"

// Scheduler runs the sweeper on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  *Sweeper
	schedule string
	timeout  time.Duration
}

func NewScheduler(sweeper *Sweeper, schedule string) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))))
	return &Scheduler{cron: c, sweeper: sweeper, schedule: schedule, timeout: 30 * time.Minute}
}

// Start registers the sweep and starts the cron loop. An invalid schedule is
// returned before anything runs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		log.Printf("[SWEEP][CRON][ERR] schedule=%q err=%v", s.schedule, err)
		return err
	}
	log.Printf("[SWEEP][CRON] scheduled overdue sweep schedule=%q", s.schedule)
	s.cron.Start()
	return nil
}

// Stop halts the cron loop; the returned context is done once a running sweep finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.sweeper.Run(ctx); err != nil {
		log.Printf("[SWEEP][CRON][ERR] %v", err)
	}
}
