package session

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one periodic background activity.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func()
}

// Handle cancels a set of scheduled jobs.
type Handle interface {
	// Stop prevents further runs and returns a context that is done once in-flight runs have returned.
	// It is safe to call from inside a running job as long as the caller does not wait on the context.
	Stop() context.Context
}

// Scheduler starts periodic jobs and returns the handle that cancels them.
type Scheduler interface {
	Start(jobs ...Job) (Handle, error)
}

// CronScheduler runs jobs on a robfig/cron scheduler, one scheduler per Start call so that
// each session's monitoring can be torn down independently.
type CronScheduler struct {
	logger *zap.Logger
}

// NewCronScheduler returns a Scheduler backed by robfig/cron. logger may be nil.
func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronScheduler{logger: logger}
}

// Start schedules every job at a constant delay. Intervals are rounded down to whole seconds
// with a minimum of one second. Overlapping runs of the same job are skipped.
func (s *CronScheduler) Start(jobs ...Job) (Handle, error) {
	log := cronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	for _, j := range jobs {
		c.Schedule(cron.Every(j.Interval), cron.FuncJob(j.Run))
	}
	c.Start()
	return c, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
