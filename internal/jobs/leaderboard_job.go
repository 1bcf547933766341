package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"referral-program/internal/config"
	"referral-program/internal/services"
)

// LeaderboardJob periodically refreshes the earnings leaderboard snapshots
type LeaderboardJob struct {
	cron               *cron.Cron
	leaderboardService *services.LeaderboardService
	strategy           string
	spec               string
}

// NewLeaderboardJob creates the aggregation job for the configured strategy
func NewLeaderboardJob(leaderboardService *services.LeaderboardService, cfg *config.Config) *LeaderboardJob {
	spec := cfg.Aggregator.FullCronSpec
	if cfg.Aggregator.Strategy == config.StrategyIncremental {
		spec = cfg.Aggregator.IncrCronSpec
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger()))),
	)

	return &LeaderboardJob{
		cron:               c,
		leaderboardService: leaderboardService,
		strategy:           cfg.Aggregator.Strategy,
		spec:               spec,
	}
}

// Start schedules the aggregation runs
func (j *LeaderboardJob) Start() {
	if _, err := j.cron.AddFunc(j.spec, j.run); err != nil {
		log.Printf("[LeaderboardJob] Failed to schedule aggregation: %v", err)
		return
	}

	j.cron.Start()
	log.Printf("[LeaderboardJob] Started (strategy: %s, schedule: %q)", j.strategy, j.spec)

	// Prime the rankings so they exist before the first scheduled firing
	go j.run()
}

// Stop stops the scheduler and waits for a running aggregation to finish
func (j *LeaderboardJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	log.Println("[LeaderboardJob] Stopped")
}

// run executes one aggregation pass
func (j *LeaderboardJob) run() {
	ctx := context.Background()

	var err error
	if j.strategy == config.StrategyIncremental {
		err = j.leaderboardService.RunIncremental(ctx)
	} else {
		err = j.leaderboardService.RunFullRecompute(ctx)
	}

	if err != nil {
		log.Printf("[LeaderboardJob] Aggregation run failed: %v", err)
	}
}
