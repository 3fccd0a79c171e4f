package app

import (
	"github.com/Varietyz/banes-lab-bot/internal/config"
	"github.com/Varietyz/banes-lab-bot/internal/modules/tasks/reaper"
	pkgcron "github.com/Varietyz/banes-lab-bot/internal/pkg/cron"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, cfg *config.AppConfig, r *reaper.Reaper) {
	sched.Register(pkgcron.Job{
		Name:        reaper.JobName,
		Description: "Archive and remove users inactive for " + cfg.Reaper.InactiveAfter.String(),
		Interval:    cfg.Reaper.Interval,
		RunOnStart:  cfg.Reaper.RunOnStart,
		Fn:          r.Run,
	})
}
