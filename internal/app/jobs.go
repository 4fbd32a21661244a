package app

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/journal"
	"github.com/talkincode/wagate/internal/webhook"
	"github.com/talkincode/wagate/pkg/metrics"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// StartJobs wires the recurring maintenance tasks: system monitoring,
// event journal retention and webhook outbox retention.
func (a *Application) StartJobs(eventJournal *journal.Journal, deliveries *webhook.Service) {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@hourly", func() {
		a.SchedPurgeExpireData(eventJournal, deliveries)
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.gormDB.
			Where("opt_time < ? ", time.Now().
				Add(-time.Hour*24*365)).Delete(domain.SysOprLog{})
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	// Collect CPU usage
	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.Gauge(metrics.SystemCpuPercent, _cpuuse[0])
	}

	// Collect memory usage
	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.Gauge(metrics.SystemMemPercent, _meminfo.UsedPercent)
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.Gauge(metrics.ProcessCpuPercent, cpuuse)
	}

	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.Gauge(metrics.ProcessMemMB, float64(meminfo.RSS/1024/1024))
	}
}

// SchedPurgeExpireData applies the retention windows to the event
// journal and the webhook outbox.
func (a *Application) SchedPurgeExpireData(eventJournal *journal.Journal, deliveries *webhook.Service) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	retention := a.appConfig.Session.JournalRetention
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	if eventJournal != nil {
		n, err := eventJournal.PurgeOlderThan(time.Now().Add(-retention))
		if err != nil {
			zap.L().Warn("journal purge failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("journal purged", zap.Int("events", n))
		}
	}

	whRetention := a.appConfig.Webhook.Retention
	if whRetention <= 0 {
		whRetention = 72 * time.Hour
	}
	if deliveries != nil {
		deliveries.Purge(context.Background(), time.Now().Add(-whRetention))
	}
}
