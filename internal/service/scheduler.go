package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/craftops/fleet/internal/backup"
	"github.com/craftops/fleet/internal/models"
	"github.com/craftops/fleet/internal/monitoring"
	"github.com/craftops/fleet/internal/repository"
	"github.com/craftops/fleet/pkg/logger"
)

// endOfDayMinute is the exclusive upper bound of a day's schedule window.
// "24:00" parses to this value so a window can cover the whole day.
const endOfDayMinute = 24 * 60

// Scheduler reconciles each server's actual run state against its weekly
// schedule. One singleton loop evaluates the whole fleet every interval;
// actions run on per-server goroutines guarded by the server locks, and a
// server whose lock is already held is skipped until the next tick.
type Scheduler struct {
	servers   *repository.ServerRepository
	schedules *repository.ScheduleRepository
	states    *repository.StateStore
	lifecycle *LifecycleService
	backups   *backup.Engine
	locks     *ServerLocks

	interval    time.Duration
	backupEvery time.Duration
	stopChan    chan struct{}
	timeNow     func() time.Time
}

func NewScheduler(
	servers *repository.ServerRepository,
	schedules *repository.ScheduleRepository,
	states *repository.StateStore,
	lifecycle *LifecycleService,
	backups *backup.Engine,
	locks *ServerLocks,
	interval time.Duration,
) *Scheduler {
	return &Scheduler{
		servers:     servers,
		schedules:   schedules,
		states:      states,
		lifecycle:   lifecycle,
		backups:     backups,
		locks:       locks,
		interval:    interval,
		backupEvery: 24 * time.Hour,
		stopChan:    make(chan struct{}),
		timeNow:     time.Now,
	}
}

// Start launches the reconcile loop in a background goroutine
func (s *Scheduler) Start() {
	logger.Info("Starting schedule reconciler", map[string]interface{}{
		"interval": s.interval.String(),
	})

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.reconcile()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop terminates the reconcile loop
func (s *Scheduler) Stop() {
	close(s.stopChan)
	logger.Info("Schedule reconciler stopped", nil)
}

// reconcile evaluates every server once and dispatches corrective actions
func (s *Scheduler) reconcile() {
	servers, err := s.servers.FindAll()
	if err != nil {
		logger.Error("Scheduler failed to list servers", err, nil)
		return
	}

	for i := range servers {
		server := servers[i]
		go s.reconcileServer(&server)
	}
}

func (s *Scheduler) reconcileServer(server *models.GameServer) {
	sched, err := s.schedules.Get(server.ID)
	if err != nil {
		logger.Error("Scheduler failed to load schedule", err, map[string]interface{}{
			"server_id": server.ID,
		})
		return
	}
	if !sched.Enabled {
		return
	}

	weekly, err := sched.Weekly()
	if err != nil {
		logger.Error("Scheduler failed to decode schedule", err, map[string]interface{}{
			"server_id": server.ID,
		})
		return
	}

	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		logger.Warn("Unknown schedule timezone, falling back to UTC", map[string]interface{}{
			"server_id": server.ID,
			"timezone":  sched.Timezone,
		})
		loc = time.UTC
	}

	now := s.timeNow().In(loc)
	desired := DesiredRunning(weekly, int(now.Weekday()), now.Hour()*60+now.Minute())

	status, err := s.lifecycle.Status(server.ID)
	if err != nil {
		logger.Warn("Scheduler could not probe server status", map[string]interface{}{
			"server_id": server.ID,
			"error":     err.Error(),
		})
		return
	}

	// Containers mid-transition settle on their own; act next tick instead.
	if status.Phase == "created" || status.Phase == "restarting" || status.Phase == "removing" {
		monitoring.SchedulerActionsTotal.WithLabelValues("skipped_transitioning").Inc()
		return
	}

	if desired == status.Running {
		if desired && s.backups != nil {
			s.maybeBackup(server)
		}
		return
	}

	if !s.locks.TryLock(server.ID) {
		monitoring.SchedulerActionsTotal.WithLabelValues("skipped_locked").Inc()
		logger.Debug("Scheduler skipping locked server", map[string]interface{}{
			"server_id": server.ID,
		})
		return
	}
	defer s.locks.Unlock(server.ID)

	if desired {
		if _, err := s.lifecycle.start(server.ID, TriggerSchedule); err != nil {
			monitoring.SchedulerActionsTotal.WithLabelValues("start_failed").Inc()
			logger.Error("Scheduled start failed", err, map[string]interface{}{
				"server_id": server.ID,
			})
			return
		}
		monitoring.SchedulerActionsTotal.WithLabelValues("started").Inc()
	} else {
		if _, err := s.lifecycle.stop(server.ID, TriggerSchedule); err != nil {
			monitoring.SchedulerActionsTotal.WithLabelValues("stop_failed").Inc()
			logger.Error("Scheduled stop failed", err, map[string]interface{}{
				"server_id": server.ID,
			})
			return
		}
		monitoring.SchedulerActionsTotal.WithLabelValues("stopped").Inc()
	}
}

// maybeBackup takes a daily world backup of a running server when the last
// one is older than the backup interval.
func (s *Scheduler) maybeBackup(server *models.GameServer) {
	state, err := s.states.GetBackupState(server.ID)
	if err != nil {
		return
	}
	if state.LastBackupTime != nil && s.timeNow().Sub(*state.LastBackupTime) < s.backupEvery {
		return
	}
	if !s.locks.TryLock(server.ID) {
		return
	}
	defer s.locks.Unlock(server.ID)

	if _, err := s.backups.CreateWorldBackup(server.ID, models.BackupTriggerScheduled); err != nil {
		logger.Warn("Scheduled backup failed", map[string]interface{}{
			"server_id": server.ID,
			"error":     err.Error(),
		})
	}
}

// DesiredRunning reports whether a server should be online at the given
// local weekday and minute-of-day. Windows are half-open [start, end): a
// server starts at its start minute and stops at its end minute. Windows do
// not wrap midnight; an end at or before the start yields a window that
// never matches, so overnight hours need the following day's window.
func DesiredRunning(weekly models.WeeklySchedule, weekday int, minuteOfDay int) bool {
	day, ok := weekly[weekday]
	if !ok || !day.Enabled {
		return false
	}

	start, err := parseClockMinute(day.StartTime)
	if err != nil {
		return false
	}
	end, err := parseClockMinute(day.EndTime)
	if err != nil {
		return false
	}
	if end <= start {
		return false
	}
	return minuteOfDay >= start && minuteOfDay < end
}

// parseClockMinute converts "HH:MM" to minutes since midnight. "24:00" is
// accepted as the exclusive end-of-day bound.
func parseClockMinute(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}

	if hour == 24 && minute == 0 {
		return endOfDayMinute, nil
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock value %q out of range", clock)
	}
	return hour*60 + minute, nil
}
