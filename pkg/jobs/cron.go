package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pipedesk/pipedesk/pkg/activities"
	"github.com/pipedesk/pipedesk/pkg/export"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron       *cron.Cron
	activities *activities.Service
	exports    *export.Service
	logger     *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(activitySvc *activities.Service, exportSvc *export.Service, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:       cron.New(),
		activities: activitySvc,
		exports:    exportSvc,
		logger:     logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Hourly: flip scheduled activities past their start time to overdue
	_, err := cm.cron.AddFunc("0 * * * *", func() {
		cm.logger.Println("🕐 Running overdue activity sweep...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		flipped, err := cm.activities.MarkOverdue(ctx)
		if err != nil {
			cm.logger.Printf("❌ Overdue sweep failed: %v", err)
			return
		}
		if flipped > 0 {
			cm.logger.Printf("✅ Marked %d activities overdue", flipped)
		}
	})
	if err != nil {
		return err
	}

	// Daily at 3 AM: remove expired export files and records
	_, err = cm.cron.AddFunc("0 3 * * *", func() {
		cm.logger.Println("🕐 Running export cleanup job...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		removed, err := cm.exports.CleanupExpired(ctx)
		if err != nil {
			cm.logger.Printf("❌ Export cleanup failed: %v", err)
			return
		}
		cm.logger.Printf("✅ Export cleanup removed %d exports", removed)
	})
	if err != nil {
		return err
	}

	cm.logger.Printf("Cron jobs configured: %d entries", len(cm.cron.Entries()))
	return nil
}

// Start begins executing scheduled jobs
func (cm *CronManager) Start() {
	cm.cron.Start()
	cm.logger.Println("✅ Cron scheduler started")
}

// Stop halts the scheduler and waits for running jobs to finish
func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
	cm.logger.Println("Cron scheduler stopped")
}
