package reliability

import (
	"context"
	"time"
)

// BackupJob runs a full backup-and-rotate pass on a cron schedule.
type BackupJob struct {
	service *BackupService
}

// NewBackupJob creates the scheduled backup job.
func NewBackupJob(service *BackupService) *BackupJob {
	return &BackupJob{service: service}
}

// Name returns the job identifier used in scheduler logs.
func (j *BackupJob) Name() string {
	return "database_backup"
}

// Run creates and uploads one backup, then rotates old ones.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.service.CreateAndUpload(ctx); err != nil {
		return err
	}
	return j.service.Rotate(ctx)
}
