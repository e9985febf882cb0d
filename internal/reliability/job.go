package reliability

import "context"

// BackupJob sequences one full backup cycle: fold the WAL into the
// database files, archive and upload them, then prune old archives.
type BackupJob struct {
	maintenance *Maintenance
	backup      *BackupService
}

func NewBackupJob(maintenance *Maintenance, backup *BackupService) *BackupJob {
	return &BackupJob{maintenance: maintenance, backup: backup}
}

func (j *BackupJob) Run(ctx context.Context) error {
	j.maintenance.Checkpoint()

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.backup.PruneOldBackups(ctx)
}
