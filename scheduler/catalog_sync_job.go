package scheduler

import (
	"context"
	"log"

	"media-manager/config"
	"media-manager/manager"
	"media-manager/notifier"
)

// CatalogSyncJob reconciles the movie library with the local and remote
// catalogs on a schedule, optionally backing up new movies afterwards.
type CatalogSyncJob struct {
	manager       *manager.MovieManager
	cfg           *config.Config
	withBackup    bool
	emailNotifier *notifier.EmailNotifier
	sendEmails    bool
}

// NewCatalogSyncJob creates a new catalog sync job
func NewCatalogSyncJob(mgr *manager.MovieManager, cfg *config.Config, withBackup bool) *CatalogSyncJob {
	// Get email configuration from environment variables
	emailConfig := notifier.GetEmailConfigFromEnv()
	var emailNotifier *notifier.EmailNotifier
	sendEmails := false

	// Only create email notifier if SMTP host and recipient are configured
	if emailConfig.SMTPHost != "" && emailConfig.RecipientEmail != "" {
		var err error
		emailNotifier, err = notifier.NewEmailNotifier(emailConfig)
		if err != nil {
			log.Printf("Failed to create email notifier: %v", err)
		} else {
			sendEmails = true
			log.Printf("Run reports will be sent to: %s", emailConfig.RecipientEmail)
		}
	} else {
		log.Println("Email notifications disabled: missing configuration")
	}

	return &CatalogSyncJob{
		manager:       mgr,
		cfg:           cfg,
		withBackup:    withBackup,
		emailNotifier: emailNotifier,
		sendEmails:    sendEmails,
	}
}

// Name returns the name of the job
func (j *CatalogSyncJob) Name() string {
	return "catalog_sync"
}

// Run executes the job
func (j *CatalogSyncJob) Run(ctx context.Context) error {
	locations := j.cfg.LocationsByLabel("all")
	report := j.manager.Reconcile(ctx, locations)

	if j.withBackup {
		backup, ok := j.cfg.BackupLocation()
		if !ok {
			report.AddError("Backup skipped: no location labelled %s configured", j.cfg.BackupLabel)
		} else {
			j.manager.Backup(ctx, backup, j.cfg.PrimaryLabels, report)
			report.Finish()
		}
	}

	log.Printf("Catalog sync complete: %d added, %d patched, %d backed up, %d errors",
		len(report.Added), len(report.Patched), len(report.BackedUp), len(report.Errors))

	if j.sendEmails && j.emailNotifier != nil {
		if err := j.emailNotifier.NotifyRunReport(report); err != nil {
			log.Printf("Failed to send run report: %v", err)
		}
	}

	return nil
}
