package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/chickenstock/internal/config"
)

const jobTimeout = 2 * time.Minute

// LedgerBackup snapshots all ledgers into a directory.
type LedgerBackup interface {
	Backup(ctx context.Context, destDir string, at time.Time) ([]string, error)
}

// DailyPublisher publishes the report of a day.
type DailyPublisher interface {
	PublishDaily(ctx context.Context, day time.Time) (string, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	backups   LedgerBackup
	publisher DailyPublisher
	cfg       config.Config
	loc       *time.Location
	logger    *zap.Logger
}

// NewScheduler creates a new scheduler instance running in the configured timezone.
func NewScheduler(cfg config.Config, backups LedgerBackup, publisher DailyPublisher, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		backups:   backups,
		publisher: publisher,
		cfg:       cfg,
		loc:       loc,
		logger:    logger,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("backup_schedule", s.cfg.Reporting.BackupSchedule),
		zap.String("report_schedule", s.cfg.Reporting.ReportSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Reporting.BackupSchedule, s.runBackup); err != nil {
		return fmt.Errorf("schedule ledger backup: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.Reporting.ReportSchedule, s.runDailyReport); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	paths, err := s.backups.Backup(ctx, s.cfg.Ledger.BackupDir, time.Now().In(s.loc))
	if err != nil {
		s.logger.Error("ledger backup finished with errors", zap.Error(err), zap.Strings("written", paths))
		return
	}
	s.logger.Info("ledger backup completed", zap.Strings("written", paths))
}

func (s *Scheduler) runDailyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	now := time.Now().In(s.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if _, err := s.publisher.PublishDaily(ctx, day); err != nil {
		s.logger.Error("failed to publish daily report", zap.Error(err))
		return
	}
	s.logger.Info("daily report published", zap.String("day", day.Format("2006-01-02")))
}
