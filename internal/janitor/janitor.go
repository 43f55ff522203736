package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/eventpass/backend/internal/config"
	"github.com/eventpass/backend/internal/repository"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor periodically purges aged verification-log rows. The audit log is
// abuse-monitoring data and carries no registration state, so old rows can go.
type Janitor struct {
	cron    *cron.Cron
	logger  *zap.SugaredLogger
	config  config.JanitorConfig
	logRepo repository.VerificationLog
}

func New(logger *zap.SugaredLogger, cfg config.JanitorConfig, logRepo repository.VerificationLog) *Janitor {
	return &Janitor{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:  logger,
		config:  cfg,
		logRepo: logRepo,
	}
}

func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.config.Schedule, j.purge); err != nil {
		return fmt.Errorf("schedule janitor failed: %w", err)
	}

	j.cron.Start()
	j.logger.Infow("janitor scheduled", "schedule", j.config.Schedule, "retention", j.config.LogRetention)

	return nil
}

// Stop waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-j.config.LogRetention)
	deleted, err := j.logRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Errorw("verification log purge failed", "error", err)
		return
	}

	j.logger.Infow("verification log purged", "deleted", deleted, "cutoff", cutoff)
}
