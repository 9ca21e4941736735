package imports

import (
	"context"
	"fmt"
	"time"

	"github.com/loomline/designvault/pkg/logger"
)

const retentionJobName = "import-job-retention"

// RetentionJob deletes import audit rows untouched for longer than the TTL.
type RetentionJob struct {
	repo Repository
	logg *logger.Logger
	ttl  time.Duration
	now  func() time.Time
}

// NewRetentionJob builds the cron job that prunes import_jobs.
func NewRetentionJob(repo Repository, logg *logger.Logger, ttl time.Duration) (*RetentionJob, error) {
	if repo == nil {
		return nil, fmt.Errorf("imports repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("retention ttl must be positive")
	}
	return &RetentionJob{repo: repo, logg: logg, ttl: ttl, now: time.Now}, nil
}

func (j *RetentionJob) Name() string {
	return retentionJobName
}

func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	deleted, err := j.repo.DeleteJobsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete import jobs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	ctx = j.logg.WithFields(ctx, map[string]any{"deleted": deleted, "cutoff": cutoff})
	j.logg.Info(ctx, "import audit rows pruned")
	return nil
}
