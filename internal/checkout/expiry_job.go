package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/loomline/designvault/pkg/logger"
)

// ExpiryJob marks active subscriptions whose period has ended as expired.
type ExpiryJob struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewExpiryJob builds the subscription-expiry cron job.
func NewExpiryJob(repo Repository, logg *logger.Logger) (*ExpiryJob, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ExpiryJob{repo: repo, logg: logg, now: time.Now}, nil
}

func (j *ExpiryJob) Name() string { return "subscription-expiry" }

func (j *ExpiryJob) Run(ctx context.Context) error {
	expired, err := j.repo.ExpireSubscriptions(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire subscriptions: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "subscription expiry sweep complete")
	return nil
}
