package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type resultPruner interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// ResultCleanupJob drops cached results older than maxAgeDays.
type ResultCleanupJob struct {
	repo       resultPruner
	maxAgeDays int
	now        func() time.Time
}

func NewResultCleanupJob(repo resultPruner, maxAgeDays int) *ResultCleanupJob {
	return &ResultCleanupJob{repo: repo, maxAgeDays: maxAgeDays, now: time.Now}
}

func (j *ResultCleanupJob) Name() string {
	return "result_cleanup"
}

func (j *ResultCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil || j.maxAgeDays <= 0 {
		return nil
	}
	cutoff := j.now().Add(-time.Duration(j.maxAgeDays) * 24 * time.Hour).Unix()
	count, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("expired results removed", zap.Int64("count", count), zap.Int64("cutoff", cutoff))
	return nil
}
