package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/automation-global/platform/internal/jobs"
)

const defaultAuditRetentionDays = 90

// AuditCleanupJob prunes audit log entries older than the retention window.
type AuditCleanupJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics

	// RetentionDays applies when the task payload does not override it.
	RetentionDays int
}

// NewAuditCleanupJob wires dependencies for the cleanup handler.
func NewAuditCleanupJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics, retentionDays int) *AuditCleanupJob {
	if retentionDays <= 0 {
		retentionDays = defaultAuditRetentionDays
	}
	return &AuditCleanupJob{Pool: pool, Logger: logger, Metrics: metrics, RetentionDays: retentionDays}
}

// Handle processes audit cleanup tasks.
func (j *AuditCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("audit cleanup: handler not configured")
	}
	var payload AuditCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	days := payload.RetentionDays
	if days <= 0 {
		days = j.RetentionDays
	}

	tracker := j.metrics().Track(TaskAuditCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	tag, err := j.Pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		resultErr = err
		j.logger().Error("prune audit logs", slog.Any("error", err))
		return resultErr
	}

	j.logger().Info("completed audit cleanup",
		slog.Int64("deleted", tag.RowsAffected()),
		slog.Time("cutoff", cutoff),
	)
	return resultErr
}

func (j *AuditCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuditCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditCleanup))
	}
	return slog.Default().With(slog.String("job", TaskAuditCleanup))
}
