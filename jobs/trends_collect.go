package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/automation-global/platform/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	trendsCacheTTL  = 2 * time.Hour
	trendsParallel  = 4
	trendsScopeTime = 20 * time.Second
)

// TrendsCollectJob aggregates automation usage per organization and caches
// the snapshot in Redis for the dashboard.
type TrendsCollectJob struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewTrendsCollectJob wires dependencies for the trends handler.
func NewTrendsCollectJob(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *TrendsCollectJob {
	return &TrendsCollectJob{
		Pool:    pool,
		Redis:   rdb,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// TrendsSnapshot is the cached per-organization aggregate.
type TrendsSnapshot struct {
	OrganizationID   string    `json:"organizationId"`
	TotalAutomations int64     `json:"totalAutomations"`
	EnabledCount     int64     `json:"enabledCount"`
	PublicCount      int64     `json:"publicCount"`
	TotalRuns        int64     `json:"totalRuns"`
	ActiveMembers    int64     `json:"activeMembers"`
	CollectedAt      time.Time `json:"collectedAt"`
}

// TrendsCacheKey returns the Redis key holding an organization's snapshot.
func TrendsCacheKey(organizationID string) string {
	return "trends:automations:" + organizationID
}

// Handle processes trends collection tasks.
func (j *TrendsCollectJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("trends collect: handler not configured")
	}
	var payload TrendsCollectPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTrendsCollect)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting trends collection")

	orgIDs, err := j.fetchOrganizations(ctx, payload.OrganizationID)
	if err != nil {
		resultErr = err
		logger.Error("load organizations", slog.Any("error", err))
		return resultErr
	}
	if len(orgIDs) == 0 {
		logger.Info("no organizations to collect")
		return resultErr
	}

	start := j.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(trendsParallel)
	for _, orgID := range orgIDs {
		orgID := orgID
		g.Go(func() error {
			return j.collectOrganization(gctx, orgID)
		})
	}
	if err := g.Wait(); err != nil {
		resultErr = err
		logger.Error("collect organization", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddOrganizations(TaskTrendsCollect, len(orgIDs))
	logger.Info("completed trends collection", slog.Int("organizations", len(orgIDs)), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *TrendsCollectJob) collectOrganization(ctx context.Context, organizationID string) error {
	scopeCtx, cancel := context.WithTimeout(ctx, trendsScopeTime)
	defer cancel()

	snap := TrendsSnapshot{OrganizationID: organizationID, CollectedAt: j.now()}
	err := j.Pool.QueryRow(scopeCtx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'enabled'),
			count(*) FILTER (WHERE is_public),
			COALESCE(sum(run_count), 0)
		FROM automations WHERE organization_id = $1`, organizationID).
		Scan(&snap.TotalAutomations, &snap.EnabledCount, &snap.PublicCount, &snap.TotalRuns)
	if err != nil {
		return err
	}
	err = j.Pool.QueryRow(scopeCtx, `
		SELECT count(*) FROM organization_users
		WHERE organization_id = $1 AND is_active = TRUE`, organizationID).
		Scan(&snap.ActiveMembers)
	if err != nil {
		return err
	}

	_, err = j.Pool.Exec(scopeCtx, `
		INSERT INTO trend_snapshots (organization_id, total_automations, enabled_count, public_count, total_runs, active_members, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.OrganizationID, snap.TotalAutomations, snap.EnabledCount, snap.PublicCount, snap.TotalRuns, snap.ActiveMembers, snap.CollectedAt)
	if err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return j.Redis.Set(scopeCtx, TrendsCacheKey(organizationID), data, trendsCacheTTL).Err()
}

func (j *TrendsCollectJob) fetchOrganizations(ctx context.Context, only string) ([]string, error) {
	if j.Pool == nil {
		return nil, errors.New("trends collect: pool not configured")
	}
	if only != "" {
		return []string{only}, nil
	}
	rows, err := j.Pool.Query(ctx, `SELECT id FROM organizations WHERE is_active = TRUE ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *TrendsCollectJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTrendsCollect))
	}
	return slog.Default().With(slog.String("job", TaskTrendsCollect))
}

func (j *TrendsCollectJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *TrendsCollectJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
