package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTrendsCollect aggregates automation usage per organization.
	TaskTrendsCollect = "trends:collect"
	// TaskAuditCleanup prunes audit log entries past retention.
	TaskAuditCleanup = "audit:cleanup"
)

// TrendsCollectPayload scopes a trends run. An empty OrganizationID means all
// active organizations.
type TrendsCollectPayload struct {
	OrganizationID string `json:"organization_id,omitempty"`
}

// NewTrendsCollectTask constructs an Asynq task.
func NewTrendsCollectTask(payload TrendsCollectPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTrendsCollect, data), nil
}

// AuditCleanupPayload overrides the retention window in days. Zero means the
// configured default.
type AuditCleanupPayload struct {
	RetentionDays int `json:"retention_days,omitempty"`
}

// NewAuditCleanupTask constructs an Asynq task.
func NewAuditCleanupTask(payload AuditCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}
