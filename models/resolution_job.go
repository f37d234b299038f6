package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ResolutionJobStatus represents the processing state of a queued re-resolution
type ResolutionJobStatus string

const (
	ResolutionJobStatusPending   ResolutionJobStatus = "pending"
	ResolutionJobStatusCompleted ResolutionJobStatus = "completed"
	ResolutionJobStatusFailed    ResolutionJobStatus = "failed"
)

// Valid checks if the status is valid
func (s ResolutionJobStatus) Valid() bool {
	switch s {
	case ResolutionJobStatusPending, ResolutionJobStatusCompleted, ResolutionJobStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ResolutionJobStatus
func (s *ResolutionJobStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ResolutionJobStatus(v)
	case []byte:
		*s = ResolutionJobStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ResolutionJobStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ResolutionJobStatus
func (s ResolutionJobStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ResolutionJobStatus: %s", s)
	}
	return string(s), nil
}

// ResolutionJob queues an asynchronous re-resolution of one badge's assignments,
// keyed by (tenant, badge). Re-running a job is safe: rebuild is a full replace,
// so the final state is the same no matter how often it repeats. A partial unique
// index allows at most one pending job per badge, so concurrent webhook deliveries
// collapse into a single rebuild.
type ResolutionJob struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	TenantID uint `gorm:"not null;index" json:"tenant_id"`
	BadgeID  uint `gorm:"not null;index:idx_resolution_jobs_badge_status;uniqueIndex:uk_resolution_jobs_badge_pending,where:status = 'pending'" json:"badge_id"`

	// Reason records what catalog change produced the job (webhook topic)
	Reason string `gorm:"type:varchar(100)" json:"reason"`

	Status   ResolutionJobStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_resolution_jobs_badge_status" json:"status"`
	Attempts int                 `gorm:"not null;default:0" json:"attempts"`

	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func (ResolutionJob) TableName() string { return "resolution_jobs" }

// ResolutionJobFilter represents filter criteria for resolution job queries
type ResolutionJobFilter struct {
	ID       *uint                `json:"id,omitempty"`
	TenantID *uint                `json:"tenant_id,omitempty"`
	BadgeID  *uint                `json:"badge_id,omitempty"`
	Status   *ResolutionJobStatus `json:"status,omitempty"`
}
