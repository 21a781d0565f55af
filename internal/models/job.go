package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job kinds recorded by the pipeline
const (
	JobKindNormalize = "normalize"
	JobKindMatch     = "match"
	JobKindDedupScan = "dedup_scan"
	JobKindMerge     = "merge"
	JobKindBackfill  = "backfill"
)

// JobRun records one batch operation so operators can inspect per-record
// outcomes without digging through server logs
type JobRun struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Kind     string    `gorm:"not null;index" json:"kind"`
	Target   string    `json:"target,omitempty"` // logical table, cluster id, ...
	Force    bool      `json:"force"`
	DryRun   bool      `json:"dryRun"`
	Operator string    `json:"operator,omitempty"`

	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	DurationMs int64      `json:"durationMs"`

	Matched    int `json:"matched"`
	Unresolved int `json:"unresolved"`
	Unchanged  int `json:"unchanged"`
	Updated    int `json:"updated"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`

	// Details holds per-record outcomes: [{id, outcome, reason}, ...]
	Details datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for JobRun model
func (JobRun) TableName() string {
	return "job_runs"
}

// BeforeCreate GORM hook
func (j *JobRun) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
