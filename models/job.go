package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus tracks a background job through the queue.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// Job is a persisted unit of background work.
type Job struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	Task        string         `json:"task" gorm:"size:100;index;not null"`
	Payload     datatypes.JSON `json:"payload"`
	Status      JobStatus      `json:"status" gorm:"size:20;index;not null"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	LastError   string         `json:"last_error" gorm:"type:text"`
	RunAfter    time.Time      `json:"run_after" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName keeps the table short and explicit.
func (Job) TableName() string { return "jobs" }

// BeforeCreate assigns the ID and the first run time.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = JobQueued
	}
	if j.RunAfter.IsZero() {
		j.RunAfter = time.Now().UTC()
	}
	return nil
}

// All lists every table for migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Tag{},
		&Startup{},
		&StartupDocument{},
		&Report{},
		&InvestorProfile{},
		&Like{},
		&AnalysisReport{},
		&ChatSession{},
		&ChatMessage{},
		&Job{},
	}
}
