package models

import "time"

// ReportStatus is the lifecycle state of an AnalysisReport.
// Allowed moves: PENDING -> PROCESSING -> COMPLETED | FAILED.
type ReportStatus string

const (
	ReportPending    ReportStatus = "PENDING"
	ReportProcessing ReportStatus = "PROCESSING"
	ReportCompleted  ReportStatus = "COMPLETED"
	ReportFailed     ReportStatus = "FAILED"
)

// Terminal reports whether no further transition is expected.
func (s ReportStatus) Terminal() bool {
	return s == ReportCompleted || s == ReportFailed
}

// AnalysisReport is a user's market-analysis request and its generated markdown.
// ReportContentMD is set only when COMPLETED, ErrorMessage only when FAILED.
type AnalysisReport struct {
	ID              uint         `json:"id" gorm:"primaryKey"`
	UserID          uint         `json:"-" gorm:"index;not null"`
	User            User         `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	InitialQuery    string       `json:"initial_query" gorm:"type:text;not null"`
	ReportContentMD *string      `json:"report_content_md" gorm:"type:text"`
	Status          ReportStatus `json:"status" gorm:"size:20;index;not null"`
	ErrorMessage    *string      `json:"error_message" gorm:"type:text"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TableName keeps the table short and explicit.
func (AnalysisReport) TableName() string { return "analysis_reports" }

// AnalysisReportListItem is the lightweight list representation.
type AnalysisReportListItem struct {
	ID           uint         `json:"id"`
	Status       ReportStatus `json:"status"`
	ShortQuery   string       `json:"short_query"`
	CreatedAt    time.Time    `json:"created_at"`
	ErrorMessage *string      `json:"error_message"`
}

// AnalysisReportDetail is the full representation.
type AnalysisReportDetail struct {
	ID              uint         `json:"id"`
	User            string       `json:"user"`
	Status          ReportStatus `json:"status"`
	InitialQuery    string       `json:"initial_query"`
	ReportContentMD *string      `json:"report_content_md"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	ErrorMessage    *string      `json:"error_message"`
}

// ListItem truncates the query to limit runes, appending "..." when cut.
func (r AnalysisReport) ListItem(limit int) AnalysisReportListItem {
	q := []rune(r.InitialQuery)
	short := r.InitialQuery
	if len(q) > limit {
		short = string(q[:limit]) + "..."
	}
	return AnalysisReportListItem{
		ID:           r.ID,
		Status:       r.Status,
		ShortQuery:   short,
		CreatedAt:    r.CreatedAt,
		ErrorMessage: r.ErrorMessage,
	}
}

// Detail expects User to be preloaded.
func (r AnalysisReport) Detail() AnalysisReportDetail {
	return AnalysisReportDetail{
		ID:              r.ID,
		User:            r.User.String(),
		Status:          r.Status,
		InitialQuery:    r.InitialQuery,
		ReportContentMD: r.ReportContentMD,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ErrorMessage:    r.ErrorMessage,
	}
}

// AnalysisReportDTO is the POST /reports payload.
type AnalysisReportDTO struct {
	InitialQueryInput string `json:"initial_query_input"`
}
