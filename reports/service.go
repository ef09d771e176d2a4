// Package reports drives analysis reports from submission to a rendered PDF.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"startup-hub/agent"
	"startup-hub/apperrors"
	"startup-hub/config"
	"startup-hub/constants"
	"startup-hub/metrics"
	"startup-hub/models"
	"startup-hub/render"
	"startup-hub/tasks"
)

// GeneratePayload is the job payload of constants.TaskGenerateReport.
type GeneratePayload struct {
	ReportID uint `json:"report_id"`
}

// Service owns the report lifecycle:
// PENDING -> PROCESSING -> COMPLETED | FAILED.
type Service struct {
	db       *gorm.DB
	agent    agent.Asker
	queue    tasks.Enqueuer
	renderer *render.Renderer
	mode     string
	logger   zerolog.Logger
	metrics  *metrics.Recorder
}

// NewService builds the service. queue may be nil in inline mode.
func NewService(db *gorm.DB, asker agent.Asker, queue tasks.Enqueuer, renderer *render.Renderer, mode string, logger zerolog.Logger, rec *metrics.Recorder) *Service {
	if mode == "" {
		mode = config.DispatchQueued
	}
	return &Service{
		db:       db,
		agent:    asker,
		queue:    queue,
		renderer: renderer,
		mode:     mode,
		logger:   logger,
		metrics:  rec,
	}
}

// Submit persists a PENDING report and dispatches its generation.
// In inline mode the returned report already carries the outcome.
func (s *Service) Submit(ctx context.Context, userID uint, query string) (*models.AnalysisReport, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Validation(constants.ErrQueryRequired)
	}

	report := models.AnalysisReport{
		UserID:       userID,
		InitialQuery: query,
		Status:       models.ReportPending,
	}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	s.metrics.IncReportTransition(string(models.ReportPending))
	log := s.logger.With().Uint("report_id", report.ID).Str("mode", s.mode).Logger()

	if s.mode == config.DispatchInline || s.queue == nil {
		if err := s.Generate(ctx, report.ID, false); err != nil {
			log.Warn().Err(err).Msg("inline report generation failed")
		}
		if err := s.db.WithContext(context.WithoutCancel(ctx)).First(&report, report.ID).Error; err != nil {
			return nil, fmt.Errorf("reload report %d: %w", report.ID, err)
		}
		return &report, nil
	}

	job, err := s.queue.Enqueue(ctx, constants.TaskGenerateReport, GeneratePayload{ReportID: report.ID})
	if err != nil {
		return nil, fmt.Errorf("dispatch report %d: %w", report.ID, err)
	}
	log.Info().Str("job_id", job.ID).Msg("report generation queued")
	return &report, nil
}

// HandleJob is the queue handler for constants.TaskGenerateReport. Attempts
// after the first may reclaim a report the previous attempt left FAILED, or
// PROCESSING when that attempt died with the process.
func (s *Service) HandleJob(ctx context.Context, job *models.Job) error {
	var p GeneratePayload
	if err := tasks.Decode(job, &p); err != nil {
		return err
	}
	return s.Generate(ctx, p.ReportID, job.Attempts > 1)
}

// Generate runs one generation attempt. Transport failures are returned
// wrapped with tasks.Retry; every other failure is final.
func (s *Service) Generate(ctx context.Context, id uint, retry bool) error {
	log := s.logger.With().Uint("report_id", id).Bool("retry", retry).Logger()

	var report models.AnalysisReport
	if err := s.db.WithContext(ctx).First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Msg("report does not exist, aborting generation")
			return apperrors.NotFound("report")
		}
		return fmt.Errorf("load report %d: %w", id, err)
	}

	claimable := []models.ReportStatus{models.ReportPending}
	if retry {
		// a report has one job, and the queue runs a job once at a time
		claimable = append(claimable, models.ReportFailed, models.ReportProcessing)
	}
	res := s.db.WithContext(ctx).Model(&models.AnalysisReport{}).
		Where("id = ? AND status IN ?", id, claimable).
		Updates(map[string]any{
			"status":        models.ReportProcessing,
			"error_message": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("claim report %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		log.Info().Str("status", string(report.Status)).Msg("report not claimable, skipping")
		return nil
	}
	s.metrics.IncReportTransition(string(models.ReportProcessing))
	log.Info().Msg("report processing")

	content, err := s.agent.Ask(ctx, agent.Analysis, map[string]string{"query": report.InitialQuery})
	// outcomes are recorded even if ctx was cancelled mid-call
	ctx = context.WithoutCancel(ctx)
	switch {
	case err == nil:
		moved, err := s.transition(ctx, id, models.ReportCompleted, map[string]any{"report_content_md": content})
		if err != nil || !moved {
			return err
		}
		log.Info().Int("content_bytes", len(content)).Msg("report completed")
		return nil
	case agent.IsTransport(err):
		msg := fmt.Sprintf(constants.ReportNetworkError, err)
		moved, terr := s.transition(ctx, id, models.ReportFailed, map[string]any{"error_message": msg})
		if terr != nil || !moved {
			return terr
		}
		log.Warn().Err(err).Msg("report failed on agent transport")
		return tasks.Retry(err)
	default:
		msg := fmt.Sprintf(constants.ReportUnexpectedError, err)
		moved, terr := s.transition(ctx, id, models.ReportFailed, map[string]any{"error_message": msg})
		if terr != nil || !moved {
			return terr
		}
		log.Error().Err(err).Msg("report failed")
		return err
	}
}

// transition moves a PROCESSING report to its outcome. It reports false when
// the report left PROCESSING meanwhile, in which case nothing is recorded.
func (s *Service) transition(ctx context.Context, id uint, to models.ReportStatus, fields map[string]any) (bool, error) {
	fields["status"] = to
	res := s.db.WithContext(ctx).Model(&models.AnalysisReport{}).
		Where("id = ? AND status = ?", id, models.ReportProcessing).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("move report %d to %s: %w", id, to, res.Error)
	}
	if res.RowsAffected == 0 {
		s.logger.Warn().Uint("report_id", id).Str("to", string(to)).Msg("report no longer processing, outcome dropped")
		return false, nil
	}
	s.metrics.IncReportTransition(string(to))
	return true, nil
}

// List returns the caller's reports, newest first.
func (s *Service) List(ctx context.Context, userID uint) ([]models.AnalysisReportListItem, error) {
	var reports []models.AnalysisReport
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	items := make([]models.AnalysisReportListItem, 0, len(reports))
	for _, r := range reports {
		items = append(items, r.ListItem(constants.ShortQueryLength))
	}
	return items, nil
}

// Get returns a report owned by userID.
func (s *Service) Get(ctx context.Context, userID, id uint) (*models.AnalysisReport, error) {
	var report models.AnalysisReport
	err := s.db.WithContext(ctx).Preload("User").
		Where("id = ? AND user_id = ?", id, userID).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("report")
	}
	if err != nil {
		return nil, fmt.Errorf("get report %d: %w", id, err)
	}
	return &report, nil
}

// Download renders a COMPLETED report as PDF.
func (s *Service) Download(ctx context.Context, userID, id uint) (string, []byte, error) {
	md, err := s.completedMarkdown(ctx, userID, id)
	if err != nil {
		return "", nil, err
	}
	pdf, err := s.renderer.PDF(md)
	if err != nil {
		s.logger.Error().Err(err).Uint("report_id", id).Msg("pdf rendering failed")
		return "", nil, apperrors.Render(err)
	}
	return Filename(id), pdf, nil
}

// Preview renders a COMPLETED report as a styled HTML page.
func (s *Service) Preview(ctx context.Context, userID, id uint) (string, error) {
	md, err := s.completedMarkdown(ctx, userID, id)
	if err != nil {
		return "", err
	}
	html, err := s.renderer.HTML(md)
	if err != nil {
		return "", apperrors.Render(err)
	}
	return html, nil
}

func (s *Service) completedMarkdown(ctx context.Context, userID, id uint) (string, error) {
	report, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if report.Status != models.ReportCompleted || report.ReportContentMD == nil {
		return "", apperrors.InvalidState(constants.ErrReportNotCompleted)
	}
	md, err := render.ExtractMarkdown(*report.ReportContentMD)
	if err != nil {
		s.logger.Error().Err(err).Uint("report_id", id).Msg("stored report content is not renderable")
		return "", apperrors.Render(err)
	}
	return md, nil
}

// Filename is the attachment name of a downloaded report.
func Filename(id uint) string {
	return fmt.Sprintf("startup_report_%d.pdf", id)
}
