// Package startups manages startup profiles, their tags, documents and the
// founder-written report, and runs AI description generation.
package startups

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"startup-hub/agent"
	"startup-hub/apperrors"
	"startup-hub/constants"
	"startup-hub/models"
	"startup-hub/storage"
	"startup-hub/tasks"
)

const (
	maxShortDescription = 300
	maxTagName          = 50
)

// DescriptionPayload is the job payload of constants.TaskGenerateDescription.
type DescriptionPayload struct {
	StartupID  uint   `json:"startup_id"`
	PromptData string `json:"prompt_data"`
}

type Service struct {
	db     *gorm.DB
	agent  agent.Asker
	queue  tasks.Enqueuer
	files  *storage.FileStore
	logger zerolog.Logger
}

func NewService(db *gorm.DB, asker agent.Asker, queue tasks.Enqueuer, files *storage.FileStore, logger zerolog.Logger) *Service {
	return &Service{db: db, agent: asker, queue: queue, files: files, logger: logger}
}

// ResolveTags maps names to tag rows, creating the missing ones. Blank and
// repeated names are dropped.
func ResolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		if utf8.RuneCountInString(n) > maxTagName {
			return nil, apperrors.Validation("tag %q is longer than %d characters", n, maxTagName)
		}
		seen[n] = true
		var tag models.Tag
		if err := tx.Where(models.Tag{Name: n}).FirstOrCreate(&tag).Error; err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", n, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *Service) Tags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func (s *Service) Tag(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.WithContext(ctx).First(&tag, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("tag")
	}
	if err != nil {
		return nil, fmt.Errorf("get tag %d: %w", id, err)
	}
	return &tag, nil
}

// List returns active startups, newest first.
func (s *Service) List(ctx context.Context) ([]models.StartupListItem, error) {
	var startups []models.Startup
	err := s.db.WithContext(ctx).
		Preload("Founder").Preload("Tags").
		Where("is_active = ?", true).
		Order("created_at desc, id desc").
		Find(&startups).Error
	if err != nil {
		return nil, fmt.Errorf("list startups: %w", err)
	}
	items := make([]models.StartupListItem, 0, len(startups))
	for _, st := range startups {
		items = append(items, st.ListItem())
	}
	return items, nil
}

// Get returns the detail view of an active startup.
func (s *Service) Get(ctx context.Context, id uint) (*models.StartupDetail, error) {
	return s.detail(ctx, id, true)
}

func (s *Service) detail(ctx context.Context, id uint, activeOnly bool) (*models.StartupDetail, error) {
	q := s.db.WithContext(ctx).
		Preload("Founder").Preload("Tags").Preload("Documents").Preload("Report").
		Where("id = ?", id)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var st models.Startup
	err := q.First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("startup")
	}
	if err != nil {
		return nil, fmt.Errorf("get startup %d: %w", id, err)
	}

	var likes int64
	if err := s.db.WithContext(ctx).Model(&models.Like{}).Where("startup_id = ?", id).Count(&likes).Error; err != nil {
		return nil, fmt.Errorf("count likes of startup %d: %w", id, err)
	}
	d := st.Detail(likes)
	return &d, nil
}

// Create registers a startup owned by founderID.
func (s *Service) Create(ctx context.Context, founderID uint, dto models.StartupDTO) (*models.StartupDetail, error) {
	if dto.Name == nil || strings.TrimSpace(*dto.Name) == "" {
		return nil, apperrors.Validation("name is required")
	}
	if dto.DescriptionShort == nil || strings.TrimSpace(*dto.DescriptionShort) == "" {
		return nil, apperrors.Validation("description_short is required")
	}
	if dto.FoundingYear == nil {
		return nil, apperrors.Validation("founding_year is required")
	}

	st := models.Startup{FounderID: founderID, IsActive: true}
	if err := apply(&st, dto); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := ResolveTags(tx, dto.Tags)
		if err != nil {
			return err
		}
		st.Tags = tags
		return tx.Create(&st).Error
	})
	if err != nil {
		return nil, wrap(err, "create startup")
	}
	s.logger.Info().Uint("startup_id", st.ID).Uint("founder_id", founderID).Msg("startup created")
	return s.Get(ctx, st.ID)
}

// Update applies the non-nil fields of dto. Tags, when present, replace the set.
func (s *Service) Update(ctx context.Context, userID, id uint, dto models.StartupDTO) (*models.StartupDetail, error) {
	st, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := apply(st, dto); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(st).Error; err != nil {
			return err
		}
		if dto.Tags == nil {
			return nil
		}
		tags, err := ResolveTags(tx, dto.Tags)
		if err != nil {
			return err
		}
		return tx.Model(st).Association("Tags").Replace(tags)
	})
	if err != nil {
		return nil, wrap(err, fmt.Sprintf("update startup %d", id))
	}
	return s.detail(ctx, id, false)
}

func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	st, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	var docs []models.StartupDocument
	if err := s.db.WithContext(ctx).Where("startup_id = ?", id).Find(&docs).Error; err != nil {
		return fmt.Errorf("list documents of startup %d: %w", id, err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(st).Association("Tags").Clear(); err != nil {
			return err
		}
		for _, m := range []any{&models.StartupDocument{}, &models.Report{}, &models.Like{}} {
			if err := tx.Where("startup_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(st).Error
	})
	if err != nil {
		return fmt.Errorf("delete startup %d: %w", id, err)
	}
	for _, d := range docs {
		if err := s.files.Remove(d.Document); err != nil {
			s.logger.Warn().Err(err).Str("document", d.Document).Msg("remove document file")
		}
	}
	s.logger.Info().Uint("startup_id", id).Msg("startup deleted")
	return nil
}

// Report returns the founder-written report of an active startup.
func (s *Service) Report(ctx context.Context, id uint) (*models.Report, error) {
	if _, err := s.active(ctx, id); err != nil {
		return nil, err
	}
	var r models.Report
	err := s.db.WithContext(ctx).Where("startup_id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("report")
	}
	if err != nil {
		return nil, fmt.Errorf("get report of startup %d: %w", id, err)
	}
	return &r, nil
}

// PutReport creates or replaces the startup's one-to-one report.
func (s *Service) PutReport(ctx context.Context, userID, id uint, dto models.ReportDTO) (*models.Report, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(dto.Title) == "" {
		return nil, apperrors.Validation("title is required")
	}
	r := models.Report{
		StartupID: id,
		Title:     dto.Title,
		Audience:  dto.Audience,
		Niche:     dto.Niche,
		Problem:   dto.Problem,
		Solution:  dto.Solution,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "startup_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "audience", "niche", "problem", "solution"}),
	}).Create(&r).Error
	if err != nil {
		return nil, fmt.Errorf("save report of startup %d: %w", id, err)
	}
	return s.Report(ctx, id)
}

// AddDocument stores an uploaded file and attaches it to the startup.
func (s *Service) AddDocument(ctx context.Context, userID, id uint, filename, description string, r io.Reader) (*models.StartupDocument, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperrors.Validation("description is required")
	}
	name, err := s.files.Save(fmt.Sprintf("startup_documents/%d", id), filename, r)
	if err != nil {
		return nil, apperrors.Validation("could not store document: %v", err)
	}
	doc := models.StartupDocument{StartupID: id, Document: name, Description: description}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		_ = s.files.Remove(name)
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &doc, nil
}

// OpenDocument returns the document row and its file. The caller closes it.
func (s *Service) OpenDocument(ctx context.Context, startupID, docID uint) (*models.StartupDocument, *os.File, error) {
	if _, err := s.active(ctx, startupID); err != nil {
		return nil, nil, err
	}
	var doc models.StartupDocument
	err := s.db.WithContext(ctx).Where("id = ? AND startup_id = ?", docID, startupID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperrors.NotFound("document")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get document %d: %w", docID, err)
	}
	f, err := s.files.Open(doc.Document)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apperrors.NotFound("document")
	}
	if err != nil {
		return nil, nil, err
	}
	return &doc, f, nil
}

// RequestDescription queues AI generation of the long description.
func (s *Service) RequestDescription(ctx context.Context, userID, id uint, promptData string) (*models.Job, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(promptData) == "" {
		return nil, apperrors.Validation(constants.ErrPromptDataRequired)
	}
	job, err := s.queue.Enqueue(ctx, constants.TaskGenerateDescription, DescriptionPayload{StartupID: id, PromptData: promptData})
	if err != nil {
		return nil, fmt.Errorf("queue description of startup %d: %w", id, err)
	}
	s.logger.Info().Uint("startup_id", id).Str("job_id", job.ID).Msg("description generation queued")
	return job, nil
}

// HandleDescriptionJob is the queue handler of constants.TaskGenerateDescription.
// Transport failures are retried; empty or malformed replies are final.
func (s *Service) HandleDescriptionJob(ctx context.Context, job *models.Job) error {
	var p DescriptionPayload
	if err := tasks.Decode(job, &p); err != nil {
		return err
	}
	log := s.logger.With().Uint("startup_id", p.StartupID).Str("job_id", job.ID).Logger()

	var st models.Startup
	err := s.db.WithContext(ctx).First(&st, p.StartupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error().Msg("startup does not exist, aborting description")
		return apperrors.NotFound("startup")
	}
	if err != nil {
		return fmt.Errorf("load startup %d: %w", p.StartupID, err)
	}

	text, err := s.agent.Ask(ctx, agent.Description, map[string]string{"query": p.PromptData})
	switch {
	case err == nil:
	case agent.IsTransport(err):
		log.Warn().Err(err).Msg("description agent unreachable")
		return tasks.Retry(err)
	default:
		log.Error().Err(err).Msg("invalid reply from description agent")
		return err
	}

	err = s.db.WithContext(context.WithoutCancel(ctx)).Model(&models.Startup{}).
		Where("id = ?", st.ID).
		Update("description_long", text).Error
	if err != nil {
		return fmt.Errorf("save description of startup %d: %w", st.ID, err)
	}
	log.Info().Int("chars", utf8.RuneCountInString(text)).Msg("description generated")
	return nil
}

func (s *Service) active(ctx context.Context, id uint) (*models.Startup, error) {
	return s.find(ctx, id, true)
}

func (s *Service) find(ctx context.Context, id uint, activeOnly bool) (*models.Startup, error) {
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var st models.Startup
	err := q.First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("startup")
	}
	if err != nil {
		return nil, fmt.Errorf("get startup %d: %w", id, err)
	}
	return &st, nil
}

// owned loads a startup for its founder; inactive startups stay manageable.
func (s *Service) owned(ctx context.Context, userID, id uint) (*models.Startup, error) {
	st, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if st.FounderID != userID {
		return nil, apperrors.Forbidden(constants.ErrAccessProhibited)
	}
	return st, nil
}

func apply(st *models.Startup, dto models.StartupDTO) error {
	if dto.Name != nil {
		if strings.TrimSpace(*dto.Name) == "" {
			return apperrors.Validation("name must not be empty")
		}
		st.Name = *dto.Name
	}
	if dto.DescriptionShort != nil {
		if utf8.RuneCountInString(*dto.DescriptionShort) > maxShortDescription {
			return apperrors.Validation("description_short must be at most %d characters", maxShortDescription)
		}
		st.DescriptionShort = *dto.DescriptionShort
	}
	if dto.DescriptionLong != nil {
		st.DescriptionLong = *dto.DescriptionLong
	}
	if dto.WebsiteURL != nil {
		if *dto.WebsiteURL == "" {
			st.WebsiteURL = nil
		} else {
			u := *dto.WebsiteURL
			st.WebsiteURL = &u
		}
	}
	if dto.FoundingYear != nil {
		if *dto.FoundingYear < 0 {
			return apperrors.Validation("founding_year must be positive")
		}
		st.FoundingYear = *dto.FoundingYear
	}
	if dto.IsActive != nil {
		st.IsActive = *dto.IsActive
	}
	return nil
}

func wrap(err error, op string) error {
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
