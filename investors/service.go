// Package investors holds investor profiles, startup recommendations and likes.
package investors

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"startup-hub/apperrors"
	"startup-hub/constants"
	"startup-hub/models"
	"startup-hub/startups"
)

type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Profile returns the caller's profile, creating an empty one on first use.
func (s *Service) Profile(ctx context.Context, userID uint) (*models.InvestorProfileView, error) {
	profile := models.InvestorProfile{UserID: userID}
	if err := s.db.WithContext(ctx).Where(models.InvestorProfile{UserID: userID}).FirstOrCreate(&profile).Error; err != nil {
		return nil, fmt.Errorf("get or create investor profile: %w", err)
	}
	return s.view(ctx, userID)
}

// UpdateProfile applies a partial update. A non-nil tag list replaces the
// interest set; unknown tag names are created.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, dto models.InvestorProfileDTO) (*models.InvestorProfileView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile := models.InvestorProfile{UserID: userID}
		if err := tx.Where(models.InvestorProfile{UserID: userID}).FirstOrCreate(&profile).Error; err != nil {
			return err
		}
		if dto.CompanyName != nil {
			if err := tx.Model(&profile).Update("company_name", *dto.CompanyName).Error; err != nil {
				return err
			}
		}
		if dto.InterestedInTags == nil {
			return nil
		}
		tags, err := startups.ResolveTags(tx, dto.InterestedInTags)
		if err != nil {
			return err
		}
		return tx.Model(&profile).Association("InterestedTags").Replace(tags)
	})
	if err != nil {
		if apperrors.KindOf(err) != apperrors.KindInternal {
			return nil, err
		}
		return nil, fmt.Errorf("update investor profile: %w", err)
	}
	return s.view(ctx, userID)
}

func (s *Service) view(ctx context.Context, userID uint) (*models.InvestorProfileView, error) {
	var profile models.InvestorProfile
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("InterestedTags", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		First(&profile, "user_id = ?", userID).Error
	if err != nil {
		return nil, fmt.Errorf("load investor profile: %w", err)
	}

	var liked []models.Startup
	err = s.db.WithContext(ctx).
		Preload("Founder").Preload("Tags").
		Joins("JOIN likes ON likes.startup_id = startups.id").
		Where("likes.investor_id = ?", userID).
		Order("likes.created_at desc, likes.id desc").
		Find(&liked).Error
	if err != nil {
		return nil, fmt.Errorf("load liked startups: %w", err)
	}

	v := models.InvestorProfileView{
		User:             profile.User.String(),
		CompanyName:      profile.CompanyName,
		InterestedInTags: profile.InterestedTags,
		LikedStartups:    make([]models.StartupListItem, 0, len(liked)),
	}
	if v.InterestedInTags == nil {
		v.InterestedInTags = []models.Tag{}
	}
	for _, st := range liked {
		v.LikedStartups = append(v.LikedStartups, st.ListItem())
	}
	return &v, nil
}

// Recommend lists up to constants.RecommendationLimit active startups the
// investor has not liked yet. With interests set only startups sharing a tag
// with them qualify; otherwise the newest startups are returned.
func (s *Service) Recommend(ctx context.Context, userID uint) ([]models.StartupListItem, error) {
	if err := s.requireProfile(ctx, userID); err != nil {
		return nil, err
	}

	var tagIDs []uint
	err := s.db.WithContext(ctx).Table("investor_interested_tags").
		Where("investor_id = ?", userID).
		Pluck("tag_id", &tagIDs).Error
	if err != nil {
		return nil, fmt.Errorf("load interests: %w", err)
	}

	liked := s.db.Model(&models.Like{}).Select("startup_id").Where("investor_id = ?", userID)
	q := s.db.WithContext(ctx).
		Preload("Founder").Preload("Tags").
		Where("startups.is_active = ?", true).
		Where("startups.id NOT IN (?)", liked)
	if len(tagIDs) > 0 {
		matching := s.db.Table("startup_tags").Select("startup_id").Where("tag_id IN ?", tagIDs)
		q = q.Where("startups.id IN (?)", matching)
	}

	var found []models.Startup
	err = q.Order("startups.created_at desc, startups.id desc").
		Limit(constants.RecommendationLimit).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("recommend startups: %w", err)
	}

	items := make([]models.StartupListItem, 0, len(found))
	for _, st := range found {
		items = append(items, st.ListItem())
	}
	s.logger.Debug().Uint("investor_id", userID).Int("interests", len(tagIDs)).Int("results", len(items)).Msg("recommendations")
	return items, nil
}

// Like records that the investor liked the startup. Repeating it is a no-op.
func (s *Service) Like(ctx context.Context, userID, startupID uint) error {
	if err := s.requireProfile(ctx, userID); err != nil {
		return err
	}
	var st models.Startup
	err := s.db.WithContext(ctx).Select("id").First(&st, startupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("startup")
	}
	if err != nil {
		return fmt.Errorf("get startup %d: %w", startupID, err)
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{InvestorID: userID, StartupID: startupID})
	if res.Error != nil {
		return fmt.Errorf("like startup %d: %w", startupID, res.Error)
	}
	s.logger.Info().Uint("investor_id", userID).Uint("startup_id", startupID).Bool("new", res.RowsAffected > 0).Msg("startup liked")
	return nil
}

func (s *Service) requireProfile(ctx context.Context, userID uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.InvestorProfile{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return fmt.Errorf("get investor profile: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("investor profile")
	}
	return nil
}
