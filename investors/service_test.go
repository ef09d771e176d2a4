package investors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"startup-hub/apperrors"
	"startup-hub/constants"
	"startup-hub/database/dbtest"
	"startup-hub/models"
	"startup-hub/startups"
)

type fixture struct {
	svc      *Service
	db       *gorm.DB
	founder  models.User
	investor models.User
	base     time.Time
	n        int
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	return &fixture{
		svc:      NewService(db, zerolog.Nop()),
		db:       db,
		founder:  dbtest.User(t, db, "founder", models.UserFounder),
		investor: dbtest.User(t, db, "investor", models.UserInvestor),
		base:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// startup inserts an active startup; each call is one minute newer than the last.
func (f *fixture) startup(t *testing.T, name string, tags ...string) models.Startup {
	t.Helper()
	f.n++
	resolved, err := startups.ResolveTags(f.db, tags)
	require.NoError(t, err)
	st := models.Startup{
		FounderID:        f.founder.ID,
		Name:             name,
		DescriptionShort: name,
		FoundingYear:     2020,
		IsActive:         true,
		Tags:             resolved,
		CreatedAt:        f.base.Add(time.Duration(f.n) * time.Minute),
	}
	require.NoError(t, f.db.Create(&st).Error)
	return st
}

func ids(items []models.StartupListItem) []uint {
	out := make([]uint, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestProfileIsCreatedOnFirstRead(t *testing.T) {
	f := setup(t)

	v, err := f.svc.Profile(context.Background(), f.investor.ID)
	require.NoError(t, err)
	assert.Equal(t, "investor", v.User)
	assert.Empty(t, v.CompanyName)
	assert.NotNil(t, v.InterestedInTags)
	assert.NotNil(t, v.LikedStartups)

	_, err = f.svc.Profile(context.Background(), f.investor.ID)
	require.NoError(t, err)
	var n int64
	require.NoError(t, f.db.Model(&models.InvestorProfile{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestUpdateProfileIsPartial(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	company := "Seed Capital"

	v, err := f.svc.UpdateProfile(ctx, f.investor.ID, models.InvestorProfileDTO{
		CompanyName:      &company,
		InterestedInTags: []string{"fintech", "ai"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Seed Capital", v.CompanyName)
	require.Len(t, v.InterestedInTags, 2)
	assert.Equal(t, "ai", v.InterestedInTags[0].Name)

	v, err = f.svc.UpdateProfile(ctx, f.investor.ID, models.InvestorProfileDTO{InterestedInTags: []string{"climate"}})
	require.NoError(t, err)
	assert.Equal(t, "Seed Capital", v.CompanyName)
	require.Len(t, v.InterestedInTags, 1)
	assert.Equal(t, "climate", v.InterestedInTags[0].Name)

	v, err = f.svc.UpdateProfile(ctx, f.investor.ID, models.InvestorProfileDTO{})
	require.NoError(t, err)
	assert.Len(t, v.InterestedInTags, 1)
}

func TestRecommendRequiresProfile(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Recommend(context.Background(), f.investor.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	err = f.svc.Like(context.Background(), f.investor.ID, 1)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestRecommendWithoutInterestsReturnsNewestUnliked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Profile(ctx, f.investor.ID)
	require.NoError(t, err)

	var all []models.Startup
	for i := 0; i < 12; i++ {
		all = append(all, f.startup(t, fmt.Sprintf("s%02d", i)))
	}
	newest := all[11]
	require.NoError(t, f.svc.Like(ctx, f.investor.ID, newest.ID))

	inactive := all[10]
	require.NoError(t, f.db.Model(&inactive).Update("is_active", false).Error)

	got, err := f.svc.Recommend(ctx, f.investor.ID)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, all[9].ID, got[0].ID)
	assert.NotContains(t, ids(got), newest.ID)
	assert.NotContains(t, ids(got), inactive.ID)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i-1].ID, got[i].ID)
	}
}

func TestRecommendByInterestsDeduplicates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.UpdateProfile(ctx, f.investor.ID, models.InvestorProfileDTO{InterestedInTags: []string{"ai", "drones"}})
	require.NoError(t, err)

	both := f.startup(t, "Both", "ai", "drones")
	onlyAI := f.startup(t, "OnlyAI", "ai")
	f.startup(t, "Unrelated", "retail")
	f.startup(t, "Untagged")
	liked := f.startup(t, "Liked", "drones")
	require.NoError(t, f.svc.Like(ctx, f.investor.ID, liked.ID))

	got, err := f.svc.Recommend(ctx, f.investor.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{onlyAI.ID, both.ID}, ids(got))
}

func TestRecommendByInterestsIsCapped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.UpdateProfile(ctx, f.investor.ID, models.InvestorProfileDTO{InterestedInTags: []string{"ai"}})
	require.NoError(t, err)
	for i := 0; i < constants.RecommendationLimit+3; i++ {
		f.startup(t, fmt.Sprintf("ai-%d", i), "ai")
	}

	got, err := f.svc.Recommend(ctx, f.investor.ID)
	require.NoError(t, err)
	assert.Len(t, got, constants.RecommendationLimit)
}

func TestLikeTwiceStoresOneRow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Profile(ctx, f.investor.ID)
	require.NoError(t, err)
	st := f.startup(t, "Aero")

	require.NoError(t, f.svc.Like(ctx, f.investor.ID, st.ID))
	require.NoError(t, f.svc.Like(ctx, f.investor.ID, st.ID))

	var n int64
	require.NoError(t, f.db.Model(&models.Like{}).Where("investor_id = ? AND startup_id = ?", f.investor.ID, st.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	v, err := f.svc.Profile(ctx, f.investor.ID)
	require.NoError(t, err)
	require.Len(t, v.LikedStartups, 1)
	assert.Equal(t, "Aero", v.LikedStartups[0].Name)
	assert.Equal(t, "founder", v.LikedStartups[0].Founder)
}

func TestLikeMissingStartup(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Profile(context.Background(), f.investor.ID)
	require.NoError(t, err)

	err = f.svc.Like(context.Background(), f.investor.ID, 404)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
