package startups

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"startup-hub/agent"
	"startup-hub/apperrors"
	"startup-hub/constants"
	"startup-hub/database/dbtest"
	"startup-hub/models"
	"startup-hub/storage"
	"startup-hub/tasks"
)

type fakeAgent struct {
	reply   string
	err     error
	queries []string
}

func (f *fakeAgent) Ask(ctx context.Context, endpoint string, payload any) (string, error) {
	f.queries = append(f.queries, payload.(map[string]string)["query"])
	return f.reply, f.err
}

type fakeQueue struct {
	jobs []models.Job
}

func (f *fakeQueue) Enqueue(ctx context.Context, task string, payload any) (*models.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	job := models.Job{ID: "job", Task: task, Payload: datatypes.JSON(raw)}
	f.jobs = append(f.jobs, job)
	return &job, nil
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	agent   *fakeAgent
	queue   *fakeQueue
	founder models.User
	other   models.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.New(t)
	files, err := storage.New(t.TempDir(), 1<<20)
	require.NoError(t, err)
	fa, fq := &fakeAgent{}, &fakeQueue{}
	return fixture{
		svc:     NewService(db, fa, fq, files, zerolog.Nop()),
		db:      db,
		agent:   fa,
		queue:   fq,
		founder: dbtest.User(t, db, "founder", models.UserFounder),
		other:   dbtest.User(t, db, "investor", models.UserInvestor),
	}
}

func ptr[T any](v T) *T { return &v }

func (f fixture) create(t *testing.T, name string, tags ...string) *models.StartupDetail {
	t.Helper()
	d, err := f.svc.Create(context.Background(), f.founder.ID, models.StartupDTO{
		Name:             ptr(name),
		DescriptionShort: ptr(name + " tagline"),
		FoundingYear:     ptr(2021),
		Tags:             tags,
	})
	require.NoError(t, err)
	return d
}

func TestCreateResolvesTagsOnce(t *testing.T) {
	f := setup(t)
	a := f.create(t, "Aero", "drones", "ai", "drones", " ")
	b := f.create(t, "Bolt", "ai")

	assert.Equal(t, "founder", a.Founder)
	assert.True(t, a.IsActive)
	assert.Len(t, a.Tags, 2)
	require.Len(t, b.Tags, 1)

	var count int64
	require.NoError(t, f.db.Model(&models.Tag{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	tags, err := f.svc.Tags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ai", tags[0].Name)
	tag, err := f.svc.Tag(context.Background(), tags[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "drones", tag.Name)
	_, err = f.svc.Tag(context.Background(), 999)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestCreateValidates(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(context.Background(), f.founder.ID, models.StartupDTO{Name: ptr("x")})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = f.svc.Create(context.Background(), f.founder.ID, models.StartupDTO{
		Name:             ptr("x"),
		DescriptionShort: ptr(strings.Repeat("a", 301)),
		FoundingYear:     ptr(2020),
	})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = f.svc.Create(context.Background(), f.founder.ID, models.StartupDTO{
		Name:             ptr("x"),
		DescriptionShort: ptr("y"),
		FoundingYear:     ptr(2020),
		Tags:             []string{strings.Repeat("t", 51)},
	})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestListShowsActiveNewestFirst(t *testing.T) {
	f := setup(t)
	first := f.create(t, "First")
	second := f.create(t, "Second")
	hidden := f.create(t, "Hidden")
	_, err := f.svc.Update(context.Background(), f.founder.ID, hidden.ID, models.StartupDTO{IsActive: ptr(false)})
	require.NoError(t, err)

	items, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)

	_, err = f.svc.Get(context.Background(), hidden.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestOnlyFounderMayModify(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero")
	ctx := context.Background()

	_, err := f.svc.Update(ctx, f.other.ID, st.ID, models.StartupDTO{Name: ptr("Stolen")})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	assert.True(t, apperrors.Is(f.svc.Delete(ctx, f.other.ID, st.ID), apperrors.KindForbidden))
	_, err = f.svc.PutReport(ctx, f.other.ID, st.ID, models.ReportDTO{Title: "t"})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	_, err = f.svc.RequestDescription(ctx, f.other.ID, st.ID, "key points")
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	assert.Empty(t, f.queue.jobs)
}

func TestFounderCanReactivateStartup(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero")
	ctx := context.Background()

	got, err := f.svc.Update(ctx, f.founder.ID, st.ID, models.StartupDTO{IsActive: ptr(false)})
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = f.svc.Get(ctx, st.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	_, err = f.svc.Update(ctx, f.other.ID, st.ID, models.StartupDTO{IsActive: ptr(true)})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	got, err = f.svc.Update(ctx, f.founder.ID, st.ID, models.StartupDTO{IsActive: ptr(true)})
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	_, err = f.svc.Get(ctx, st.ID)
	require.NoError(t, err)
}

func TestUpdateReplacesTagsAndKeepsOtherFields(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero", "drones")

	got, err := f.svc.Update(context.Background(), f.founder.ID, st.ID, models.StartupDTO{
		WebsiteURL: ptr("https://aero.example"),
		Tags:       []string{"logistics", "ai"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Aero", got.Name)
	assert.Equal(t, "https://aero.example", *got.WebsiteURL)
	var names []string
	for _, tg := range got.Tags {
		names = append(names, tg.Name)
	}
	assert.ElementsMatch(t, []string{"logistics", "ai"}, names)

	got, err = f.svc.Update(context.Background(), f.founder.ID, st.ID, models.StartupDTO{Name: ptr("Aero2")})
	require.NoError(t, err)
	assert.Len(t, got.Tags, 2)
}

func TestDetailCountsLikes(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero")
	require.NoError(t, f.db.Create(&models.InvestorProfile{UserID: f.other.ID}).Error)
	require.NoError(t, f.db.Create(&models.Like{InvestorID: f.other.ID, StartupID: st.ID}).Error)

	d, err := f.svc.Get(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.LikesCount)
	assert.NotNil(t, d.Documents)
	assert.Nil(t, d.Report)
}

func TestReportUpsert(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero")
	ctx := context.Background()

	_, err := f.svc.Report(ctx, st.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	r, err := f.svc.PutReport(ctx, f.founder.ID, st.ID, models.ReportDTO{Title: "v1", Problem: "p"})
	require.NoError(t, err)
	assert.Equal(t, "v1", r.Title)

	r, err = f.svc.PutReport(ctx, f.founder.ID, st.ID, models.ReportDTO{Title: "v2", Solution: "s"})
	require.NoError(t, err)
	assert.Equal(t, "v2", r.Title)
	assert.Equal(t, "s", r.Solution)

	var n int64
	require.NoError(t, f.db.Model(&models.Report{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	d, err := f.svc.Get(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, d.Report)
	assert.Equal(t, "v2", d.Report.Title)
}

func TestDocumentsRoundTrip(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero")
	ctx := context.Background()

	doc, err := f.svc.AddDocument(ctx, f.founder.ID, st.ID, "deck.pdf", "Pitch deck", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(doc.Document, ".pdf"))

	_, err = f.svc.AddDocument(ctx, f.other.ID, st.ID, "x.pdf", "nope", strings.NewReader("x"))
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	got, file, err := f.svc.OpenDocument(ctx, st.ID, doc.ID)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "Pitch deck", got.Description)

	_, _, err = f.svc.OpenDocument(ctx, st.ID+1, doc.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestDeleteRemovesDependents(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero", "drones")
	ctx := context.Background()
	doc, err := f.svc.AddDocument(ctx, f.founder.ID, st.ID, "deck.pdf", "deck", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = f.svc.PutReport(ctx, f.founder.ID, st.ID, models.ReportDTO{Title: "t"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.founder.ID, st.ID))

	for _, m := range []any{&models.Startup{}, &models.StartupDocument{}, &models.Report{}} {
		var n int64
		require.NoError(t, f.db.Model(m).Count(&n).Error)
		assert.Zero(t, n)
	}
	_, err = f.svc.files.Open(doc.Document)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRequestDescriptionQueuesJob(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero")

	_, err := f.svc.RequestDescription(context.Background(), f.founder.ID, st.ID, "")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	job, err := f.svc.RequestDescription(context.Background(), f.founder.ID, st.ID, "drone delivery")
	require.NoError(t, err)
	assert.Equal(t, constants.TaskGenerateDescription, job.Task)
	require.Len(t, f.queue.jobs, 1)

	var p DescriptionPayload
	require.NoError(t, tasks.Decode(&f.queue.jobs[0], &p))
	assert.Equal(t, DescriptionPayload{StartupID: st.ID, PromptData: "drone delivery"}, p)
}

func descriptionJob(t *testing.T, id uint, prompt string) *models.Job {
	t.Helper()
	raw, err := json.Marshal(DescriptionPayload{StartupID: id, PromptData: prompt})
	require.NoError(t, err)
	return &models.Job{ID: "j", Task: constants.TaskGenerateDescription, Payload: datatypes.JSON(raw), Attempts: 1}
}

func TestDescriptionJobStoresText(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero")
	f.agent.reply = "Aero builds autonomous delivery drones."

	require.NoError(t, f.svc.HandleDescriptionJob(context.Background(), descriptionJob(t, st.ID, "drone delivery")))
	assert.Equal(t, []string{"drone delivery"}, f.agent.queries)

	d, err := f.svc.Get(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aero builds autonomous delivery drones.", d.DescriptionLong)
}

func TestDescriptionJobErrors(t *testing.T) {
	f := setup(t)
	st := f.create(t, "Aero")

	f.agent.err = &agent.TransportError{Endpoint: agent.Description, Err: errors.New("timeout")}
	err := f.svc.HandleDescriptionJob(context.Background(), descriptionJob(t, st.ID, "x"))
	assert.True(t, tasks.IsRetryable(err))

	f.agent.err = agent.ErrNoReply
	err = f.svc.HandleDescriptionJob(context.Background(), descriptionJob(t, st.ID, "x"))
	require.Error(t, err)
	assert.False(t, tasks.IsRetryable(err))

	f.agent.err = nil
	err = f.svc.HandleDescriptionJob(context.Background(), descriptionJob(t, st.ID+100, "x"))
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.False(t, tasks.IsRetryable(err))

	d, err := f.svc.Get(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Empty(t, d.DescriptionLong)
}
