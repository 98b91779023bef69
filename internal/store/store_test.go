package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.SetClock(func() time.Time { return now })
	return s
}

func TestSavePostAndGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	ctx := context.Background()

	rec := &types.PostRecord{Text: "hello", Topic: "go", Persona: "tech", Sent: true, RemoteID: "123"}
	require.NoError(t, s.SavePost(ctx, rec))
	assert.NotZero(t, rec.ID)
	assert.Equal(t, types.OriginAuto, rec.Origin)

	got, err := s.GetPost(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.True(t, got.Sent)
	assert.Equal(t, now, got.CreatedAt)

	_, err = s.GetPost(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPostsFiltersAndPaging(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		rec := &types.PostRecord{
			Text:      "p",
			Sent:      i%5 != 0,
			Origin:    types.OriginAuto,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		if i%10 == 0 {
			rec.Origin = types.OriginManual
		}
		require.NoError(t, s.SavePost(ctx, rec))
	}

	page, err := s.ListPosts(ctx, FilterAll, 1)
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Posts, PageSize)
	assert.True(t, page.Posts[0].CreatedAt.After(page.Posts[1].CreatedAt), "newest first")

	page, err = s.ListPosts(ctx, FilterAll, 2)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 5)

	failed, err := s.ListPosts(ctx, FilterFailed, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, failed.Total)

	manual, err := s.ListPosts(ctx, ParseFilter("manual"), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, manual.Total)

	assert.Equal(t, FilterAll, ParseFilter("bogus"))
}

func TestMarkRetried(t *testing.T) {
	s := newTestStore(t, time.Now())
	ctx := context.Background()

	rec := &types.PostRecord{Text: "retry me", Error: "503"}
	require.NoError(t, s.SavePost(ctx, rec))

	require.NoError(t, s.MarkRetried(ctx, rec.ID, "", errors.New("still down")))
	got, err := s.GetPost(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.Sent)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "still down", got.Error)

	require.NoError(t, s.MarkRetried(ctx, rec.ID, "tw-1", nil))
	got, err = s.GetPost(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Sent)
	assert.Equal(t, "tw-1", got.RemoteID)
	assert.Empty(t, got.Error)
	assert.Equal(t, 2, got.RetryCount)

	assert.ErrorIs(t, s.MarkRetried(ctx, rec.ID, "tw-2", nil), ErrAlreadySent)
	assert.ErrorIs(t, s.MarkRetried(ctx, 4242, "", nil), ErrNotFound)
}

func TestDeleteAndClear(t *testing.T) {
	s := newTestStore(t, time.Now())
	ctx := context.Background()

	a := &types.PostRecord{Text: "a"}
	b := &types.PostRecord{Text: "b"}
	require.NoError(t, s.SavePost(ctx, a))
	require.NoError(t, s.SavePost(ctx, b))

	require.NoError(t, s.DeletePost(ctx, a.ID))
	assert.ErrorIs(t, s.DeletePost(ctx, a.ID), ErrNotFound)

	n, err := s.ClearPosts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStatsToday(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2026, 3, 2, 1, 30, 0, 0, loc) // 22:30 UTC on Mar 1
	s := newTestStore(t, now)
	ctx := context.Background()

	require.NoError(t, s.SavePost(ctx, &types.PostRecord{Text: "yesterday local", Sent: true,
		CreatedAt: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}))
	require.NoError(t, s.SavePost(ctx, &types.PostRecord{Text: "today local", Sent: false,
		CreatedAt: time.Date(2026, 3, 1, 21, 30, 0, 0, time.UTC)}))

	st, err := s.Stats(ctx, now, loc)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Sent)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Today)
	require.NotNil(t, st.LastPost)
	assert.Equal(t, "today local", st.LastPost.Text)
}

func TestAnalytics(t *testing.T) {
	now := time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	ctx := context.Background()

	save := func(day, hour int, sent bool, persona, topic string) {
		require.NoError(t, s.SavePost(ctx, &types.PostRecord{
			Text: "x", Sent: sent, Persona: persona, Topic: topic,
			CreatedAt: time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC),
		}))
	}
	save(1, 9, true, "tech", "golang")
	save(3, 9, true, "tech", "golang")
	save(3, 10, false, "sad", "quake")
	save(-8, 9, true, "casual", "too old") // Feb 20, before the window

	a, err := s.Analytics(ctx, now, time.UTC, 3)
	require.NoError(t, err)
	require.Len(t, a.Days, 3)
	assert.Equal(t, "2026-03-01", a.Days[0].Date)
	assert.Equal(t, 1, a.Days[0].Total)
	assert.Equal(t, 2, a.Days[2].Total)
	assert.InDelta(t, 0.5, a.Days[2].Rate, 1e-9)
	assert.Equal(t, 2, a.Hourly[9])
	assert.Equal(t, []Bucket{{"tech", 2}, {"sad", 1}}, a.Personas[:2])
	assert.Equal(t, "golang", a.Topics[0].Label)
}

func TestPromptsCRUD(t *testing.T) {
	s := newTestStore(t, time.Now())
	ctx := context.Background()

	prompts, err := s.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 3)

	active, err := s.ActivePrompts(ctx)
	require.NoError(t, err)
	assert.Contains(t, active["tech"], "{persona_name}")

	p, err := s.UpsertPrompt(ctx, "tech", "new tech text", "")
	require.NoError(t, err)
	assert.Equal(t, "new tech text", p.Text)
	assert.Equal(t, "Technology, science and product news", p.Description)

	p, err = s.TogglePrompt(ctx, "tech")
	require.NoError(t, err)
	assert.False(t, p.Active)
	active, err = s.ActivePrompts(ctx)
	require.NoError(t, err)
	assert.NotContains(t, active, "tech")

	_, err = s.UpsertPrompt(ctx, "Sports", "sports text", "ball games")
	require.NoError(t, err)
	_, err = s.GetPrompt(ctx, "sports")
	require.NoError(t, err)

	require.NoError(t, s.DeletePrompt(ctx, "sports"))
	assert.ErrorIs(t, s.DeletePrompt(ctx, "sports"), ErrNotFound)
	_, err = s.TogglePrompt(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersonaSettings(t *testing.T) {
	s := newTestStore(t, time.Now())
	ctx := context.Background()

	values, err := s.PersonaSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25", values["persona_age"])

	ps, err := s.UpdatePersonaSetting(ctx, "persona_age", "30")
	require.NoError(t, err)
	assert.Equal(t, "30", ps.Value)

	_, err = s.UpdatePersonaSetting(ctx, "shoe_size", "44")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedKeepsOperatorEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tp.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	_, err = s.UpsertPrompt(ctx, "casual", "edited", "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	p, err := s.GetPrompt(ctx, "casual")
	require.NoError(t, err)
	assert.Equal(t, "edited", p.Text)
}

func TestTopicCacheTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	ctx := context.Background()
	cache := s.TopicCache()

	require.NoError(t, cache.Set(ctx, "golang", types.CategoryTech, time.Hour))
	cat, ok, err := cache.Get(ctx, "golang")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.CategoryTech, cat)

	s.SetClock(func() time.Time { return now.Add(2 * time.Hour) })
	_, ok, err = cache.Get(ctx, "golang")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := cache.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestArtifacts(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	path, err := SaveLLMExchange(LLMExchange{Kind: "classify", Prompt: "p", Response: "tech"})
	require.NoError(t, err)

	latest, err := LatestArtifact(StepLLM)
	require.NoError(t, err)
	assert.Equal(t, path, latest)

	ex, err := LoadArtifact[LLMExchange](latest)
	require.NoError(t, err)
	assert.Equal(t, "tech", ex.Response)

	_, err = LatestArtifact(StepTrends)
	assert.Error(t, err)
}

func TestExportImport(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := newTestStore(t, now)
	ctx := context.Background()

	require.NoError(t, src.SavePost(ctx, &types.PostRecord{Text: "ilk", Persona: "tech", Sent: true, RemoteID: "9"}))
	require.NoError(t, src.SavePost(ctx, &types.PostRecord{Text: "ikinci", Origin: types.OriginManual, Error: "403"}))
	_, err := src.UpsertPrompt(ctx, "tech", "You are {persona_name}. {topic}", "edited")
	require.NoError(t, err)
	_, err = src.UpdatePersonaSetting(ctx, "persona_age", "31")
	require.NoError(t, err)
	require.NoError(t, src.TopicCache().Set(ctx, "galatasaray", types.CategoryCasual, time.Hour))

	dump, err := src.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, DumpVersion, dump.Version)
	assert.Equal(t, now, dump.ExportedAt)
	require.Len(t, dump.Posts, 2)
	require.Len(t, dump.Topics, 1)
	assert.Equal(t, now.Add(time.Hour), dump.Topics[0].ExpiresAt)

	dst := newTestStore(t, now)
	res, err := dst.Import(ctx, dump)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, 1, res.Topics)

	got, err := dst.GetPost(ctx, dump.Posts[1].ID)
	require.NoError(t, err)
	assert.Equal(t, dump.Posts[1], *got)

	p, err := dst.GetPrompt(ctx, "tech")
	require.NoError(t, err)
	assert.Equal(t, "You are {persona_name}. {topic}", p.Text)
	values, err := dst.PersonaSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "31", values["persona_age"])
	cat, ok, err := dst.TopicCache().Get(ctx, "galatasaray")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.CategoryCasual, cat)

	// importing the same backup again only skips posts
	res, err = dst.Import(ctx, dump)
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
	assert.Equal(t, 2, res.Skipped)

	next := &types.PostRecord{Text: "üçüncü"}
	require.NoError(t, dst.SavePost(ctx, next))
	assert.Greater(t, next.ID, dump.Posts[1].ID)
}

func TestImportIsAtomic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	ctx := context.Background()

	_, err := s.Import(ctx, &Dump{})
	assert.ErrorIs(t, err, ErrInvalidDump)

	_, err = s.Import(ctx, &Dump{
		Version: DumpVersion,
		Posts:   []types.PostRecord{{Text: "geçerli"}, {Text: "  "}},
	})
	assert.ErrorIs(t, err, ErrInvalidDump)

	_, err = s.Import(ctx, &Dump{
		Version: DumpVersion,
		Posts:   []types.PostRecord{{Text: "geçerli"}},
		Topics:  []CachedTopic{{Topic: "x", Persona: "politics", ExpiresAt: now.Add(time.Hour)}},
	})
	assert.ErrorIs(t, err, ErrInvalidDump)

	stats, err := s.Stats(ctx, now, time.UTC)
	require.NoError(t, err)
	assert.Zero(t, stats.Total, "failed imports leave no rows behind")

	res, err := s.Import(ctx, &Dump{
		Posts:  []types.PostRecord{},
		Topics: []CachedTopic{{Topic: "eski", Persona: types.CategoryTech, ExpiresAt: now.Add(-time.Minute)}},
	})
	require.NoError(t, err)
	assert.Zero(t, res.Topics, "expired entries are dropped")
}
