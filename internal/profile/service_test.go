package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stylisten/stylisten/internal/db"
	"github.com/stylisten/stylisten/internal/spotify"
	"github.com/stylisten/stylisten/internal/styles"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeAccounts struct {
	account  *db.Account
	lastSync time.Time
	syncSets int
}

func (f *fakeAccounts) Get(ctx context.Context, userID uuid.UUID) (*db.Account, error) {
	if f.account == nil || f.account.UserID != userID {
		return nil, db.ErrNotFound
	}
	// copy, the service mutates the account in place
	acct := *f.account
	return &acct, nil
}

func (f *fakeAccounts) UpdateLastSync(ctx context.Context, userID uuid.UUID, syncTime time.Time) error {
	f.lastSync = syncTime
	f.syncSets++
	return nil
}

type fakePlays struct {
	stored   []db.PlayEvent
	upserted []db.PlayEvent
	findErr  error
	pruned   int64
}

func (f *fakePlays) UpsertBatch(ctx context.Context, events []db.PlayEvent) error {
	f.upserted = append(f.upserted, events...)
	f.stored = append(f.stored, events...)
	return nil
}

func (f *fakePlays) FindBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]db.PlayEvent, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []db.PlayEvent
	for _, e := range f.stored {
		if e.UserID == userID && !e.PlayedAt.Before(from) && e.PlayedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakePlays) DeleteBefore(ctx context.Context, userID uuid.UUID, cutoff time.Time) (int64, error) {
	var kept []db.PlayEvent
	for _, e := range f.stored {
		if e.UserID == userID && e.PlayedAt.Before(cutoff) {
			f.pruned++
			continue
		}
		kept = append(kept, e)
	}
	f.stored = kept
	return f.pruned, nil
}

type fakeStats struct {
	rows     []db.GenreStat
	replaces int
	latest   []db.GenreStat
}

// Replace mirrors the repository: all of the user's rows go, then the
// new set lands.
func (f *fakeStats) Replace(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time, stats []db.GenreStat) error {
	f.replaces++
	var kept []db.GenreStat
	for _, r := range f.rows {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	f.rows = append(kept, stats...)
	return nil
}

func (f *fakeStats) FindLatest(ctx context.Context, userID uuid.UUID) ([]db.GenreStat, error) {
	return f.latest, nil
}

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) EnsureFreshToken(ctx context.Context, account *db.Account) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakeSpotify struct {
	items      []spotify.PlayHistoryItem
	historyErr error
	fetches    int
}

func (f *fakeSpotify) RecentlyPlayed(ctx context.Context, accessToken string, after time.Time, pageSize, maxItems int) ([]spotify.PlayHistoryItem, error) {
	f.fetches++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.items, nil
}

func (f *fakeSpotify) Artist(ctx context.Context, accessToken, artistID string) (*spotify.Artist, error) {
	return &spotify.Artist{ID: artistID, Genres: nil}, nil
}

type fakeMatcher struct {
	matches []styles.Match
	got     []styles.GenreScore
}

func (f *fakeMatcher) Match(ctx context.Context, topGenres []styles.GenreScore) ([]styles.Match, error) {
	f.got = topGenres
	return f.matches, nil
}

type fixture struct {
	accounts *fakeAccounts
	plays    *fakePlays
	stats    *fakeStats
	tokens   *fakeTokens
	api      *fakeSpotify
	matcher  *fakeMatcher
	svc      *Service
	userID   uuid.UUID
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userID := uuid.New()
	f := &fixture{
		accounts: &fakeAccounts{account: &db.Account{
			UserID:       userID,
			AccessToken:  "token",
			RefreshToken: "refresh",
		}},
		plays:   &fakePlays{},
		stats:   &fakeStats{},
		tokens:  &fakeTokens{token: "token"},
		api:     &fakeSpotify{},
		matcher: &fakeMatcher{},
		userID:  userID,
		now:     fixedNow,
	}
	f.svc = NewService(f.accounts, f.plays, f.stats, f.tokens, f.api, f.matcher,
		Config{}, WithClock(func() time.Time { return f.now }))
	return f
}

func historyItem(trackID string, playedAgo time.Duration, genres ...string) spotify.PlayHistoryItem {
	return spotify.PlayHistoryItem{
		Track: spotify.Track{
			ID:      trackID,
			Name:    "track " + trackID,
			Artists: []spotify.Artist{{ID: "a-" + trackID, Name: "artist", Genres: genres}},
		},
		PlayedAt: fixedNow.Add(-playedAgo),
	}
}

func TestGenerateNoLinkedAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Generate(context.Background(), uuid.New(), false)
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("Generate() error = %v, want ErrProfileNotFound", err)
	}
}

func TestGenerateFullPipeline(t *testing.T) {
	f := newFixture(t)
	f.api.items = []spotify.PlayHistoryItem{
		historyItem("t1", time.Hour, "Rock"),
		historyItem("t2", 2*time.Hour, "rock"),
		historyItem("t3", 3*time.Hour, "jazz"),
	}
	f.matcher.matches = []styles.Match{{Name: "grunge", Confidence: 1.0}}

	p, err := f.svc.Generate(context.Background(), f.userID, false)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(f.plays.upserted) != 3 {
		t.Errorf("persisted %d play events, want 3", len(f.plays.upserted))
	}
	if f.stats.replaces != 1 {
		t.Errorf("stats replaced %d times, want 1", f.stats.replaces)
	}
	if f.accounts.syncSets != 1 {
		t.Errorf("last sync recorded %d times, want 1", f.accounts.syncSets)
	}

	if len(p.TopGenres) != 2 {
		t.Fatalf("top genres = %v, want rock and jazz", p.TopGenres)
	}
	if p.TopGenres[0].Genre != "rock" || p.TopGenres[0].Score != 10.0 {
		t.Errorf("top genre = %+v, want rock at 10.0", p.TopGenres[0])
	}
	if p.TopGenres[1].Genre != "jazz" || p.TopGenres[1].Score != 5.0 {
		t.Errorf("second genre = %+v, want jazz at 5.0", p.TopGenres[1])
	}

	if len(f.matcher.got) != 2 {
		t.Errorf("matcher fed %d genres, want 2", len(f.matcher.got))
	}
	if len(p.MatchingStyles) != 1 || p.MatchingStyles[0].Name != "grunge" {
		t.Errorf("matching styles = %v, want grunge", p.MatchingStyles)
	}
	if !p.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v, want %v", p.GeneratedAt, fixedNow)
	}
}

func TestGenerateEmptyHistory(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Generate(context.Background(), f.userID, false)
	if err != nil {
		t.Fatalf("Generate() error = %v, want empty profile without error", err)
	}
	if len(p.TopGenres) != 0 {
		t.Errorf("top genres = %v, want empty", p.TopGenres)
	}
	if p.MatchingStyles == nil || len(p.MatchingStyles) != 0 {
		t.Errorf("matching styles = %#v, want empty non-nil slice", p.MatchingStyles)
	}
	// The empty result still replaces the period's stats.
	if f.stats.replaces != 1 {
		t.Errorf("stats replaced %d times, want 1", f.stats.replaces)
	}
}

func TestGenerateSkipsFreshSync(t *testing.T) {
	f := newFixture(t)
	lastSync := fixedNow.Add(-time.Hour) // inside the 6h TTL
	f.accounts.account.LastSyncAt = &lastSync

	if _, err := f.svc.Generate(context.Background(), f.userID, false); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if f.api.fetches != 0 {
		t.Errorf("history fetched %d times with a fresh sync, want 0", f.api.fetches)
	}
	if f.tokens.calls != 0 {
		t.Errorf("token refreshed %d times with a fresh sync, want 0", f.tokens.calls)
	}
}

func TestGenerateForceOverridesTTL(t *testing.T) {
	f := newFixture(t)
	lastSync := fixedNow.Add(-time.Hour)
	f.accounts.account.LastSyncAt = &lastSync

	if _, err := f.svc.Generate(context.Background(), f.userID, true); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if f.api.fetches != 1 {
		t.Errorf("history fetched %d times with force, want 1", f.api.fetches)
	}
}

func TestGenerateStaleSyncRuns(t *testing.T) {
	f := newFixture(t)
	lastSync := fixedNow.Add(-7 * time.Hour) // past the 6h TTL
	f.accounts.account.LastSyncAt = &lastSync

	if _, err := f.svc.Generate(context.Background(), f.userID, false); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if f.api.fetches != 1 {
		t.Errorf("history fetched %d times with a stale sync, want 1", f.api.fetches)
	}
	if !f.accounts.lastSync.Equal(fixedNow) {
		t.Errorf("last sync = %v, want %v", f.accounts.lastSync, fixedNow)
	}
}

func TestGenerateTokenErrorPropagates(t *testing.T) {
	f := newFixture(t)
	wantErr := errors.New("authorization expired")
	f.tokens.err = wantErr

	_, err := f.svc.Generate(context.Background(), f.userID, false)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Generate() error = %v, want token error unchanged", err)
	}
}

func TestGenerateSyncTimeout(t *testing.T) {
	f := newFixture(t)
	f.api.historyErr = context.DeadlineExceeded

	_, err := f.svc.Generate(context.Background(), f.userID, false)
	if !errors.Is(err, ErrSyncTimeout) {
		t.Fatalf("Generate() error = %v, want ErrSyncTimeout", err)
	}
}

func TestGenerateUpstreamErrorNotTimeout(t *testing.T) {
	f := newFixture(t)
	wantErr := errors.New("bad gateway")
	f.api.historyErr = wantErr

	_, err := f.svc.Generate(context.Background(), f.userID, false)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Generate() error = %v, want upstream error", err)
	}
	if errors.Is(err, ErrSyncTimeout) {
		t.Error("upstream error mapped to ErrSyncTimeout")
	}
}

func TestGenerateSupersedesPriorStats(t *testing.T) {
	f := newFixture(t)
	f.api.items = []spotify.PlayHistoryItem{historyItem("t1", time.Hour, "rock")}

	if _, err := f.svc.Generate(context.Background(), f.userID, true); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	f.now = f.now.Add(time.Minute)
	if _, err := f.svc.Generate(context.Background(), f.userID, true); err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}

	if f.stats.replaces != 2 {
		t.Errorf("stats replaced %d times, want 2", f.stats.replaces)
	}

	// The second generation's period shifts by a minute; the first set
	// must still be gone, not stacked next to the new one.
	periods := make(map[time.Time]struct{})
	for _, r := range f.stats.rows {
		periods[r.PeriodEnd] = struct{}{}
	}
	if len(periods) != 1 {
		t.Fatalf("stored %d stat sets after regenerating, want 1", len(periods))
	}
	for _, r := range f.stats.rows {
		if !r.PeriodEnd.Equal(f.now) {
			t.Errorf("surviving period end = %v, want %v", r.PeriodEnd, f.now)
		}
	}
}

func TestSyncPrunesEventsPastLookback(t *testing.T) {
	f := newFixture(t)
	f.plays.stored = []db.PlayEvent{
		{UserID: f.userID, TrackID: "ancient", PlayedAt: fixedNow.Add(-40 * 24 * time.Hour)},
	}

	if _, err := f.svc.Generate(context.Background(), f.userID, true); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if f.plays.pruned != 1 {
		t.Errorf("pruned %d events, want 1", f.plays.pruned)
	}
}

func TestGetFromStoredStats(t *testing.T) {
	f := newFixture(t)
	f.stats.latest = []db.GenreStat{
		{UserID: f.userID, GenreName: "rock", RawCount: 8, NormalizedScore: 10},
		{UserID: f.userID, GenreName: "jazz", RawCount: 2, NormalizedScore: 2.5},
	}
	f.matcher.matches = []styles.Match{{Name: "grunge"}}

	p, err := f.svc.Get(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if f.api.fetches != 0 {
		t.Errorf("Get() fetched history %d times, want 0", f.api.fetches)
	}
	if len(p.TopGenres) != 2 || p.TopGenres[0].Genre != "rock" {
		t.Errorf("top genres = %v, want rock first", p.TopGenres)
	}
	if len(p.MatchingStyles) != 1 {
		t.Errorf("matching styles = %v, want grunge", p.MatchingStyles)
	}
}

func TestGetWithoutStoredStats(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), f.userID)
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("Get() error = %v, want ErrProfileNotFound", err)
	}
}

func TestGenerateExcludesPlaysOutsideLookback(t *testing.T) {
	f := newFixture(t)
	f.plays.stored = []db.PlayEvent{
		{UserID: f.userID, TrackID: "old", PlayedAt: fixedNow.Add(-31 * 24 * time.Hour), Genres: []string{"disco"}},
		{UserID: f.userID, TrackID: "recent", PlayedAt: fixedNow.Add(-time.Hour), Genres: []string{"rock"}},
	}
	lastSync := fixedNow.Add(-time.Minute)
	f.accounts.account.LastSyncAt = &lastSync

	p, err := f.svc.Generate(context.Background(), f.userID, false)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(p.TopGenres) != 1 || p.TopGenres[0].Genre != "rock" {
		t.Errorf("top genres = %v, want only rock inside the window", p.TopGenres)
	}
}
