package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/internal/events"
	"newsdigest/internal/ingest"
	"newsdigest/internal/model"
	"newsdigest/internal/store"
)

type downStore struct{ store.Backend }

func (downStore) Ping(context.Context) error {
	return errors.New("store unavailable: dial tcp 10.0.0.1:5432: connection refused")
}

type recordingInvalidator struct {
	calls int
	err   error
}

func (r *recordingInvalidator) Invalidate(context.Context) error {
	r.calls++
	return r.err
}

type recordingNotifier struct {
	events []events.ArticlesIngested
	err    error
}

func (r *recordingNotifier) PublishIngested(_ context.Context, ev events.ArticlesIngested) error {
	r.events = append(r.events, ev)
	return r.err
}

type pipeline struct {
	mem      *store.Memory
	cache    *recordingInvalidator
	notifier *recordingNotifier
	statuses []string
	svc      *ingest.Service
}

func newPipeline(t *testing.T, fetcher ingest.SiteFetcher, sites []model.WebsiteConfig, backend store.Backend) *pipeline {
	t.Helper()
	p := &pipeline{
		mem:      store.NewMemory(),
		cache:    &recordingInvalidator{},
		notifier: &recordingNotifier{},
	}
	if backend == nil {
		backend = p.mem
	}
	ts := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	p.svc = ingest.NewService(
		sites,
		ingest.NewOrchestrator(fetcher, quietLogger(), ingest.WithSiteDelay(0)),
		store.NewWriter(backend, quietLogger(), store.WithClock(func() time.Time { return ts })),
		backend,
		quietLogger(),
		ingest.WithInvalidator(p.cache),
		ingest.WithNotifier(p.notifier),
		ingest.WithServiceClock(func() time.Time { return ts }),
		ingest.WithRunObserver(func(status string, _ time.Duration) { p.statuses = append(p.statuses, status) }),
	)
	return p
}

func TestIngest_Report(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{fail: map[string]bool{"B": true}}, threeSites(), nil)

	report, err := p.svc.Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Count)
	assert.Equal(t, 2, report.TotalFetched)
	assert.Equal(t, []string{"B"}, report.Failed)
	assert.Equal(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), report.Timestamp)
	require.Len(t, report.Articles, 2)
	assert.Equal(t, "2024-06-01", report.Articles[0].PublishedDate)
	assert.Equal(t, 2, p.mem.Len())

	assert.Equal(t, 1, p.cache.calls)
	require.Len(t, p.notifier.events, 1)
	assert.Equal(t, 2, p.notifier.events[0].Count)
	assert.Equal(t, []string{"A", "C"}, p.notifier.events[0].Sources)
	assert.Equal(t, []string{"ok"}, p.statuses)
}

func TestIngest_RepeatedRunIsIdempotent(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{}, threeSites(), nil)

	first, err := p.svc.Ingest(context.Background())
	require.NoError(t, err)
	second, err := p.svc.Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, p.mem.Len())
	for i := range first.Articles {
		assert.Equal(t, first.Articles[i].ID, second.Articles[i].ID)
	}
}

func TestIngest_AllSitesFailIsEmptyReport(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{fail: map[string]bool{"A": true, "B": true, "C": true}}, threeSites(), nil)

	report, err := p.svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Count)
	assert.NotNil(t, report.Articles)
	assert.Len(t, report.Failed, 3)
}

func TestIngest_StoreUnavailable(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := newPipeline(t, fetcher, threeSites(), downStore{})

	_, err := p.svc.Ingest(context.Background())
	require.Error(t, err)

	var pe *ingest.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ingest.KindStoreUnavailable, pe.Kind)
	assert.Empty(t, fetcher.calls, "no site is fetched when the store is down")
	assert.Equal(t, []string{"store_unavailable"}, p.statuses)
	assert.Zero(t, p.cache.calls)
}

func TestIngest_NoSites(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{}, nil, nil)

	_, err := p.svc.Ingest(context.Background())
	assert.ErrorIs(t, err, ingest.ErrNoSites)
	assert.Equal(t, ingest.KindConfig, ingest.KindOf(err))
}

func TestIngest_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &fakeFetcher{hook: func(string) { cancel() }}
	p := newPipeline(t, fetcher, threeSites(), nil)

	_, err := p.svc.Ingest(ctx)
	assert.Equal(t, ingest.KindCanceled, ingest.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.mem.Len())
}

func TestIngest_FollowUpFailuresAreNonFatal(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{}, threeSites(), nil)
	p.cache.err = errors.New("redis down")
	p.notifier.err = errors.New("redis down")

	report, err := p.svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ingest.KindInternal, ingest.KindOf(errors.New("boom")))
	wrapped := &ingest.PipelineError{Kind: ingest.KindConfig, Err: errors.New("x")}
	assert.Equal(t, ingest.KindConfig, ingest.KindOf(wrapped))
	assert.Equal(t, "ingest config: x", wrapped.Error())
}
