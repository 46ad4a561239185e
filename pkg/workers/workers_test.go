package workers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcWorker struct {
	name string
	run  func(ctx context.Context) error
}

func (w funcWorker) Name() string                    { return w.name }
func (w funcWorker) Start(ctx context.Context) error { return w.run(ctx) }

func TestGroupCancelsOthersOnFailure(t *testing.T) {
	var stopped atomic.Bool

	g := Group{
		funcWorker{name: "failing", run: func(context.Context) error { return errors.New("boom") }},
		funcWorker{name: "waiting", run: func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Store(true)
			return nil
		}},
	}

	err := g.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: boom")
	assert.True(t, stopped.Load())
}

func TestGroupTurnsPanicIntoError(t *testing.T) {
	g := Group{
		funcWorker{name: "crashing", run: func(context.Context) error { panic("nil map") }},
		funcWorker{name: "waiting", run: func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}},
	}

	err := g.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "crashing: panic: nil map")
}

func TestGroupStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := Group{funcWorker{name: "idle", run: func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}}}

	done := make(chan error)
	go func() { done <- g.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("group did not stop")
	}
}

type countingCompactor struct{ calls atomic.Int32 }

func (c *countingCompactor) Compact(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestUsageSweeperCompactsPeriodically(t *testing.T) {
	compactor := &countingCompactor{}
	sweeper := NewUsageSweeper(compactor, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- sweeper.Start(ctx) }()

	assert.Eventually(t, func() bool { return compactor.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestUsageSweeperDefaultsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		sweeper := NewUsageSweeper(&countingCompactor{}, interval)
		assert.Equal(t, defaultSweepInterval, sweeper.interval)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, sweeper.Start(ctx))
	}
}

type countingRefresher struct{ calls atomic.Int32 }

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return errors.New("document locked")
}

func TestPremiumReloaderKeepsGoingAfterErrors(t *testing.T) {
	store := &countingRefresher{}
	reloader := NewPremiumReloader(store, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- reloader.Start(ctx) }()

	assert.Eventually(t, func() bool { return store.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestOpsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "brahmos_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	health := func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"status":"ok"}`)) }
	router := NewOpsRouter(health, reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "brahmos_test_total 1")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
