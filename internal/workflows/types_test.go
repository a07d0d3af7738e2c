package workflows

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/clip-bridge/internal/metrics"
	"github.com/tendant/clip-bridge/internal/queue"
)

// recordingWorkflow fails or panics for selected paths and signals every
// finished path on done.
type recordingWorkflow struct {
	mu     sync.Mutex
	paths  []string
	panics map[string]bool
	fails  map[string]bool
	done   chan string
}

func (w *recordingWorkflow) Name() string { return "recording" }

func (w *recordingWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	defer func() { w.done <- wctx.Path }()
	w.mu.Lock()
	w.paths = append(w.paths, wctx.Path)
	w.mu.Unlock()

	if w.panics[wctx.Path] {
		panic("corrupt file")
	}
	if w.fails[wctx.Path] {
		return &WorkflowResult{Outcome: metrics.OutcomeDownloadFailed}, ErrDownloadFailed
	}
	return &WorkflowResult{Success: true, Outcome: metrics.OutcomeSucceeded}, nil
}

func waitFor(t *testing.T, done <-chan string, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case p := <-done:
			got = append(got, p)
		case <-timeout:
			t.Fatalf("only %d of %d jobs finished", len(got), n)
		}
	}
	return got
}

func TestRunnerSurvivesFailingItems(t *testing.T) {
	wf := &recordingWorkflow{
		fails:  map[string]bool{"//depot/1.clip": true},
		panics: map[string]bool{"//depot/2.clip": true},
		done:   make(chan string, 10),
	}
	q := queue.NewMemory(10)
	runner := NewWorkflowRunner(wf, q, metrics.New(q.Len))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx, 1)

	for _, p := range []string{"//depot/1.clip", "//depot/2.clip", "//depot/3.clip"} {
		require.NoError(t, runner.Enqueue(ctx, p))
	}

	got := waitFor(t, wf.done, 3)
	assert.Equal(t, []string{"//depot/1.clip", "//depot/2.clip", "//depot/3.clip"}, got)

	q.Close()
	runner.Wait()
}

func TestRunnerMultipleWorkers(t *testing.T) {
	wf := &recordingWorkflow{done: make(chan string, 100)}
	q := queue.NewMemory(100)
	runner := NewWorkflowRunner(wf, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx, 4)

	for i := 0; i < 20; i++ {
		require.NoError(t, runner.Enqueue(ctx, "//depot/same.clip"))
	}

	got := waitFor(t, wf.done, 20)
	assert.Len(t, got, 20)

	q.Close()
	runner.Wait()
}

func TestRunnerStopsOnCancel(t *testing.T) {
	wf := &recordingWorkflow{done: make(chan string, 1)}
	q := queue.NewMemory(1)
	runner := NewWorkflowRunner(wf, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx, 2)
	cancel()

	stopped := make(chan struct{})
	go func() {
		runner.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop after cancel")
	}
}

func TestRunRecoversPanic(t *testing.T) {
	wf := &recordingWorkflow{panics: map[string]bool{"x.clip": true}, done: make(chan string, 1)}
	runner := NewWorkflowRunner(wf, queue.NewMemory(1), nil)

	var res *WorkflowResult
	require.NotPanics(t, func() { res = runner.Run(context.Background(), "x.clip") })
	assert.False(t, res.Success)
	assert.Equal(t, metrics.OutcomePanicked, res.Outcome)
}

type fakeRecorder struct {
	paths    []string
	outcomes map[string]string
	err      error
}

func (f *fakeRecorder) Record(ctx context.Context, path string) (int, error) {
	f.paths = append(f.paths, path)
	seen := 0
	for _, p := range f.paths {
		if p == path {
			seen++
		}
	}
	return seen, f.err
}

func (f *fakeRecorder) Finish(ctx context.Context, path, runID, outcome string, runErr error) error {
	if f.outcomes == nil {
		f.outcomes = map[string]string{}
	}
	f.outcomes[path] = outcome
	return f.err
}

func TestEnqueueFullQueue(t *testing.T) {
	q := queue.NewMemory(1)
	runner := NewWorkflowRunner(&recordingWorkflow{}, q, nil)
	rec := &fakeRecorder{err: errors.New("db down")}
	runner.recorder = rec

	require.NoError(t, runner.Enqueue(context.Background(), "a.clip"))
	assert.ErrorIs(t, runner.Enqueue(context.Background(), "b.clip"), queue.ErrQueueFull)
	// ledger failures never block queueing
	assert.Equal(t, []string{"a.clip", "b.clip"}, rec.paths)
	assert.False(t, runner.Durable())
}

func TestEnqueueCountsResubmissions(t *testing.T) {
	q := queue.NewMemory(4)
	m := metrics.New(q.Len)
	runner := NewWorkflowRunner(&recordingWorkflow{}, q, m)
	runner.recorder = &fakeRecorder{}

	require.NoError(t, runner.Enqueue(context.Background(), "a.clip"))
	require.NoError(t, runner.Enqueue(context.Background(), "b.clip"))
	require.NoError(t, runner.Enqueue(context.Background(), "a.clip"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "clip_bridge_files_resubmitted_total 1")
}

func TestFinishStoresOutcome(t *testing.T) {
	rec := &fakeRecorder{}
	runner := NewWorkflowRunner(&recordingWorkflow{}, nil, nil)
	runner.recorder = rec

	runner.finish(context.Background(), JobSummary{Path: "a.clip", RunID: "clip-1", Outcome: metrics.OutcomeExtractFailed}, errors.New("exit status 2"))
	assert.Equal(t, metrics.OutcomeExtractFailed, rec.outcomes["a.clip"])

	// recorder failures are logged, not returned
	rec.err = errors.New("db down")
	assert.NotPanics(t, func() {
		runner.finish(context.Background(), JobSummary{Path: "b.clip"}, nil)
	})
}
