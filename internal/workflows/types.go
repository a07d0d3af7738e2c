package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/google/uuid"

	"github.com/tendant/clip-bridge/internal/dbosruntime"
	"github.com/tendant/clip-bridge/internal/metrics"
	"github.com/tendant/clip-bridge/internal/queue"
)

// WorkflowContext contains context for one job
type WorkflowContext struct {
	Ctx   context.Context
	Path  string
	RunID string
}

// WorkflowResult contains the result of one job
type WorkflowResult struct {
	Success bool
	Outcome string
	Error   error
	Outputs map[string]interface{}
}

// Workflow processes a single depot path
type Workflow interface {
	// Execute runs the workflow
	Execute(wctx *WorkflowContext) (*WorkflowResult, error)

	// Name returns the workflow name
	Name() string
}

// Recorder notes every path handed to the runner and how its run ended
type Recorder interface {
	Record(ctx context.Context, path string) (int, error)
	Finish(ctx context.Context, path, runID, outcome string, runErr error) error
}

// JobSummary is the serializable outcome of a durable job
type JobSummary struct {
	Path    string `json:"path"`
	RunID   string `json:"run_id"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// WorkflowRunner feeds queued paths to the workflow. By default paths go
// through an in-memory queue drained by a worker pool; with a DBOS runtime
// each path becomes a durable DBOS workflow instead.
type WorkflowRunner struct {
	workflow    Workflow
	queue       *queue.Memory
	dbosRuntime *dbosruntime.Runtime
	recorder    Recorder
	metrics     *metrics.Metrics
	wg          sync.WaitGroup
}

// NewWorkflowRunner creates a runner over an in-memory queue
func NewWorkflowRunner(workflow Workflow, q *queue.Memory, m *metrics.Metrics) *WorkflowRunner {
	return &WorkflowRunner{
		workflow: workflow,
		queue:    q,
		metrics:  m,
	}
}

// NewDurableWorkflowRunner creates a runner that enqueues on DBOS. It must be
// called before the runtime is launched so the workflow is registered.
func NewDurableWorkflowRunner(workflow Workflow, dbosRuntime *dbosruntime.Runtime, recorder Recorder, m *metrics.Metrics) *WorkflowRunner {
	runner := &WorkflowRunner{
		workflow:    workflow,
		dbosRuntime: dbosRuntime,
		recorder:    recorder,
		metrics:     m,
	}

	// Register the DBOS workflow function
	dbos.RegisterWorkflow(dbosRuntime.Context(), runner.executeWorkflowDBOS)

	return runner
}

// Durable reports whether jobs are persisted by DBOS
func (r *WorkflowRunner) Durable() bool {
	return r.dbosRuntime != nil
}

// Enqueue hands a path to the workers without waiting for it to be processed
func (r *WorkflowRunner) Enqueue(ctx context.Context, path string) error {
	if r.recorder != nil {
		seen, err := r.recorder.Record(ctx, path)
		if err != nil {
			slog.Warn("Failed to record path in ledger", "path", path, "err", err)
		} else if seen > 1 {
			slog.Info("Path queued again", "path", path, "seen_count", seen)
			r.metrics.FileResubmitted()
		}
	}

	if r.dbosRuntime == nil {
		return r.queue.Push(path)
	}

	workflowID := fmt.Sprintf("clip-%s", uuid.New().String())
	_, err := dbos.RunWorkflow[string, JobSummary](
		r.dbosRuntime.Context(),
		r.executeWorkflowDBOS,
		path,
		dbos.WithWorkflowID(workflowID),
		dbos.WithQueue(r.dbosRuntime.QueueName()),
	)
	return err
}

// Start launches workers consumers of the in-memory queue. They stop when
// ctx is done or the queue is closed and drained. In durable mode DBOS runs
// the jobs and Start does nothing.
func (r *WorkflowRunner) Start(ctx context.Context, workers int) {
	if r.dbosRuntime != nil {
		return
	}
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func(id int) {
			defer r.wg.Done()
			r.work(ctx, id)
		}(i)
	}
	slog.Info("Workers started", "workers", workers, "workflow", r.workflow.Name())
}

// Wait blocks until every worker started by Start has returned
func (r *WorkflowRunner) Wait() {
	r.wg.Wait()
}

func (r *WorkflowRunner) work(ctx context.Context, id int) {
	for {
		path, err := r.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				slog.Error("Worker stopped", "worker", id, "err", err)
			}
			return
		}
		// In-flight jobs are not cancelled by shutdown.
		r.Run(context.WithoutCancel(ctx), path)
	}
}

// Run executes the workflow for path. Errors and panics are logged and
// never escape, so a bad item cannot stop the worker loop.
func (r *WorkflowRunner) Run(ctx context.Context, path string) (res *WorkflowResult) {
	runID := uuid.New().String()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Workflow panicked", "run_id", runID, "path", path, "panic", p, "stack", string(debug.Stack()))
			r.metrics.JobFinished(metrics.OutcomePanicked)
			res = &WorkflowResult{
				Success: false,
				Outcome: metrics.OutcomePanicked,
				Error:   fmt.Errorf("workflow panicked: %v", p),
			}
		}
	}()

	wctx := &WorkflowContext{
		Ctx:   ctx,
		Path:  path,
		RunID: runID,
	}

	res, err := r.workflow.Execute(wctx)
	if res == nil {
		res = &WorkflowResult{Success: err == nil, Error: err, Outcome: metrics.OutcomeSucceeded}
		if err != nil {
			res.Outcome = metrics.OutcomePublishFailed
		}
	}
	if res.Outputs == nil {
		res.Outputs = map[string]interface{}{}
	}
	res.Outputs["run_id"] = runID
	r.metrics.JobFinished(res.Outcome)

	if err != nil {
		slog.Warn("Workflow completed with errors", "run_id", runID, "path", path, "outcome", res.Outcome, "err", err)
	} else {
		slog.Info("Workflow completed successfully", "run_id", runID, "path", path)
	}
	return res
}

// executeWorkflowDBOS is the DBOS workflow function wrapping Run. It never
// returns an error so DBOS does not treat a failed item as retryable.
func (r *WorkflowRunner) executeWorkflowDBOS(dbosCtx dbos.DBOSContext, path string) (JobSummary, error) {
	res := r.Run(dbosCtx, path)

	summary := JobSummary{Path: path, Outcome: res.Outcome}
	if workflowID, err := dbosCtx.GetWorkflowID(); err == nil {
		summary.RunID = workflowID
	} else if runID, ok := res.Outputs["run_id"].(string); ok {
		summary.RunID = runID
	}
	if res.Error != nil {
		summary.Error = res.Error.Error()
	}
	r.finish(dbosCtx, summary, res.Error)
	return summary, nil
}

// finish stores the outcome in the recorder, if any
func (r *WorkflowRunner) finish(ctx context.Context, summary JobSummary, runErr error) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Finish(context.WithoutCancel(ctx), summary.Path, summary.RunID, summary.Outcome, runErr); err != nil {
		slog.Warn("Failed to store outcome in ledger", "path", summary.Path, "err", err)
	}
}
