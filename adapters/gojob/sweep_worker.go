package gojob

import (
	"context"
	"fmt"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-rewards/adapters/gologger"
	"github.com/goliatone/go-rewards/core"
)

// SweepExecutor runs the marker sweep job; the grants marker sweeper
// satisfies it.
type SweepExecutor interface {
	Execute(ctx context.Context, msg *core.JobExecutionMessage) error
}

const sweepTaskPath = "internal://rewards/markers/sweep"

// sweepTask registers the sweep executor under the sweep job id so the
// worker dispatches matching deliveries to it.
type sweepTask struct {
	executor SweepExecutor
}

func (t *sweepTask) GetID() string { return JobIDSweepMarkers }

func (t *sweepTask) GetHandler() func() error {
	return func() error {
		return t.Execute(context.Background(), nil)
	}
}

func (t *sweepTask) GetHandlerConfig() job.HandlerOptions { return job.HandlerOptions{} }

func (t *sweepTask) GetConfig() job.Config { return job.Config{} }

func (t *sweepTask) GetPath() string { return sweepTaskPath }

func (t *sweepTask) GetEngine() job.Engine { return nil }

func (t *sweepTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil || t.executor == nil {
		return fmt.Errorf("gojob: sweep executor is not configured")
	}
	return t.executor.Execute(ctx, FromExecutionMessage(msg))
}

var _ job.Task = (*sweepTask)(nil)

type sweepWorkerOptions struct {
	provider    glog.LoggerProvider
	logger      glog.Logger
	hook        core.JobWorkerHook
	concurrency int
}

type SweepWorkerOption func(*sweepWorkerOptions)

func WithSweepWorkerLogger(logger glog.Logger) SweepWorkerOption {
	return func(o *sweepWorkerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithSweepWorkerLoggerProvider(provider glog.LoggerProvider) SweepWorkerOption {
	return func(o *sweepWorkerOptions) {
		if provider != nil {
			o.provider = provider
		}
	}
}

func WithSweepWorkerHook(hook core.JobWorkerHook) SweepWorkerOption {
	return func(o *sweepWorkerOptions) {
		if hook != nil {
			o.hook = hook
		}
	}
}

func WithSweepWorkerConcurrency(concurrency int) SweepWorkerOption {
	return func(o *sweepWorkerOptions) {
		if concurrency > 0 {
			o.concurrency = concurrency
		}
	}
}

// NewSweepWorker builds a queue worker that consumes marker sweep jobs
// and runs them through the executor. Logging resolves with precedence
// provider > logger > nop, bridged onto the worker's logger contract.
func NewSweepWorker(
	dequeuer queue.Dequeuer,
	executor SweepExecutor,
	options ...SweepWorkerOption,
) (*worker.Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("gojob: sweep executor is required")
	}
	opts := sweepWorkerOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}

	workerOptions := []worker.Option{
		worker.WithLogger(gologger.JobLogger("rewards:sweeper", opts.provider, opts.logger)),
	}
	if opts.hook != nil {
		workerOptions = append(workerOptions, worker.WithHooks(NewWorkerHookAdapter(opts.hook)))
	}
	if opts.concurrency > 0 {
		workerOptions = append(workerOptions, worker.WithConcurrency(opts.concurrency))
	}

	sweepWorker := worker.NewWorker(dequeuer, workerOptions...)
	if err := sweepWorker.Register(&sweepTask{executor: executor}); err != nil {
		return nil, err
	}
	return sweepWorker, nil
}
