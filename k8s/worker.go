package k8s

import (
	"context"
	"errors"
	"sync"
	"time"

	"jabberwocky238/podrun/dblayer"

	"go.uber.org/zap"
)

const DefaultWorkerInterval = 2 * time.Second

// Runner executes a queued command line.
type Runner interface {
	RunToCompletion(ctx context.Context, command string) (*Result, error)
}

var (
	workerOnce   sync.Once
	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerDone   chan struct{}
)

// StartWorker starts the background run worker. Runs are taken one at a time
// in FIFO order, so at most one pod is in flight.
func StartWorker(runner Runner, interval time.Duration, logger *zap.Logger) {
	workerOnce.Do(func() {
		if interval <= 0 {
			interval = DefaultWorkerInterval
		}
		workerCtx, workerCancel = context.WithCancel(context.Background())
		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			runWorker(workerCtx, runner, interval, logger)
		}()
		logger.Info("Run worker started", zap.Duration("interval", interval))
	})
}

// WorkerRunning reports whether StartWorker has been called and the worker
// has not exited.
func WorkerRunning() bool {
	if workerDone == nil {
		return false
	}
	select {
	case <-workerDone:
		return false
	default:
		return true
	}
}

// StopWorker stops the run worker and waits for the current run to finish.
func StopWorker() {
	if workerCancel != nil {
		workerCancel()
		<-workerDone
	}
}

func runWorker(ctx context.Context, runner Runner, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Run worker stopped")
			return
		case <-ticker.C:
			processPendingRun(ctx, runner, logger)
		}
	}
}

// processPendingRun claims and executes one pending run. It reports whether
// a run was found.
func processPendingRun(ctx context.Context, runner Runner, logger *zap.Logger) bool {
	if dblayer.DB == nil {
		return false
	}

	run, err := dblayer.FetchPendingRun()
	if errors.Is(err, dblayer.ErrNotFound) {
		return false
	}
	if err != nil {
		logger.Error("Fetching pending run failed", zap.Error(err))
		return false
	}

	log := logger.With(zap.String("run", run.ID))
	log.Info("Processing run", zap.String("command", run.Command))

	// A claimed run always finishes so its pod is deleted, even during shutdown.
	res, err := runner.RunToCompletion(context.WithoutCancel(ctx), run.Command)
	if err != nil {
		log.Error("Run failed", zap.Error(err))
		if err := dblayer.MarkRunFailed(run.ID, err.Error()); err != nil {
			log.Error("Recording run failure failed", zap.Error(err))
		}
		return true
	}

	status := dblayer.RunStatusCompleted
	if res.Degraded() {
		status = dblayer.RunStatusDegraded
	}
	outcome := dblayer.RunOutcome{
		Status:   status,
		Phase:    string(res.Phase),
		Output:   res.Output,
		Warnings: res.WarningMessages(),
	}
	if res.Pod != nil {
		outcome.PodName = res.Pod.Name
		outcome.Namespace = res.Pod.Namespace
	}
	if err := dblayer.MarkRunFinished(run.ID, outcome); err != nil {
		log.Error("Recording run result failed", zap.Error(err))
	}
	log.Info("Run finished", zap.String("status", status), zap.String("phase", string(res.Phase)))
	return true
}
