package k8s

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"jabberwocky238/podrun/manifest"
	"jabberwocky238/podrun/progress"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultPollTimeout  = 10 * time.Minute
)

// Phase is the pod phase as last observed by the Controller.
type Phase string

const (
	PhasePending   Phase = "Pending"
	PhaseRunning   Phase = "Running"
	PhaseSucceeded Phase = "Succeeded"
	PhaseFailed    Phase = "Failed"
	PhaseUnknown   Phase = "Unknown"
)

// phaseOf maps a pod's status to a Phase. A freshly created pod has no phase
// yet and counts as Pending.
func phaseOf(pod *corev1.Pod) Phase {
	switch pod.Status.Phase {
	case "", corev1.PodPending:
		return PhasePending
	case corev1.PodRunning:
		return PhaseRunning
	case corev1.PodSucceeded:
		return PhaseSucceeded
	case corev1.PodFailed:
		return PhaseFailed
	default:
		return PhaseUnknown
	}
}

// WorkloadHandle refers to a pod created by Submit.
type WorkloadHandle struct {
	Name      string
	Namespace string
	UID       types.UID
}

func (h *WorkloadHandle) String() string {
	return h.Namespace + "/" + h.Name
}

// Result is what a run collected. Warnings holds the absorbed failures
// (*LogStreamError, *DeletionError, ErrPollTimeout); an empty list means the
// run completed cleanly.
type Result struct {
	Pod      *WorkloadHandle
	Output   string
	Phase    Phase
	Deleted  bool
	Warnings []error
}

// Degraded reports whether any part of the run failed after submission.
func (r *Result) Degraded() bool {
	return len(r.Warnings) > 0
}

// WarningMessages returns the warnings as strings.
func (r *Result) WarningMessages() []string {
	msgs := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		msgs = append(msgs, w.Error())
	}
	return msgs
}

func (r *Result) warn(err error) {
	r.Warnings = append(r.Warnings, err)
}

// ProgressFunc receives every log line that carries a percentage.
type ProgressFunc func(h *WorkloadHandle, percent float64, line string)

type ControllerConfig struct {
	// Builder resolves command lines for RunToCompletion.
	Builder *manifest.Builder

	Logger *zap.Logger

	// PollInterval is the delay between status reads while the pod is Pending.
	PollInterval time.Duration

	// PollTimeout bounds the time spent waiting for the pod to leave Pending.
	PollTimeout time.Duration

	// OnProgress is called for each line with a percentage. When nil the
	// percentage is logged.
	OnProgress ProgressFunc
}

// Controller drives a single pod through create, wait, stream and delete.
// Calls block until the step they perform has finished.
type Controller struct {
	api    PodAPI
	conf   ControllerConfig
	logger *zap.Logger
}

func NewController(api PodAPI, conf ControllerConfig) *Controller {
	if conf.Builder == nil {
		conf.Builder = &manifest.Builder{}
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	if conf.PollInterval <= 0 {
		conf.PollInterval = DefaultPollInterval
	}
	if conf.PollTimeout <= 0 {
		conf.PollTimeout = DefaultPollTimeout
	}

	c := &Controller{api: api, conf: conf, logger: conf.Logger}
	if c.conf.OnProgress == nil {
		c.conf.OnProgress = c.logProgress
	}
	return c
}

// Submit creates the pod described by spec.
func (c *Controller) Submit(ctx context.Context, spec *manifest.WorkloadSpec) (*WorkloadHandle, error) {
	log := c.podLogger(spec.Namespace, spec.Name)
	log.Info("Creating pod", zap.String("image", spec.Image))

	created, err := c.api.Create(ctx, spec.Pod())
	if err != nil {
		submissionErrors.Inc()
		log.Error("Pod creation rejected", zap.Error(err))
		return nil, &SubmissionError{Namespace: spec.Namespace, Name: spec.Name, Err: err}
	}
	podsSubmitted.Inc()

	h := &WorkloadHandle{Name: spec.Name, Namespace: spec.Namespace}
	if created != nil {
		h.UID = created.UID
	}
	log.Info("Pod created", zap.String("uid", string(h.UID)))
	return h, nil
}

// StreamLogs waits for the pod to leave Pending, then follows its log until
// the stream ends, and deletes the pod if deleteAfter is set. Failures after
// submission do not abort the call; they are logged and returned as warnings
// alongside whatever output was read.
//
// Logs are streamed whatever phase the pod reaches, Failed included.
func (c *Controller) StreamLogs(ctx context.Context, h *WorkloadHandle, deleteAfter bool) *Result {
	res := &Result{Pod: h, Phase: PhasePending}

	phase, err := c.waitForStart(ctx, h)
	res.Phase = phase
	if err != nil {
		res.warn(err)
	} else {
		output, err := c.readLogs(ctx, h)
		res.Output = output
		if err != nil {
			res.warn(err)
		}
	}

	if deleteAfter {
		if err := c.deletePod(ctx, h); err != nil {
			res.warn(err)
		} else {
			res.Deleted = true
		}
	}
	return res
}

// Delete removes the pod and reports whether the control plane confirmed it.
func (c *Controller) Delete(ctx context.Context, h *WorkloadHandle) bool {
	return c.deletePod(ctx, h) == nil
}

// RunToCompletion builds a spec from a command line, runs it and deletes the
// pod. Only build and submission failures are returned as errors.
func (c *Controller) RunToCompletion(ctx context.Context, command string) (*Result, error) {
	spec, err := c.conf.Builder.BuildFromCommandLine(command)
	if err != nil {
		return nil, err
	}
	return c.RunSpec(ctx, spec)
}

// RunSpec submits spec, collects its output and deletes the pod.
func (c *Controller) RunSpec(ctx context.Context, spec *manifest.WorkloadSpec) (*Result, error) {
	h, err := c.Submit(ctx, spec)
	if err != nil {
		return nil, err
	}
	return c.StreamLogs(ctx, h, true), nil
}

func (c *Controller) waitForStart(ctx context.Context, h *WorkloadHandle) (Phase, error) {
	log := c.podLogger(h.Namespace, h.Name)
	start := time.Now()
	phase := PhasePending

	var lastErr error
	err := wait.PollUntilContextTimeout(ctx, c.conf.PollInterval, c.conf.PollTimeout, true, func(ctx context.Context) (bool, error) {
		pod, err := c.api.Get(ctx, h.Namespace, h.Name)
		if err != nil {
			lastErr = &PollError{Namespace: h.Namespace, Name: h.Name, Err: err}
			log.Warn("Reading pod status failed", zap.Error(lastErr))
			return false, nil
		}
		phase = phaseOf(pod)
		if phase == PhasePending {
			log.Debug("Pod pending")
			return false, nil
		}
		return true, nil
	})
	pendingDurations.Observe(time.Since(start).Seconds())

	if err == nil {
		log.Info("Pod left Pending", zap.String("phase", string(phase)), zap.Duration("waited", time.Since(start)))
		return phase, nil
	}
	if ctx.Err() != nil {
		return phase, fmt.Errorf("waiting for pod %s: %w", h, ctx.Err())
	}

	pollTimeouts.Inc()
	err = fmt.Errorf("%w: pod %s after %s", ErrPollTimeout, h, c.conf.PollTimeout)
	if lastErr != nil {
		err = fmt.Errorf("%w (last error: %v)", err, lastErr)
	}
	log.Error("Pod never left Pending", zap.Error(err))
	return phase, err
}

func (c *Controller) readLogs(ctx context.Context, h *WorkloadHandle) (string, error) {
	log := c.podLogger(h.Namespace, h.Name)

	stream, err := c.api.StreamLogs(ctx, h.Namespace, h.Name)
	if err != nil {
		logStreamErrors.Inc()
		err = &LogStreamError{Namespace: h.Namespace, Name: h.Name, Err: err}
		log.Error("Opening log stream failed", zap.Error(err))
		return "", err
	}
	defer stream.Close()

	// Output is kept byte for byte. Lines have no length limit.
	var out strings.Builder
	reader := bufio.NewReader(stream)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			logLines.Inc()
			text := strings.TrimRight(line, "\r\n")
			if pct := progress.Extract(text); progress.Found(pct) {
				c.conf.OnProgress(h, pct, text)
			}
			out.WriteString(line)
		}
		if err == io.EOF {
			return out.String(), nil
		}
		if err != nil {
			logStreamErrors.Inc()
			err = &LogStreamError{Namespace: h.Namespace, Name: h.Name, Err: err}
			log.Error("Log stream broke, keeping partial output", zap.Error(err), zap.Int("bytes", out.Len()))
			return out.String(), err
		}
	}
}

func (c *Controller) deletePod(ctx context.Context, h *WorkloadHandle) error {
	log := c.podLogger(h.Namespace, h.Name)

	if err := c.api.Delete(ctx, h.Namespace, h.Name); err != nil {
		deletionErrors.Inc()
		err = &DeletionError{Namespace: h.Namespace, Name: h.Name, Err: err}
		log.Error("Deleting pod failed, it may need manual cleanup", zap.Error(err))
		return err
	}
	deletions.Inc()
	log.Info("Pod deleted")
	return nil
}

func (c *Controller) logProgress(h *WorkloadHandle, percent float64, _ string) {
	c.podLogger(h.Namespace, h.Name).Info("Progress", zap.Float64("percent", percent))
}

func (c *Controller) podLogger(namespace, name string) *zap.Logger {
	return c.logger.With(zap.String("namespace", namespace), zap.String("pod", name))
}
