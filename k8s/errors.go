package k8s

import (
	"errors"
	"fmt"
)

// ErrPollTimeout is recorded when a pod does not leave Pending before the poll deadline.
var ErrPollTimeout = errors.New("timed out waiting for pod to leave Pending")

// SubmissionError is returned when the control plane rejects a pod.
type SubmissionError struct {
	Namespace string
	Name      string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("create pod %s/%s: %v", e.Namespace, e.Name, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollError is a failed status read. Polling continues after one.
type PollError struct {
	Namespace string
	Name      string
	Err       error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("read pod %s/%s: %v", e.Namespace, e.Name, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// LogStreamError is a failure to open or read a pod's log stream.
type LogStreamError struct {
	Namespace string
	Name      string
	Err       error
}

func (e *LogStreamError) Error() string {
	return fmt.Sprintf("stream logs of pod %s/%s: %v", e.Namespace, e.Name, e.Err)
}

func (e *LogStreamError) Unwrap() error { return e.Err }

// DeletionError is a failure to delete a pod. The pod may still exist.
type DeletionError struct {
	Namespace string
	Name      string
	Err       error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("delete pod %s/%s: %v", e.Namespace, e.Name, e.Err)
}

func (e *DeletionError) Unwrap() error { return e.Err }
