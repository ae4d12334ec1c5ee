package pipeline

import (
	"context"
	"errors"
	"fmt"

	"telephone-billing/internal/tasks"
)

// Stage is one unit of pipeline work. Run drives the methods in order:
//
//	Start -> Obtain -> Validate -> Transform -> Persist -> Propagate -> Finish
//
// Propagate runs only when every earlier step succeeded. Finish always runs
// once Start succeeded, with the first error from the steps in between (nil
// on success), so a task is DONE only after its successor was handed on.
type Stage interface {
	Start(ctx context.Context) error
	Obtain(ctx context.Context) error
	Validate(ctx context.Context) error
	Transform(ctx context.Context) error
	Persist(ctx context.Context) error
	Finish(ctx context.Context, cause error) error
	Propagate(ctx context.Context) error
}

type Outcome string

const (
	OutcomeDone     Outcome = "done"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeDeferred Outcome = "deferred"
)

// RejectedError marks input the stage refuses to process. Detail becomes the
// task result; the run itself is not an error.
type RejectedError struct {
	Detail any
}

func (e *RejectedError) Error() string { return fmt.Sprintf("pipeline: rejected: %v", e.Detail) }

func Reject(detail any) error { return &RejectedError{Detail: detail} }

// Run executes the stage lifecycle.
//
// A rejection is recorded as a FAILED task and reported as OutcomeRejected
// with a nil error. Any other failure after Start, including a publish that
// did not go through, is recorded as a FAILED task and returned. A job whose
// task is already terminal is skipped; a job locked by another worker is
// deferred and tasks.ErrLocked returned.
func Run(ctx context.Context, s Stage) (Outcome, error) {
	if err := s.Start(ctx); err != nil {
		if errors.Is(err, tasks.ErrTaskTerminal) {
			return OutcomeSkipped, nil
		}
		if errors.Is(err, tasks.ErrLocked) {
			return OutcomeDeferred, err
		}
		return OutcomeFailed, err
	}

	steps := []func(context.Context) error{s.Obtain, s.Validate, s.Transform, s.Persist}
	var cause error
	for _, step := range steps {
		if cause = step(ctx); cause != nil {
			break
		}
	}
	if cause == nil {
		if err := s.Propagate(ctx); err != nil {
			cause = fmt.Errorf("pipeline: propagate: %w", err)
		}
	}

	// Bookkeeping must land even if the worker is shutting down.
	if err := s.Finish(context.WithoutCancel(ctx), cause); err != nil {
		if cause != nil {
			return OutcomeFailed, errors.Join(cause, err)
		}
		return OutcomeFailed, err
	}

	var rej *RejectedError
	if errors.As(cause, &rej) {
		return OutcomeRejected, nil
	}
	if cause != nil {
		return OutcomeFailed, cause
	}
	return OutcomeDone, nil
}
