package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"telephone-billing/internal/tasks"

	"github.com/google/uuid"
)

// Job carries the task bookkeeping shared by every stage. Concrete stages
// embed it and supply Obtain, Validate, Transform, Persist and Propagate.
type Job struct {
	Tracker   *tasks.Tracker
	Publisher Publisher

	// Name is recorded as the task's service.
	Name string
	// Queue is the tag published on completion.
	Queue string

	Msg  Message
	Task tasks.Task

	// Result is stored on the task when the stage succeeds.
	Result any

	release func()
}

func NewJob(tr *tasks.Tracker, pub Publisher, name, queue string, msg Message) Job {
	return Job{Tracker: tr, Publisher: pub, Name: name, Queue: queue, Msg: msg}
}

// Start takes the job lock and moves the task to STARTED.
func (j *Job) Start(ctx context.Context) error {
	release, err := j.Tracker.Lock(ctx, j.Msg.JobID)
	if err != nil {
		return err
	}
	task, err := j.Tracker.Start(ctx, j.Msg.JobID, j.Msg.Payload, j.Name)
	if err != nil {
		release()
		return err
	}
	j.Task = task
	j.release = release
	return nil
}

// Finish records the outcome and drops the job lock.
func (j *Job) Finish(ctx context.Context, cause error) error {
	defer j.unlock()

	var (
		result []byte
		err    error
		rej    *RejectedError
	)
	switch {
	case errors.As(cause, &rej):
		result, err = json.Marshal(rej.Detail)
	case cause != nil:
		result, err = json.Marshal(map[string]string{"error": cause.Error()})
	case j.Result != nil:
		result, err = json.Marshal(j.Result)
	}
	if err != nil {
		return fmt.Errorf("pipeline: encode task result: %w", err)
	}

	task, err := j.Tracker.Finish(ctx, j.Task, result, cause != nil)
	if err != nil {
		return err
	}
	j.Task = task
	return nil
}

// Emit publishes payload on the job's queue under a fresh job id.
func (j *Job) Emit(ctx context.Context, payload any) error {
	if j.Queue == "" || j.Publisher == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return j.Publisher.Publish(ctx, Message{Payload: b, Trigger: j.Queue, JobID: uuid.NewString()})
}

// Decode unmarshals the message payload into v, rejecting malformed input.
func (j *Job) Decode(v any) error {
	if len(j.Msg.Payload) == 0 {
		return Reject(map[string][]string{"non_field_errors": {"No data provided"}})
	}
	if err := json.Unmarshal(j.Msg.Payload, v); err != nil {
		return Reject(map[string][]string{"non_field_errors": {fmt.Sprintf("Invalid data. %s", err.Error())}})
	}
	return nil
}

func (j *Job) unlock() {
	if j.release != nil {
		j.release()
		j.release = nil
	}
}
