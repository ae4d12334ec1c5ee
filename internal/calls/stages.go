package calls

import (
	"context"
	"errors"

	"telephone-billing/internal/pipeline"
	"telephone-billing/internal/tasks"
	"telephone-billing/pkg/logger"
)

const (
	RegistryServiceName = "RegistryService"
	CallServiceName     = "CallService"
)

// RegistryMessage is what RegistryStage publishes.
type RegistryMessage struct {
	Registry
	URL string `json:"url"`
}

// CallMessage is what CallStage publishes once a call is consolidated.
type CallMessage struct {
	Call
	URL string `json:"url"`
}

// RegistryStage validates a submitted registry and stores it.
type RegistryStage struct {
	pipeline.Job
	svc *Service

	input    RegistryInput
	registry Registry
}

func RegistryRegistration(svc *Service, tr *tasks.Tracker, pub pipeline.Publisher) pipeline.Registration {
	return pipeline.Registration{
		Trigger: pipeline.TriggerRegistry,
		Queue:   pipeline.TriggerRegistryDone,
		New: func(msg pipeline.Message) pipeline.Stage {
			return &RegistryStage{
				Job: pipeline.NewJob(tr, pub, RegistryServiceName, pipeline.TriggerRegistryDone, msg),
				svc: svc,
			}
		},
	}
}

func (s *RegistryStage) Obtain(ctx context.Context) error { return s.Decode(&s.input) }

func (s *RegistryStage) Validate(ctx context.Context) error {
	reg, err := ValidateRegistry(s.input)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return pipeline.Reject(verr.Fields)
		}
		return err
	}
	s.registry = reg
	return nil
}

func (s *RegistryStage) Transform(ctx context.Context) error { return nil }

func (s *RegistryStage) Persist(ctx context.Context) error {
	reg, err := s.svc.Record(ctx, s.registry)
	if err != nil {
		return err
	}
	s.registry = reg
	s.Result = map[string]string{"url": reg.URL()}
	logger.From(ctx).Debug("registry stored", "registry_id", reg.ID, "call_id", reg.CallID, "type", reg.Type)
	return nil
}

func (s *RegistryStage) Propagate(ctx context.Context) error {
	return s.Emit(ctx, RegistryMessage{Registry: s.registry, URL: s.registry.URL()})
}

// CallStage merges a stored registry into its call.
type CallStage struct {
	pipeline.Job
	svc *Service

	registry Registry
	call     Call
}

func CallRegistration(svc *Service, tr *tasks.Tracker, pub pipeline.Publisher) pipeline.Registration {
	return pipeline.Registration{
		Trigger: pipeline.TriggerRegistryDone,
		Queue:   pipeline.TriggerCallDone,
		New: func(msg pipeline.Message) pipeline.Stage {
			return &CallStage{
				Job: pipeline.NewJob(tr, pub, CallServiceName, pipeline.TriggerCallDone, msg),
				svc: svc,
			}
		},
	}
}

func (s *CallStage) Obtain(ctx context.Context) error { return s.Decode(&s.registry) }

func (s *CallStage) Validate(ctx context.Context) error {
	if err := checkEvent(s.registry); err != nil {
		return pipeline.Reject(map[string][]string{"non_field_errors": {err.Error()}})
	}
	return nil
}

func (s *CallStage) Transform(ctx context.Context) error { return nil }

func (s *CallStage) Persist(ctx context.Context) error {
	c, err := s.svc.Consolidate(ctx, s.registry)
	if err != nil {
		return err
	}
	s.call = c
	s.Result = map[string]string{"url": c.URL()}
	logger.From(ctx).Debug("call merged", "call_id", c.CallID, "state", c.State())
	return nil
}

// Propagate only hands consolidated calls to billing.
func (s *CallStage) Propagate(ctx context.Context) error {
	if !s.call.Consolidated() {
		return nil
	}
	return s.Emit(ctx, CallMessage{Call: s.call, URL: s.call.URL()})
}
