package bills

import (
	"context"
	"time"

	"telephone-billing/internal/calls"
	"telephone-billing/internal/observability"
	"telephone-billing/internal/pipeline"
	"telephone-billing/internal/tasks"
	"telephone-billing/pkg/logger"
)

const BillServiceName = "BillService"

// BillMessage is what BillStage publishes.
type BillMessage struct {
	ID             int64     `json:"id"`
	SourceCallURL  string    `json:"source_call_url"`
	Subscriber     string    `json:"subscriber"`
	Destination    string    `json:"destination"`
	StartTimestamp time.Time `json:"start_timestamp"`
	StopTimestamp  time.Time `json:"stop_timestamp"`
	CallDuration   string    `json:"call_duration"`
	CallPrice      string    `json:"call_price"`
}

// BillStage prices a consolidated call and stores its bill.
type BillStage struct {
	pipeline.Job
	svc *Service

	call calls.CallMessage
	bill Bill
}

func Registration(svc *Service, tr *tasks.Tracker, pub pipeline.Publisher) pipeline.Registration {
	return pipeline.Registration{
		Trigger: pipeline.TriggerCallDone,
		Queue:   pipeline.TriggerBillDone,
		New: func(msg pipeline.Message) pipeline.Stage {
			return &BillStage{
				Job: pipeline.NewJob(tr, pub, BillServiceName, pipeline.TriggerBillDone, msg),
				svc: svc,
			}
		},
	}
}

func (s *BillStage) Obtain(ctx context.Context) error { return s.Decode(&s.call) }

func (s *BillStage) Validate(ctx context.Context) error {
	if s.call.CallID <= 0 {
		return pipeline.Reject(map[string][]string{"call_id": {"This field is required."}})
	}
	if !s.call.Consolidated() {
		return pipeline.Reject(map[string][]string{"non_field_errors": {"Only consolidated calls can be billed."}})
	}
	return nil
}

func (s *BillStage) Transform(ctx context.Context) error {
	b, bd, err := s.svc.Price(s.call.Call)
	if err != nil {
		return err
	}
	s.bill = b
	logger.From(ctx).Debug("call priced",
		"call_id", s.call.CallID,
		"billable_minutes", bd.BillableMinutes,
		"price_minor", bd.PriceMinor,
	)
	return nil
}

func (s *BillStage) Persist(ctx context.Context) error {
	stored, created, err := s.svc.Save(ctx, s.bill)
	if err != nil {
		return err
	}
	if created {
		observability.BilledMinor.Add(float64(stored.CallPriceMinor))
	}
	s.bill = stored
	s.Result = map[string]string{"url": URL(stored.Subscriber)}
	return nil
}

func (s *BillStage) Propagate(ctx context.Context) error {
	b := s.bill
	return s.Emit(ctx, BillMessage{
		ID:             b.ID,
		SourceCallURL:  b.SourceCallURL,
		Subscriber:     b.Subscriber,
		Destination:    b.Destination,
		StartTimestamp: b.StartTimestamp,
		StopTimestamp:  b.StopTimestamp,
		CallDuration:   FormatDuration(b.CallDuration),
		CallPrice:      FormatPrice(b.CallPriceMinor),
	})
}
